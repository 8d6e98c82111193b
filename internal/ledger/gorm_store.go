package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStore 基于 gorm/postgres 的账本实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建账本存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateEscrow 创建托管记录并在同一事务内写入创建事件
func (s *GormStore) CreateEscrow(escrow *model.EscrowModel, event *model.EscrowEventModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(escrow).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("创建托管记录失败: %w", err)
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("写入托管事件失败: %w", err)
		}
		return nil
	})
}

// GetEscrow 按ID获取托管记录
func (s *GormStore) GetEscrow(id string) (*model.EscrowModel, error) {
	var escrow model.EscrowModel
	if err := s.db.First(&escrow, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取托管记录失败: %w", err)
	}
	return &escrow, nil
}

// GetEscrowByOrder 按订单ID获取托管记录
func (s *GormStore) GetEscrowByOrder(orderId string) (*model.EscrowModel, error) {
	var escrow model.EscrowModel
	if err := s.db.First(&escrow, "order_id = ?", orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取托管记录失败: %w", err)
	}
	return &escrow, nil
}

// ListEscrows 分页查询托管记录
func (s *GormStore) ListEscrows(filter ListFilter) ([]model.EscrowModel, int64, error) {
	query := s.db.Model(&model.EscrowModel{})
	if filter.BuyerId != "" {
		query = query.Where("buyer_id = ?", filter.BuyerId)
	}
	if filter.SellerId != "" {
		query = query.Where("seller_id = ?", filter.SellerId)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取托管记录总数失败: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	var escrows []model.EscrowModel
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&escrows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取托管记录列表失败: %w", err)
	}

	return escrows, total, nil
}

// FindAutoReleasable 查找到期且未处理的托管记录
func (s *GormStore) FindAutoReleasable(now time.Time, limit int) ([]model.EscrowModel, error) {
	var escrows []model.EscrowModel
	err := s.db.Where("status IN ?", []model.EscrowStatus{
		model.EscrowStatusActive,
		model.EscrowStatusShipped,
	}).
		Where("release_date <= ?", now).
		Where("auto_release_processed = ?", false).
		Order("release_date ASC").
		Limit(limit).
		Find(&escrows).Error
	if err != nil {
		return nil, fmt.Errorf("查询到期托管记录失败: %w", err)
	}
	return escrows, nil
}

// ApplyTransition 状态守卫的条件更新。仅当存储中的状态仍等于 expected
// 时提交 updates 并追加事件；否则返回 ErrConcurrentModification。
func (s *GormStore) ApplyTransition(id string, expected model.EscrowStatus, updates map[string]interface{}, event *model.EscrowEventModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.guardedUpdate(tx, id, expected, updates); err != nil {
			return err
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("写入托管事件失败: %w", err)
		}
		return nil
	})
}

// OpenDispute 托管状态变更 + 创建争议记录，同一事务
func (s *GormStore) OpenDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, dispute *model.DisputeModel, event *model.EscrowEventModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.guardedUpdate(tx, escrowId, expected, updates); err != nil {
			return err
		}
		if err := tx.Create(dispute).Error; err != nil {
			return fmt.Errorf("创建争议记录失败: %w", err)
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("写入托管事件失败: %w", err)
		}
		return nil
	})
}

// CloseDispute 托管终态变更 + 关闭争议记录，同一事务
func (s *GormStore) CloseDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, disputeId string, disputeUpdates map[string]interface{}, event *model.EscrowEventModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.guardedUpdate(tx, escrowId, expected, updates); err != nil {
			return err
		}
		result := tx.Model(&model.DisputeModel{}).
			Where("id = ? AND status = ?", disputeId, model.DisputeStatusOpen).
			Updates(disputeUpdates)
		if result.Error != nil {
			return fmt.Errorf("关闭争议记录失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentModification
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("写入托管事件失败: %w", err)
		}
		return nil
	})
}

// guardedUpdate 带状态守卫的更新，RowsAffected 为 0 时区分
// 记录不存在与并发冲突
func (s *GormStore) guardedUpdate(tx *gorm.DB, id string, expected model.EscrowStatus, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	result := tx.Model(&model.EscrowModel{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新托管记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&model.EscrowModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("检查托管记录失败: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return nil
}

// GetDispute 按ID获取争议记录
func (s *GormStore) GetDispute(id string) (*model.DisputeModel, error) {
	var dispute model.DisputeModel
	if err := s.db.First(&dispute, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取争议记录失败: %w", err)
	}
	return &dispute, nil
}

// GetOpenDispute 获取托管当前未关闭的争议
func (s *GormStore) GetOpenDispute(escrowId string) (*model.DisputeModel, error) {
	var dispute model.DisputeModel
	err := s.db.Where("escrow_id = ? AND status = ?", escrowId, model.DisputeStatusOpen).
		First(&dispute).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("获取争议记录失败: %w", err)
	}
	return &dispute, nil
}

// ListEvents 获取托管的审计事件，按时间正序
func (s *GormStore) ListEvents(escrowId string) ([]model.EscrowEventModel, error) {
	var events []model.EscrowEventModel
	if err := s.db.Where("escrow_id = ?", escrowId).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取托管事件失败: %w", err)
	}
	return events, nil
}

// Stats 统计信息，since 为零值时统计全部
func (s *GormStore) Stats(since time.Time) (*Stats, error) {
	stats := &Stats{
		CountsByStatus: make(map[model.EscrowStatus]int64),
		HeldAmount:     decimal.Zero,
		ReleasedAmount: decimal.Zero,
	}

	if err := s.db.Model(&model.EscrowModel{}).Count(&stats.TotalCount).Error; err != nil {
		return nil, fmt.Errorf("获取托管总数失败: %w", err)
	}

	var rows []struct {
		Status model.EscrowStatus
		Count  int64
	}
	if err := s.db.Model(&model.EscrowModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("获取状态统计失败: %w", err)
	}
	for _, row := range rows {
		stats.CountsByStatus[row.Status] = row.Count
	}

	if err := s.db.Model(&model.EscrowModel{}).
		Where("status IN ?", []model.EscrowStatus{
			model.EscrowStatusActive,
			model.EscrowStatusShipped,
			model.EscrowStatusDisputed,
		}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.HeldAmount).Error; err != nil {
		return nil, fmt.Errorf("获取托管金额统计失败: %w", err)
	}

	terminal := []model.EscrowStatus{
		model.EscrowStatusReleased,
		model.EscrowStatusPartiallyRefunded,
	}
	released := s.db.Model(&model.EscrowModel{}).Where("status IN ?", terminal)
	if !since.IsZero() {
		released = released.Where("released_at >= ?", since)
	}
	if err := released.Count(&stats.ReleasedCount).Error; err != nil {
		return nil, fmt.Errorf("获取放款笔数失败: %w", err)
	}

	releasedSum := s.db.Model(&model.EscrowModel{}).Where("status IN ?", terminal)
	if !since.IsZero() {
		releasedSum = releasedSum.Where("released_at >= ?", since)
	}
	if err := releasedSum.Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.ReleasedAmount).Error; err != nil {
		return nil, fmt.Errorf("获取放款金额失败: %w", err)
	}

	if err := s.db.Model(&model.DisputeModel{}).
		Where("status = ?", model.DisputeStatusOpen).
		Count(&stats.OpenDisputes).Error; err != nil {
		return nil, fmt.Errorf("获取未处理争议数失败: %w", err)
	}

	return stats, nil
}
