package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
)

// MemoryStore 内存账本实现，与 GormStore 遵循同一契约，
// 用于单元测试以及不依赖数据库的本地运行
type MemoryStore struct {
	mu       sync.RWMutex
	escrows  map[string]*model.EscrowModel
	disputes map[string]*model.DisputeModel
	events   []model.EscrowEventModel
}

// NewMemoryStore 创建内存账本
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		escrows:  make(map[string]*model.EscrowModel),
		disputes: make(map[string]*model.DisputeModel),
	}
}

// CreateEscrow 创建托管记录并写入创建事件
func (s *MemoryStore) CreateEscrow(escrow *model.EscrowModel, event *model.EscrowEventModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.escrows {
		if existing.OrderId == escrow.OrderId {
			return ErrDuplicateOrder
		}
	}

	now := time.Now()
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	copied := *escrow
	s.escrows[escrow.Id] = &copied
	s.appendEventLocked(event)
	return nil
}

// GetEscrow 按ID获取托管记录
func (s *MemoryStore) GetEscrow(id string) (*model.EscrowModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	escrow, ok := s.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *escrow
	return &copied, nil
}

// GetEscrowByOrder 按订单ID获取托管记录
func (s *MemoryStore) GetEscrowByOrder(orderId string) (*model.EscrowModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, escrow := range s.escrows {
		if escrow.OrderId == orderId {
			copied := *escrow
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ListEscrows 按条件查询托管记录
func (s *MemoryStore) ListEscrows(filter ListFilter) ([]model.EscrowModel, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.EscrowModel
	for _, escrow := range s.escrows {
		if filter.BuyerId != "" && escrow.BuyerId != filter.BuyerId {
			continue
		}
		if filter.SellerId != "" && escrow.SellerId != filter.SellerId {
			continue
		}
		if filter.Status != "" && escrow.Status != filter.Status {
			continue
		}
		matched = append(matched, *escrow)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// FindAutoReleasable 查找到期且未处理的托管记录
func (s *MemoryStore) FindAutoReleasable(now time.Time, limit int) ([]model.EscrowModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.EscrowModel
	for _, escrow := range s.escrows {
		if escrow.Status != model.EscrowStatusActive && escrow.Status != model.EscrowStatusShipped {
			continue
		}
		if escrow.ReleaseDate.After(now) {
			continue
		}
		if escrow.AutoReleaseProcessed {
			continue
		}
		matched = append(matched, *escrow)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReleaseDate.Before(matched[j].ReleaseDate)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ApplyTransition 状态守卫的条件更新
func (s *MemoryStore) ApplyTransition(id string, expected model.EscrowStatus, updates map[string]interface{}, event *model.EscrowEventModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardedUpdateLocked(id, expected, updates); err != nil {
		return err
	}
	s.appendEventLocked(event)
	return nil
}

// OpenDispute 状态变更 + 创建争议，同一原子单元
func (s *MemoryStore) OpenDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, dispute *model.DisputeModel, event *model.EscrowEventModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardedUpdateLocked(escrowId, expected, updates); err != nil {
		return err
	}
	now := time.Now()
	dispute.CreatedAt = now
	dispute.UpdatedAt = now
	copied := *dispute
	s.disputes[dispute.Id] = &copied
	s.appendEventLocked(event)
	return nil
}

// CloseDispute 终态变更 + 关闭争议，同一原子单元
func (s *MemoryStore) CloseDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, disputeId string, disputeUpdates map[string]interface{}, event *model.EscrowEventModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dispute, ok := s.disputes[disputeId]
	if !ok || dispute.Status != model.DisputeStatusOpen {
		return ErrConcurrentModification
	}
	if err := s.guardedUpdateLocked(escrowId, expected, updates); err != nil {
		return err
	}
	applyDisputeUpdates(dispute, disputeUpdates)
	dispute.UpdatedAt = time.Now()
	s.appendEventLocked(event)
	return nil
}

func (s *MemoryStore) guardedUpdateLocked(id string, expected model.EscrowStatus, updates map[string]interface{}) error {
	escrow, ok := s.escrows[id]
	if !ok {
		return ErrNotFound
	}
	if escrow.Status != expected {
		return ErrConcurrentModification
	}
	applyEscrowUpdates(escrow, updates)
	escrow.Version++
	escrow.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) appendEventLocked(event *model.EscrowEventModel) {
	event.CreatedAt = time.Now()
	s.events = append(s.events, *event)
}

// GetDispute 按ID获取争议记录
func (s *MemoryStore) GetDispute(id string) (*model.DisputeModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dispute, ok := s.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *dispute
	return &copied, nil
}

// GetOpenDispute 获取托管当前未关闭的争议
func (s *MemoryStore) GetOpenDispute(escrowId string) (*model.DisputeModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, dispute := range s.disputes {
		if dispute.EscrowId == escrowId && dispute.Status == model.DisputeStatusOpen {
			copied := *dispute
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ListEvents 获取托管的审计事件
func (s *MemoryStore) ListEvents(escrowId string) ([]model.EscrowEventModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []model.EscrowEventModel
	for _, event := range s.events {
		if event.EscrowId == escrowId {
			events = append(events, event)
		}
	}
	return events, nil
}

// Stats 统计信息
func (s *MemoryStore) Stats(since time.Time) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		CountsByStatus: make(map[model.EscrowStatus]int64),
		HeldAmount:     decimal.Zero,
		ReleasedAmount: decimal.Zero,
	}
	for _, escrow := range s.escrows {
		stats.TotalCount++
		stats.CountsByStatus[escrow.Status]++
		if !escrow.Status.IsTerminal() {
			stats.HeldAmount = stats.HeldAmount.Add(escrow.Amount)
			continue
		}
		if since.IsZero() || (escrow.ReleasedAt != nil && !escrow.ReleasedAt.Before(since)) {
			stats.ReleasedCount++
			stats.ReleasedAmount = stats.ReleasedAmount.Add(escrow.Amount)
		}
	}
	for _, dispute := range s.disputes {
		if dispute.Status == model.DisputeStatusOpen {
			stats.OpenDisputes++
		}
	}
	return stats, nil
}

// applyEscrowUpdates 回放 gorm 风格的字段更新
func applyEscrowUpdates(escrow *model.EscrowModel, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			escrow.Status = value.(model.EscrowStatus)
		case "tracking_number":
			escrow.TrackingNumber = value.(string)
		case "carrier":
			escrow.Carrier = value.(string)
		case "released_at":
			t := value.(time.Time)
			escrow.ReleasedAt = &t
		case "release_reason":
			escrow.ReleaseReason = value.(string)
		case "released_by":
			escrow.ReleasedBy = value.(string)
		case "auto_release_processed":
			escrow.AutoReleaseProcessed = value.(bool)
		}
	}
}

func applyDisputeUpdates(dispute *model.DisputeModel, updates map[string]interface{}) {
	for key, value := range updates {
		switch key {
		case "status":
			dispute.Status = value.(model.DisputeStatus)
		case "resolved_by":
			dispute.ResolvedBy = value.(string)
		case "resolution":
			dispute.Resolution = value.(string)
		case "award_to_buyer_percentage":
			dispute.AwardToBuyerPercentage = value.(int)
		case "resolved_at":
			t := value.(time.Time)
			dispute.ResolvedAt = &t
		}
	}
}
