package ledger

import (
	"errors"
	"time"

	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrConcurrentModification 写入时状态已被其他调用方修改，
	// 由上层重新读取并重新校验，不直接返回给外部调用方
	ErrConcurrentModification = errors.New("并发修改冲突")
	// ErrDuplicateOrder 订单已存在托管记录，order_id 唯一索引是
	// 并发创建竞争的最终裁判
	ErrDuplicateOrder = errors.New("订单已存在托管记录")
)

// ListFilter 托管列表查询条件
type ListFilter struct {
	BuyerId  string
	SellerId string
	Status   model.EscrowStatus
	Page     int
	PageSize int
}

// Stats 托管统计信息
type Stats struct {
	TotalCount     int64
	CountsByStatus map[model.EscrowStatus]int64
	HeldAmount     decimal.Decimal // 仍在托管中的资金总额（active/shipped/disputed）
	ReleasedCount  int64           // 统计窗口内完成放款的笔数
	ReleasedAmount decimal.Decimal // 统计窗口内完成放款的金额
	OpenDisputes   int64
}

// Store 托管账本存储契约。
// ApplyTransition 系列方法是整个系统的并发安全基础：
// 仅当存储中的状态仍等于 expected 时才提交 updates，并在同一
// 原子单元内追加一条审计事件；否则返回 ErrConcurrentModification。
type Store interface {
	CreateEscrow(escrow *model.EscrowModel, event *model.EscrowEventModel) error
	GetEscrow(id string) (*model.EscrowModel, error)
	GetEscrowByOrder(orderId string) (*model.EscrowModel, error)
	ListEscrows(filter ListFilter) ([]model.EscrowModel, int64, error)
	FindAutoReleasable(now time.Time, limit int) ([]model.EscrowModel, error)

	ApplyTransition(id string, expected model.EscrowStatus, updates map[string]interface{}, event *model.EscrowEventModel) error
	// OpenDispute 在同一事务内完成托管状态变更与争议记录创建
	OpenDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, dispute *model.DisputeModel, event *model.EscrowEventModel) error
	// CloseDispute 在同一事务内完成托管终态变更与争议关闭
	CloseDispute(escrowId string, expected model.EscrowStatus, updates map[string]interface{}, disputeId string, disputeUpdates map[string]interface{}, event *model.EscrowEventModel) error

	GetDispute(id string) (*model.DisputeModel, error)
	GetOpenDispute(escrowId string) (*model.DisputeModel, error)

	ListEvents(escrowId string) ([]model.EscrowEventModel, error)
	Stats(since time.Time) (*Stats, error)
}
