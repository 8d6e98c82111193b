package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowModel 资金托管记录
type EscrowModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联信息
	OrderId          string `json:"order_id" gorm:"not null;uniqueIndex"`
	PaymentReference string `json:"payment_reference" gorm:"not null"`
	BuyerId          string `json:"buyer_id" gorm:"not null;index"`
	SellerId         string `json:"seller_id" gorm:"not null;index"`

	// 资金信息
	Amount decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Fee    decimal.Decimal `json:"fee" gorm:"type:decimal(20,2);not null"` // 创建时计算，之后不可变

	// 状态
	Status EscrowStatus `json:"status" gorm:"type:varchar(32);not null;default:'active';index"`

	// 保护期信息
	ReleaseDate time.Time `json:"release_date" gorm:"not null"` // 允许自动放款的最早时间

	// 物流信息
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`

	// 放款信息（终态时一次性写入，之后不可变）
	ReleasedAt    *time.Time `json:"released_at"`
	ReleaseReason string     `json:"release_reason"`
	ReleasedBy    string     `json:"released_by"`

	// 自动放款防重标记
	AutoReleaseProcessed bool `json:"auto_release_processed" gorm:"default:false"`

	// 乐观锁版本号
	Version int64 `json:"version" gorm:"default:0"`
}

// EscrowStatus 托管状态
type EscrowStatus string

const (
	EscrowStatusActive            EscrowStatus = "active"             // 托管中
	EscrowStatusShipped           EscrowStatus = "shipped"            // 已发货
	EscrowStatusDisputed          EscrowStatus = "disputed"           // 争议中
	EscrowStatusReleased          EscrowStatus = "released"           // 已放款（终态）
	EscrowStatusPartiallyRefunded EscrowStatus = "partially_refunded" // 部分退款（终态）
)

// 放款原因
const (
	ReleaseReasonBuyerConfirmed        = "buyer_confirmed"
	ReleaseReasonAutoReleased          = "auto_released"
	ReleaseReasonDisputeResolvedSeller = "dispute_resolved_seller"
	ReleaseReasonDisputeResolvedSplit  = "dispute_resolved_split"
)

// IsTerminal 是否处于终态
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusPartiallyRefunded
}

// TableName 自定义表名
func (EscrowModel) TableName() string {
	return "escrow"
}
