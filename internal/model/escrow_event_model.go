package model

import (
	"time"
)

// EscrowEventModel 托管审计事件，只追加不修改
type EscrowEventModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`

	EscrowId  string `json:"escrow_id" gorm:"not null;index"`
	EventType string `json:"event_type" gorm:"not null"`
	Actor     string `json:"actor"` // 为空表示系统/定时任务
	Metadata  string `json:"metadata" gorm:"type:text"`
}

// 事件类型
const (
	EventTypeCreated          = "escrow_created"
	EventTypeShipped          = "escrow_shipped"
	EventTypeReceiptConfirmed = "receipt_confirmed"
	EventTypeDisputeOpened    = "dispute_opened"
	EventTypeDisputeResolved  = "dispute_resolved"
	EventTypeAutoReleased     = "auto_released"
)

// TableName 自定义表名
func (EscrowEventModel) TableName() string {
	return "escrow_event"
}
