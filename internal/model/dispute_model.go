package model

import (
	"time"
)

// DisputeModel 托管争议记录
type DisputeModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	EscrowId    string `json:"escrow_id" gorm:"not null;index"`
	InitiatedBy string `json:"initiated_by" gorm:"not null"` // 必须是托管的买家

	Reason      string `json:"reason" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	Evidence    string `json:"evidence" gorm:"type:text"`

	Status DisputeStatus `json:"status" gorm:"type:varchar(16);not null;default:'open';index"`

	// 裁决信息（仅在裁决时写入，争议不可重开）
	ResolvedBy             string     `json:"resolved_by"`
	Resolution             string     `json:"resolution" gorm:"type:text"`
	AwardToBuyerPercentage int        `json:"award_to_buyer_percentage"`
	ResolvedAt             *time.Time `json:"resolved_at"`
}

// DisputeStatus 争议状态
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"     // 待处理
	DisputeStatusResolved DisputeStatus = "resolved" // 已裁决
)

// TableName 自定义表名
func (DisputeModel) TableName() string {
	return "escrow_dispute"
}
