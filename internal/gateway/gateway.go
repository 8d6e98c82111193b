package gateway

import (
	"github.com/shopspring/decimal"
)

// 外部协作方接口。托管服务只记录资金归属决定，
// 实际的资金划转、消息推送、分账由各协作方自行保证幂等与重试。

// ItemComposition 订单商品构成
type ItemComposition struct {
	HasPhysical bool `json:"has_physical"`
	HasDigital  bool `json:"has_digital"`
}

// PaymentProcessor 支付处理方。托管创建前资金已完成扣款，
// 退款与卖家打款在此执行。
type PaymentProcessor interface {
	// AmountCaptured 查询订单的扣款凭证，作为托管创建的前置条件
	AmountCaptured(orderId string) (string, error)
	// Refund 按扣款凭证向买家退款
	Refund(reference string, amount decimal.Decimal) error
	// Payout 向卖家打款
	Payout(sellerId string, amount decimal.Decimal) error
}

// OrderStore 订单服务
type OrderStore interface {
	GetItemComposition(orderId string) (ItemComposition, error)
	GetOrderStatus(orderId string) (string, error)
}

// PayoutEngine 分账引擎，托管只负责把分账记录从冻结翻转为可支付
type PayoutEngine interface {
	MarkPayable(orderId string) error
}

// ReputationStore 卖家评价服务
type ReputationStore interface {
	RecordRating(orderId, sellerId, buyerId string, rating int, feedback string) error
}

// Notifier 消息通知，发送失败只记录日志，不向调用方传播
type Notifier interface {
	Notify(userId, kind string, payload map[string]interface{})
}

// 通知事件类型
const (
	NotifyEscrowCreated     = "escrow.created"
	NotifyEscrowShipped     = "escrow.shipped"
	NotifyEscrowReleased    = "escrow.released"
	NotifyDisputeOpened     = "escrow.dispute.opened"
	NotifyDisputeResolved   = "escrow.dispute.resolved"
	NotifyEscrowAutoRelease = "escrow.auto_released"
)
