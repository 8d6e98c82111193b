package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/blues/mes/internal/gateway"
	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/logger"
	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
)

// DisputeLogic 争议裁决业务逻辑。裁决把托管资金在买卖双方之间
// 拆分：资金归属决定（账本终态转移 + 争议关闭）先原子提交，
// 下游的退款与打款执行是尽力而为的旁路效果。
type DisputeLogic struct {
	store    ledger.Store
	payment  gateway.PaymentProcessor
	payouts  gateway.PayoutEngine
	notifier gateway.Notifier
	now      func() time.Time
}

// NewDisputeLogic 创建争议业务逻辑
func NewDisputeLogic(
	store ledger.Store,
	payment gateway.PaymentProcessor,
	payouts gateway.PayoutEngine,
	notifier gateway.Notifier,
) *DisputeLogic {
	return &DisputeLogic{
		store:    store,
		payment:  payment,
		payouts:  payouts,
		notifier: notifier,
		now:      time.Now,
	}
}

// GetDispute 获取争议详情
func (d *DisputeLogic) GetDispute(id string) (*model.DisputeModel, error) {
	dispute, err := d.store.GetDispute(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: 争议记录", ErrNotFound)
		}
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute 管理员裁决争议。awardToBuyerPct 为判给买家的
// 退款百分比：0 表示全额放给卖家（disputed -> released），
// 大于 0 表示部分或全额退款（disputed -> partially_refunded）。
// 卖家金额始终由总额减退款额得出，两者之和精确等于托管金额。
func (d *DisputeLogic) ResolveDispute(disputeId, adminId string, awardToBuyerPct int, resolution string) (*model.EscrowModel, *model.DisputeModel, error) {
	if adminId == "" {
		return nil, nil, ErrUnauthorized
	}
	if awardToBuyerPct < 0 || awardToBuyerPct > 100 {
		return nil, nil, fmt.Errorf("%w: 退款百分比必须在0-100之间", ErrValidation)
	}

	dispute, err := d.GetDispute(disputeId)
	if err != nil {
		return nil, nil, err
	}
	if dispute.Status != model.DisputeStatusOpen {
		return nil, nil, ErrInvalidStateTransition
	}

	escrow, err := d.store.GetEscrow(dispute.EscrowId)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if escrow.Status != model.EscrowStatusDisputed {
		return nil, nil, ErrInvalidStateTransition
	}

	// 退款额四舍五入到分，卖家金额取精确补数，杜绝舍入渗漏
	refundAmount := escrow.Amount.
		Mul(decimal.NewFromInt(int64(awardToBuyerPct))).
		Div(decimal.NewFromInt(100)).
		Round(2)
	sellerAmount := escrow.Amount.Sub(refundAmount)

	newStatus := model.EscrowStatusPartiallyRefunded
	releaseReason := model.ReleaseReasonDisputeResolvedSplit
	if awardToBuyerPct == 0 {
		newStatus = model.EscrowStatusReleased
		releaseReason = model.ReleaseReasonDisputeResolvedSeller
	}

	now := d.now()
	updates := map[string]interface{}{
		"status":         newStatus,
		"released_at":    now,
		"release_reason": releaseReason,
		"released_by":    adminId,
	}
	disputeUpdates := map[string]interface{}{
		"status":                    model.DisputeStatusResolved,
		"resolved_by":               adminId,
		"resolution":                resolution,
		"award_to_buyer_percentage": awardToBuyerPct,
		"resolved_at":               now,
	}
	event := newEvent(escrow.Id, model.EventTypeDisputeResolved, adminId, map[string]interface{}{
		"dispute_id":    disputeId,
		"award_pct":     awardToBuyerPct,
		"refund_amount": refundAmount.StringFixed(2),
		"seller_amount": sellerAmount.StringFixed(2),
	})

	err = d.store.CloseDispute(escrow.Id, model.EscrowStatusDisputed, updates, disputeId, disputeUpdates, event)
	if err != nil {
		if errors.Is(err, ledger.ErrConcurrentModification) {
			// 争议中的托管只有裁决一条出路，冲突说明另一次裁决已经提交
			return nil, nil, ErrInvalidStateTransition
		}
		return nil, nil, err
	}

	escrow.Status = newStatus
	escrow.ReleasedAt = &now
	escrow.ReleaseReason = releaseReason
	escrow.ReleasedBy = adminId
	dispute.Status = model.DisputeStatusResolved
	dispute.ResolvedBy = adminId
	dispute.Resolution = resolution
	dispute.AwardToBuyerPercentage = awardToBuyerPct
	dispute.ResolvedAt = &now

	// 资金归属已落账，下游执行失败只记录日志，由支付方重试
	if refundAmount.IsPositive() {
		if err := d.payment.Refund(escrow.PaymentReference, refundAmount); err != nil {
			logger.Error("Failed to refund %s to buyer for escrow %s: %v",
				refundAmount.StringFixed(2), escrow.Id, err)
		}
	}
	if sellerAmount.IsPositive() {
		if err := d.payment.Payout(escrow.SellerId, sellerAmount); err != nil {
			logger.Error("Failed to pay out %s to seller for escrow %s: %v",
				sellerAmount.StringFixed(2), escrow.Id, err)
		}
	}
	if err := d.payouts.MarkPayable(escrow.OrderId); err != nil {
		logger.Error("Failed to mark order %s payable after dispute resolution: %v",
			escrow.OrderId, err)
	}

	payload := map[string]interface{}{
		"escrow_id":     escrow.Id,
		"dispute_id":    disputeId,
		"award_pct":     awardToBuyerPct,
		"refund_amount": refundAmount.StringFixed(2),
		"seller_amount": sellerAmount.StringFixed(2),
	}
	d.notifier.Notify(escrow.BuyerId, gateway.NotifyDisputeResolved, payload)
	d.notifier.Notify(escrow.SellerId, gateway.NotifyDisputeResolved, payload)

	return escrow, dispute, nil
}
