package logic

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blues/mes/internal/gateway"
	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/logger"
	"github.com/blues/mes/internal/model"
	"github.com/blues/mes/internal/policy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 并发冲突时的最大重试次数，每次重试都重新读取并重新校验
const maxTransitionAttempts = 3

// EscrowLogic 托管状态机业务逻辑。所有状态变更都经过
// 读取-校验-条件写入三步，由账本的状态守卫更新保证
// 多个调用方（买家/卖家/管理员/定时任务）并发时至多一次终态转移。
type EscrowLogic struct {
	store    ledger.Store
	payment  gateway.PaymentProcessor
	orders   gateway.OrderStore
	payouts  gateway.PayoutEngine
	ratings  gateway.ReputationStore
	notifier gateway.Notifier
	now      func() time.Time
}

// NewEscrowLogic 创建托管业务逻辑
func NewEscrowLogic(
	store ledger.Store,
	payment gateway.PaymentProcessor,
	orders gateway.OrderStore,
	payouts gateway.PayoutEngine,
	ratings gateway.ReputationStore,
	notifier gateway.Notifier,
) *EscrowLogic {
	return &EscrowLogic{
		store:    store,
		payment:  payment,
		orders:   orders,
		payouts:  payouts,
		ratings:  ratings,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateEscrow 在支付扣款确认后创建托管记录，初始状态 active。
// 服务费与保护期在创建时一次性确定，之后不再变化。
func (l *EscrowLogic) CreateEscrow(orderId, paymentReference, buyerId, sellerId string, amount decimal.Decimal) (*model.EscrowModel, error) {
	if orderId == "" || buyerId == "" || sellerId == "" {
		return nil, fmt.Errorf("%w: 订单号与买卖双方不能为空", ErrValidation)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: 托管金额必须大于0", ErrValidation)
	}

	// 扣款凭证是创建托管的前置条件
	capturedRef, err := l.payment.AmountCaptured(orderId)
	if err != nil {
		return nil, fmt.Errorf("校验订单扣款失败: %w", err)
	}
	if paymentReference == "" {
		paymentReference = capturedRef
	}

	// 同一订单只允许一条托管记录
	if _, err := l.store.GetEscrowByOrder(orderId); err == nil {
		return nil, fmt.Errorf("%w: 该订单已存在托管记录", ErrValidation)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	// 商品构成决定保护期；订单服务不可用时按构成未知处理
	composition, err := l.orders.GetItemComposition(orderId)
	if err != nil {
		logger.Warn("Failed to get item composition for order %s, using default period: %v", orderId, err)
		composition = gateway.ItemComposition{}
	}
	periodDays := policy.ProtectionPeriodDays(composition.HasPhysical, composition.HasDigital)

	now := l.now()
	escrow := &model.EscrowModel{
		Id:               uuid.NewString(),
		OrderId:          orderId,
		PaymentReference: paymentReference,
		BuyerId:          buyerId,
		SellerId:         sellerId,
		Amount:           amount,
		Fee:              policy.Fee(amount),
		Status:           model.EscrowStatusActive,
		ReleaseDate:      now.AddDate(0, 0, periodDays),
	}
	event := newEvent(escrow.Id, model.EventTypeCreated, "", map[string]interface{}{
		"order_id":        orderId,
		"amount":          amount.StringFixed(2),
		"fee":             escrow.Fee.StringFixed(2),
		"protection_days": periodDays,
	})

	if err := l.store.CreateEscrow(escrow, event); err != nil {
		// 并发创建竞争输掉时由唯一索引兜底
		if errors.Is(err, ledger.ErrDuplicateOrder) {
			return nil, fmt.Errorf("%w: 该订单已存在托管记录", ErrValidation)
		}
		return nil, err
	}

	l.notifier.Notify(buyerId, gateway.NotifyEscrowCreated, notifyPayload(escrow))
	l.notifier.Notify(sellerId, gateway.NotifyEscrowCreated, notifyPayload(escrow))
	return escrow, nil
}

// MarkShipped 卖家发货，active -> shipped
func (l *EscrowLogic) MarkShipped(escrowId, sellerId, trackingNumber, carrier string) (*model.EscrowModel, error) {
	var out *model.EscrowModel
	err := l.transition(escrowId, opMarkShipped, func(escrow *model.EscrowModel) error {
		if escrow.SellerId != sellerId {
			return ErrUnauthorized
		}
		updates := map[string]interface{}{
			"status":          model.EscrowStatusShipped,
			"tracking_number": trackingNumber,
			"carrier":         carrier,
		}
		event := newEvent(escrow.Id, model.EventTypeShipped, sellerId, map[string]interface{}{
			"tracking_number": trackingNumber,
			"carrier":         carrier,
		})
		if err := l.store.ApplyTransition(escrow.Id, escrow.Status, updates, event); err != nil {
			return err
		}
		escrow.Status = model.EscrowStatusShipped
		escrow.TrackingNumber = trackingNumber
		escrow.Carrier = carrier
		out = escrow
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.notifier.Notify(out.BuyerId, gateway.NotifyEscrowShipped, notifyPayload(out))
	return out, nil
}

// ConfirmReceipt 买家确认收货，active -> released。
// 评分是同一调用的独立旁路效果：评分无效或评价服务失败
// 都不回滚已提交的放款。
func (l *EscrowLogic) ConfirmReceipt(escrowId, buyerId string, rating int, feedback string) (*model.EscrowModel, error) {
	var out *model.EscrowModel
	err := l.transition(escrowId, opConfirmReceipt, func(escrow *model.EscrowModel) error {
		if escrow.BuyerId != buyerId {
			return ErrUnauthorized
		}
		now := l.now()
		updates := map[string]interface{}{
			"status":         model.EscrowStatusReleased,
			"released_at":    now,
			"release_reason": model.ReleaseReasonBuyerConfirmed,
			"released_by":    buyerId,
		}
		event := newEvent(escrow.Id, model.EventTypeReceiptConfirmed, buyerId, map[string]interface{}{
			"release_reason": model.ReleaseReasonBuyerConfirmed,
		})
		if err := l.store.ApplyTransition(escrow.Id, escrow.Status, updates, event); err != nil {
			return err
		}
		escrow.Status = model.EscrowStatusReleased
		escrow.ReleasedAt = &now
		escrow.ReleaseReason = model.ReleaseReasonBuyerConfirmed
		escrow.ReleasedBy = buyerId
		out = escrow
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.markPayable(out)
	l.notifier.Notify(out.SellerId, gateway.NotifyEscrowReleased, notifyPayload(out))

	if rating != 0 {
		if rating < 1 || rating > 5 {
			return out, fmt.Errorf("%w: 评分必须在1-5之间", ErrValidation)
		}
		if err := l.ratings.RecordRating(out.OrderId, out.SellerId, buyerId, rating, feedback); err != nil {
			logger.Error("Failed to record rating for order %s: %v", out.OrderId, err)
		}
	}
	return out, nil
}

// InitiateDispute 买家发起争议，active|shipped -> disputed。
// 同一托管同时只允许一条未处理的争议。
func (l *EscrowLogic) InitiateDispute(escrowId, buyerId, reason, description, evidence string) (*model.EscrowModel, *model.DisputeModel, error) {
	if reason == "" {
		return nil, nil, fmt.Errorf("%w: 争议原因不能为空", ErrValidation)
	}
	if evidence == "" {
		return nil, nil, fmt.Errorf("%w: 争议凭证不能为空", ErrValidation)
	}

	var outEscrow *model.EscrowModel
	var outDispute *model.DisputeModel
	err := l.transition(escrowId, opInitiateDispute, func(escrow *model.EscrowModel) error {
		if escrow.BuyerId != buyerId {
			return ErrUnauthorized
		}
		// 状态转移表已挡掉 disputed 状态；这里按争议表再校验一次，
		// 状态列与争议表不一致时拒绝建新争议
		if _, err := l.store.GetOpenDispute(escrow.Id); err == nil {
			return ErrDisputeExists
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		dispute := &model.DisputeModel{
			Id:          uuid.NewString(),
			EscrowId:    escrow.Id,
			InitiatedBy: buyerId,
			Reason:      reason,
			Description: description,
			Evidence:    evidence,
			Status:      model.DisputeStatusOpen,
		}
		updates := map[string]interface{}{
			"status": model.EscrowStatusDisputed,
		}
		event := newEvent(escrow.Id, model.EventTypeDisputeOpened, buyerId, map[string]interface{}{
			"dispute_id": dispute.Id,
			"reason":     reason,
		})
		if err := l.store.OpenDispute(escrow.Id, escrow.Status, updates, dispute, event); err != nil {
			return err
		}
		escrow.Status = model.EscrowStatusDisputed
		outEscrow = escrow
		outDispute = dispute
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.notifier.Notify(outEscrow.SellerId, gateway.NotifyDisputeOpened, map[string]interface{}{
		"escrow_id":  outEscrow.Id,
		"order_id":   outEscrow.OrderId,
		"dispute_id": outDispute.Id,
		"reason":     outDispute.Reason,
	})
	return outEscrow, outDispute, nil
}

// AutoRelease 定时任务触发的到期自动放款，active|shipped -> released。
// 处理标记与状态转移在同一原子单元内提交，两次触发至多一次生效。
func (l *EscrowLogic) AutoRelease(escrowId string) (*model.EscrowModel, error) {
	var out *model.EscrowModel
	err := l.transition(escrowId, opAutoRelease, func(escrow *model.EscrowModel) error {
		now := l.now()
		if escrow.AutoReleaseProcessed || escrow.ReleaseDate.After(now) {
			return ErrInvalidStateTransition
		}
		updates := map[string]interface{}{
			"status":                 model.EscrowStatusReleased,
			"released_at":            now,
			"release_reason":         model.ReleaseReasonAutoReleased,
			"released_by":            "",
			"auto_release_processed": true,
		}
		event := newEvent(escrow.Id, model.EventTypeAutoReleased, "", map[string]interface{}{
			"release_reason": model.ReleaseReasonAutoReleased,
			"release_date":   escrow.ReleaseDate.Format(time.RFC3339),
		})
		if err := l.store.ApplyTransition(escrow.Id, escrow.Status, updates, event); err != nil {
			return err
		}
		escrow.Status = model.EscrowStatusReleased
		escrow.ReleasedAt = &now
		escrow.ReleaseReason = model.ReleaseReasonAutoReleased
		escrow.AutoReleaseProcessed = true
		out = escrow
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.markPayable(out)
	l.notifier.Notify(out.BuyerId, gateway.NotifyEscrowAutoRelease, notifyPayload(out))
	l.notifier.Notify(out.SellerId, gateway.NotifyEscrowAutoRelease, notifyPayload(out))
	return out, nil
}

// GetEscrow 获取托管详情
func (l *EscrowLogic) GetEscrow(id string) (*model.EscrowModel, error) {
	escrow, err := l.store.GetEscrow(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return escrow, nil
}

// ListEscrows 按买家/卖家/状态查询托管列表
func (l *EscrowLogic) ListEscrows(filter ledger.ListFilter) ([]model.EscrowModel, int64, error) {
	return l.store.ListEscrows(filter)
}

// GetEvents 获取托管的审计事件
func (l *EscrowLogic) GetEvents(escrowId string) ([]model.EscrowEventModel, error) {
	if _, err := l.GetEscrow(escrowId); err != nil {
		return nil, err
	}
	return l.store.ListEvents(escrowId)
}

// GetStatistics 获取托管统计信息，period: day/week/month/all
func (l *EscrowLogic) GetStatistics(period string) (map[string]interface{}, error) {
	var since time.Time
	now := l.now()
	switch period {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "", "all":
	default:
		return nil, fmt.Errorf("%w: 不支持的统计周期 %s", ErrValidation, period)
	}

	stats, err := l.store.Stats(since)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(stats.CountsByStatus))
	for status, count := range stats.CountsByStatus {
		counts[string(status)] = count
	}
	return map[string]interface{}{
		"total_escrows":   stats.TotalCount,
		"by_status":       counts,
		"held_amount":     stats.HeldAmount.StringFixed(2),
		"released_count":  stats.ReleasedCount,
		"released_amount": stats.ReleasedAmount.StringFixed(2),
		"open_disputes":   stats.OpenDisputes,
	}, nil
}

// transition 读取-校验-条件写入。遇到并发冲突时重新读取、
// 重新校验：若新状态下操作不再合法，返回 ErrInvalidStateTransition，
// 不盲目按原意图重试。
func (l *EscrowLogic) transition(escrowId string, op operation, apply func(escrow *model.EscrowModel) error) error {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		escrow, err := l.store.GetEscrow(escrowId)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !canTransition(op, escrow.Status) {
			return ErrInvalidStateTransition
		}

		err = apply(escrow)
		if errors.Is(err, ledger.ErrConcurrentModification) {
			logger.Warn("Concurrent modification on escrow %s during %s, revalidating (attempt %d)",
				escrowId, op, attempt+1)
			continue
		}
		return err
	}
	// 重试耗尽意味着状态持续被其他调用方改写，按当前意图不再合法处理
	return ErrInvalidStateTransition
}

// markPayable 终态转移后翻转分账状态，失败只记录日志，
// 由分账引擎自行重试，绝不回滚已提交的状态转移
func (l *EscrowLogic) markPayable(escrow *model.EscrowModel) {
	if err := l.payouts.MarkPayable(escrow.OrderId); err != nil {
		logger.Error("Failed to mark order %s payable after release of escrow %s: %v",
			escrow.OrderId, escrow.Id, err)
	}
}

// newEvent 构造审计事件，actor 为空表示系统/定时任务
func newEvent(escrowId, eventType, actor string, metadata map[string]interface{}) *model.EscrowEventModel {
	return &model.EscrowEventModel{
		Id:        uuid.NewString(),
		EscrowId:  escrowId,
		EventType: eventType,
		Actor:     actor,
		Metadata:  metadataJSON(metadata),
	}
}

func metadataJSON(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		logger.Error("Failed to marshal event metadata: %v", err)
		return ""
	}
	return string(data)
}

func notifyPayload(escrow *model.EscrowModel) map[string]interface{} {
	return map[string]interface{}{
		"escrow_id": escrow.Id,
		"order_id":  escrow.OrderId,
		"status":    string(escrow.Status),
		"amount":    escrow.Amount.StringFixed(2),
	}
}
