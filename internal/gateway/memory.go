package gateway

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// 内存协作方实现，与 HTTP 客户端遵循同一契约，
// 用于单元测试和未配置下游地址的本地运行

// MemoryPaymentProcessor 内存支付处理方
type MemoryPaymentProcessor struct {
	mu         sync.Mutex
	References map[string]string // orderId -> 扣款凭证
	Refunds    []RefundCall
	Payouts    []PayoutCall
	RefundErr  error
	PayoutErr  error
}

// RefundCall 退款调用记录
type RefundCall struct {
	Reference string
	Amount    decimal.Decimal
}

// PayoutCall 打款调用记录
type PayoutCall struct {
	SellerId string
	Amount   decimal.Decimal
}

// NewMemoryPaymentProcessor 创建内存支付处理方
func NewMemoryPaymentProcessor() *MemoryPaymentProcessor {
	return &MemoryPaymentProcessor{References: make(map[string]string)}
}

func (p *MemoryPaymentProcessor) AmountCaptured(orderId string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ref, ok := p.References[orderId]; ok {
		return ref, nil
	}
	return "pay_" + orderId, nil
}

func (p *MemoryPaymentProcessor) Refund(reference string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RefundErr != nil {
		return p.RefundErr
	}
	p.Refunds = append(p.Refunds, RefundCall{Reference: reference, Amount: amount})
	return nil
}

func (p *MemoryPaymentProcessor) Payout(sellerId string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PayoutErr != nil {
		return p.PayoutErr
	}
	p.Payouts = append(p.Payouts, PayoutCall{SellerId: sellerId, Amount: amount})
	return nil
}

// MemoryOrderStore 内存订单服务
type MemoryOrderStore struct {
	mu           sync.Mutex
	Compositions map[string]ItemComposition
	Statuses     map[string]string
}

// NewMemoryOrderStore 创建内存订单服务
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		Compositions: make(map[string]ItemComposition),
		Statuses:     make(map[string]string),
	}
}

// SetComposition 预置订单商品构成
func (o *MemoryOrderStore) SetComposition(orderId string, composition ItemComposition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Compositions[orderId] = composition
}

func (o *MemoryOrderStore) GetItemComposition(orderId string) (ItemComposition, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Compositions[orderId], nil
}

func (o *MemoryOrderStore) GetOrderStatus(orderId string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status, ok := o.Statuses[orderId]; ok {
		return status, nil
	}
	return "paid", nil
}

// MemoryPayoutEngine 内存分账引擎
type MemoryPayoutEngine struct {
	mu       sync.Mutex
	Payable  []string
	FailNext error
}

// NewMemoryPayoutEngine 创建内存分账引擎
func NewMemoryPayoutEngine() *MemoryPayoutEngine {
	return &MemoryPayoutEngine{}
}

func (e *MemoryPayoutEngine) MarkPayable(orderId string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailNext != nil {
		err := e.FailNext
		e.FailNext = nil
		return err
	}
	e.Payable = append(e.Payable, orderId)
	return nil
}

// MarkPayableCount 订单被翻转为可支付的次数
func (e *MemoryPayoutEngine) MarkPayableCount(orderId string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, id := range e.Payable {
		if id == orderId {
			count++
		}
	}
	return count
}

// RatingCall 评分调用记录
type RatingCall struct {
	OrderId  string
	SellerId string
	BuyerId  string
	Rating   int
	Feedback string
}

// MemoryReputationStore 内存评价服务
type MemoryReputationStore struct {
	mu      sync.Mutex
	Ratings []RatingCall
}

// NewMemoryReputationStore 创建内存评价服务
func NewMemoryReputationStore() *MemoryReputationStore {
	return &MemoryReputationStore{}
}

func (r *MemoryReputationStore) RecordRating(orderId, sellerId, buyerId string, rating int, feedback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rating < 1 || rating > 5 {
		return fmt.Errorf("评分超出范围: %d", rating)
	}
	r.Ratings = append(r.Ratings, RatingCall{
		OrderId:  orderId,
		SellerId: sellerId,
		BuyerId:  buyerId,
		Rating:   rating,
		Feedback: feedback,
	})
	return nil
}

// NotifyCall 通知调用记录
type NotifyCall struct {
	UserId  string
	Kind    string
	Payload map[string]interface{}
}

// MemoryNotifier 内存通知器
type MemoryNotifier struct {
	mu    sync.Mutex
	Calls []NotifyCall
}

// NewMemoryNotifier 创建内存通知器
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Notify(userId, kind string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls = append(n.Calls, NotifyCall{UserId: userId, Kind: kind, Payload: payload})
}

// CallsFor 指定用户收到的通知
func (n *MemoryNotifier) CallsFor(userId string) []NotifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var calls []NotifyCall
	for _, call := range n.Calls {
		if call.UserId == userId {
			calls = append(calls, call)
		}
	}
	return calls
}
