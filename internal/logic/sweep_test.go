package logic

import (
	"fmt"
	"testing"
	"time"

	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore 包装内存账本，对指定托管的状态转移注入一次失败
type flakyStore struct {
	*ledger.MemoryStore
	failId  string
	failErr error
}

func (s *flakyStore) ApplyTransition(id string, expected model.EscrowStatus, updates map[string]interface{}, event *model.EscrowEventModel) error {
	if id == s.failId && s.failErr != nil {
		err := s.failErr
		s.failErr = nil
		return err
	}
	return s.MemoryStore.ApplyTransition(id, expected, updates, event)
}

func overdueEscrow(orderId string) *model.EscrowModel {
	return &model.EscrowModel{
		OrderId:          orderId,
		PaymentReference: "pay_" + orderId,
		BuyerId:          "buyer_" + orderId,
		SellerId:         "seller_" + orderId,
		Amount:           decimal.RequireFromString("100.00"),
		Fee:              decimal.RequireFromString("1.00"),
		Status:           model.EscrowStatusActive,
		ReleaseDate:      time.Now().Add(-time.Hour),
	}
}

func TestRunAutoReleaseSweep(t *testing.T) {
	l, deps := newTestLogic()

	// 两条到期（一条已发货）、一条未到期
	dueActive := overdueEscrow("S1")
	seedEscrow(t, deps.store, dueActive)
	dueShipped := overdueEscrow("S2")
	dueShipped.Status = model.EscrowStatusShipped
	seedEscrow(t, deps.store, dueShipped)
	notDue := overdueEscrow("S3")
	notDue.ReleaseDate = time.Now().Add(24 * time.Hour)
	seedEscrow(t, deps.store, notDue)

	result := l.RunAutoReleaseSweep(100)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Released)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	for _, id := range []string{dueActive.Id, dueShipped.Id} {
		stored, err := deps.store.GetEscrow(id)
		require.NoError(t, err)
		assert.Equal(t, model.EscrowStatusReleased, stored.Status)
		assert.Equal(t, model.ReleaseReasonAutoReleased, stored.ReleaseReason)
	}
	assert.Equal(t, 1, deps.payouts.MarkPayableCount("S1"))
	assert.Equal(t, 1, deps.payouts.MarkPayableCount("S2"))

	stored, err := deps.store.GetEscrow(notDue.Id)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusActive, stored.Status)
}

func TestRunAutoReleaseSweepIdempotent(t *testing.T) {
	l, deps := newTestLogic()
	seedEscrow(t, deps.store, overdueEscrow("S1"))

	first := l.RunAutoReleaseSweep(100)
	assert.Equal(t, 1, first.Released)

	// 第二轮无候选，不重复放款
	second := l.RunAutoReleaseSweep(100)
	assert.Equal(t, 0, second.Candidates)
	assert.Equal(t, 0, second.Released)
	assert.Equal(t, 1, deps.payouts.MarkPayableCount("S1"))
}

func TestRunAutoReleaseSweepIsolatesFailures(t *testing.T) {
	l, deps := newTestLogic()
	broken := overdueEscrow("S1")
	seedEscrow(t, deps.store, broken)
	healthy := overdueEscrow("S2")
	seedEscrow(t, deps.store, healthy)

	store := &flakyStore{
		MemoryStore: deps.store,
		failId:      broken.Id,
		failErr:     fmt.Errorf("数据库连接中断"),
	}
	l.store = store

	// 单笔失败不中断其余候选
	result := l.RunAutoReleaseSweep(100)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 1, result.Failed)

	// 失败的留待下一轮重试
	retry := l.RunAutoReleaseSweep(100)
	assert.Equal(t, 1, retry.Candidates)
	assert.Equal(t, 1, retry.Released)
}

func TestRunAutoReleaseSweepBatchLimit(t *testing.T) {
	l, deps := newTestLogic()
	for i := 0; i < 5; i++ {
		seedEscrow(t, deps.store, overdueEscrow(fmt.Sprintf("S%d", i)))
	}

	result := l.RunAutoReleaseSweep(3)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 3, result.Released)

	rest := l.RunAutoReleaseSweep(3)
	assert.Equal(t, 2, rest.Candidates)
	assert.Equal(t, 2, rest.Released)
}
