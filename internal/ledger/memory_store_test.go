package ledger

import (
	"testing"
	"time"

	"github.com/blues/mes/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, status model.EscrowStatus) (*MemoryStore, *model.EscrowModel) {
	t.Helper()
	store := NewMemoryStore()
	escrow := &model.EscrowModel{
		Id:          uuid.NewString(),
		OrderId:     "O1",
		BuyerId:     "buyer1",
		SellerId:    "seller1",
		Amount:      decimal.RequireFromString("100.00"),
		Fee:         decimal.RequireFromString("1.00"),
		Status:      status,
		ReleaseDate: time.Now().AddDate(0, 0, 14),
	}
	event := &model.EscrowEventModel{
		Id:        uuid.NewString(),
		EscrowId:  escrow.Id,
		EventType: model.EventTypeCreated,
	}
	require.NoError(t, store.CreateEscrow(escrow, event))
	return store, escrow
}

func TestApplyTransitionGuardsStatus(t *testing.T) {
	store, escrow := seedStore(t, model.EscrowStatusActive)

	updates := map[string]interface{}{"status": model.EscrowStatusShipped}
	event := &model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeShipped}
	require.NoError(t, store.ApplyTransition(escrow.Id, model.EscrowStatusActive, updates, event))

	stored, err := store.GetEscrow(escrow.Id)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusShipped, stored.Status)
	assert.Equal(t, int64(1), stored.Version)

	// 期望状态过期时返回并发冲突，不追加事件
	stale := map[string]interface{}{"status": model.EscrowStatusReleased}
	staleEvent := &model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeReceiptConfirmed}
	err = store.ApplyTransition(escrow.Id, model.EscrowStatusActive, stale, staleEvent)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	events, err := store.ListEvents(escrow.Id)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCreateEscrowDuplicateOrder(t *testing.T) {
	store, escrow := seedStore(t, model.EscrowStatusActive)

	// 同一订单的第二条托管记录由唯一性约束拒绝
	dup := &model.EscrowModel{
		Id:      uuid.NewString(),
		OrderId: escrow.OrderId,
		Amount:  decimal.RequireFromString("100.00"),
		Status:  model.EscrowStatusActive,
	}
	err := store.CreateEscrow(dup, &model.EscrowEventModel{
		Id:        uuid.NewString(),
		EscrowId:  dup.Id,
		EventType: model.EventTypeCreated,
	})
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	// 落败方不产生任何事件
	events, err := store.ListEvents(dup.Id)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestApplyTransitionNotFound(t *testing.T) {
	store := NewMemoryStore()

	err := store.ApplyTransition("missing", model.EscrowStatusActive,
		map[string]interface{}{"status": model.EscrowStatusShipped},
		&model.EscrowEventModel{Id: uuid.NewString(), EscrowId: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseDisputeGuardsBothRecords(t *testing.T) {
	store, escrow := seedStore(t, model.EscrowStatusDisputed)
	dispute := &model.DisputeModel{
		Id:          uuid.NewString(),
		EscrowId:    escrow.Id,
		InitiatedBy: "buyer1",
		Reason:      "not_received",
		Status:      model.DisputeStatusOpen,
	}
	require.NoError(t, store.OpenDispute(escrow.Id, model.EscrowStatusDisputed,
		map[string]interface{}{"status": model.EscrowStatusDisputed}, dispute,
		&model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeDisputeOpened}))

	now := time.Now()
	updates := map[string]interface{}{
		"status":         model.EscrowStatusReleased,
		"released_at":    now,
		"release_reason": model.ReleaseReasonDisputeResolvedSeller,
		"released_by":    "admin1",
	}
	disputeUpdates := map[string]interface{}{
		"status":                    model.DisputeStatusResolved,
		"resolved_by":               "admin1",
		"resolution":                "x",
		"award_to_buyer_percentage": 0,
		"resolved_at":               now,
	}
	event := &model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeDisputeResolved}
	require.NoError(t, store.CloseDispute(escrow.Id, model.EscrowStatusDisputed, updates, dispute.Id, disputeUpdates, event))

	storedDispute, err := store.GetDispute(dispute.Id)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeStatusResolved, storedDispute.Status)
	require.NotNil(t, storedDispute.ResolvedAt)

	// 已关闭的争议再次关闭是并发冲突
	err = store.CloseDispute(escrow.Id, model.EscrowStatusDisputed, updates, dispute.Id, disputeUpdates, event)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestGetOpenDispute(t *testing.T) {
	store, escrow := seedStore(t, model.EscrowStatusDisputed)

	_, err := store.GetOpenDispute(escrow.Id)
	assert.ErrorIs(t, err, ErrNotFound)

	dispute := &model.DisputeModel{
		Id:       uuid.NewString(),
		EscrowId: escrow.Id,
		Status:   model.DisputeStatusOpen,
	}
	require.NoError(t, store.OpenDispute(escrow.Id, model.EscrowStatusDisputed,
		map[string]interface{}{"status": model.EscrowStatusDisputed}, dispute,
		&model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeDisputeOpened}))

	open, err := store.GetOpenDispute(escrow.Id)
	require.NoError(t, err)
	assert.Equal(t, dispute.Id, open.Id)
}

func TestFindAutoReleasableFilters(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	add := func(orderId string, status model.EscrowStatus, releaseDate time.Time, processed bool) string {
		escrow := &model.EscrowModel{
			Id:                   uuid.NewString(),
			OrderId:              orderId,
			Amount:               decimal.RequireFromString("10.00"),
			Status:               status,
			ReleaseDate:          releaseDate,
			AutoReleaseProcessed: processed,
		}
		require.NoError(t, store.CreateEscrow(escrow,
			&model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeCreated}))
		return escrow.Id
	}

	dueId := add("O1", model.EscrowStatusActive, now.Add(-time.Hour), false)
	add("O2", model.EscrowStatusActive, now.Add(time.Hour), false)        // 未到期
	add("O3", model.EscrowStatusReleased, now.Add(-time.Hour), false)     // 已终态
	add("O4", model.EscrowStatusDisputed, now.Add(-time.Hour), false)     // 争议中
	add("O5", model.EscrowStatusActive, now.Add(-time.Hour), true)        // 已处理
	shippedId := add("O6", model.EscrowStatusShipped, now.Add(-2*time.Hour), false)

	matched, err := store.FindAutoReleasable(now, 10)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	// 按到期时间升序
	assert.Equal(t, shippedId, matched[0].Id)
	assert.Equal(t, dueId, matched[1].Id)

	limited, err := store.FindAutoReleasable(now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListEscrowsPagination(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		escrow := &model.EscrowModel{
			Id:      uuid.NewString(),
			OrderId: uuid.NewString(),
			BuyerId: "buyer1",
			Amount:  decimal.RequireFromString("10.00"),
			Status:  model.EscrowStatusActive,
		}
		require.NoError(t, store.CreateEscrow(escrow,
			&model.EscrowEventModel{Id: uuid.NewString(), EscrowId: escrow.Id, EventType: model.EventTypeCreated}))
	}

	page1, total, err := store.ListEscrows(ListFilter{BuyerId: "buyer1", Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page1, 2)

	page3, _, err := store.ListEscrows(ListFilter{BuyerId: "buyer1", Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	none, total, err := store.ListEscrows(ListFilter{BuyerId: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, none)
}
