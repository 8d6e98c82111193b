package task

import (
	"testing"
	"time"

	"github.com/blues/mes/internal/config"
	"github.com/blues/mes/internal/gateway"
	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/logic"
	"github.com/blues/mes/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoReleaseJobExecute(t *testing.T) {
	store := ledger.NewMemoryStore()
	escrow := &model.EscrowModel{
		Id:          uuid.NewString(),
		OrderId:     "O1",
		BuyerId:     "buyer1",
		SellerId:    "seller1",
		Amount:      decimal.RequireFromString("100.00"),
		Fee:         decimal.RequireFromString("1.00"),
		Status:      model.EscrowStatusActive,
		ReleaseDate: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateEscrow(escrow, &model.EscrowEventModel{
		Id:        uuid.NewString(),
		EscrowId:  escrow.Id,
		EventType: model.EventTypeCreated,
	}))

	escrowLogic := logic.NewEscrowLogic(store,
		gateway.NewMemoryPaymentProcessor(),
		gateway.NewMemoryOrderStore(),
		gateway.NewMemoryPayoutEngine(),
		gateway.NewMemoryReputationStore(),
		gateway.NewMemoryNotifier())

	cfg := &config.Config{Task: config.TaskConfig{Interval: 60, BatchSize: 100}}
	job := NewAutoReleaseJob(escrowLogic, cfg)
	assert.Equal(t, "escrow_auto_release", job.GetName())

	job.Execute()

	stored, err := store.GetEscrow(escrow.Id)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusReleased, stored.Status)
	assert.Equal(t, model.ReleaseReasonAutoReleased, stored.ReleaseReason)

	// 再次执行不产生第二次放款
	job.Execute()
	events, err := store.ListEvents(escrow.Id)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
