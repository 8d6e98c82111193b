package logic

import (
	"fmt"
	"testing"

	"github.com/blues/mes/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDisputedEscrow 创建一条已进入争议状态的托管
func newDisputedEscrow(t *testing.T, amount string) (*DisputeLogic, *testDeps, *model.EscrowModel, *model.DisputeModel) {
	t.Helper()
	l, deps := newTestLogic()
	escrow, err := l.CreateEscrow("O2", "", "buyer2", "seller2", decimal.RequireFromString(amount))
	require.NoError(t, err)
	_, dispute, err := l.InitiateDispute(escrow.Id, "buyer2", "item_not_as_described", "描述不符", "photo.jpg")
	require.NoError(t, err)

	d := NewDisputeLogic(deps.store, deps.payment, deps.payouts, deps.notifier)
	return d, deps, escrow, dispute
}

func TestResolveDisputeSplit(t *testing.T) {
	d, deps, _, dispute := newDisputedEscrow(t, "1000.00")

	escrow, resolved, err := d.ResolveDispute(dispute.Id, "admin1", 40, "双方各担部分责任")
	require.NoError(t, err)

	assert.Equal(t, model.EscrowStatusPartiallyRefunded, escrow.Status)
	assert.Equal(t, model.ReleaseReasonDisputeResolvedSplit, escrow.ReleaseReason)
	assert.Equal(t, "admin1", escrow.ReleasedBy)
	assert.Equal(t, model.DisputeStatusResolved, resolved.Status)
	assert.Equal(t, 40, resolved.AwardToBuyerPercentage)

	// 买家退款400，卖家到账600
	require.Len(t, deps.payment.Refunds, 1)
	assert.True(t, deps.payment.Refunds[0].Amount.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, "pay_O2", deps.payment.Refunds[0].Reference)
	require.Len(t, deps.payment.Payouts, 1)
	assert.True(t, deps.payment.Payouts[0].Amount.Equal(decimal.RequireFromString("600.00")))
	assert.Equal(t, "seller2", deps.payment.Payouts[0].SellerId)
	assert.Equal(t, 1, deps.payouts.MarkPayableCount("O2"))

	// 买卖双方各收到一条裁决通知
	assert.Len(t, deps.notifier.CallsFor("buyer2"), 2) // 创建 + 裁决
	assert.Len(t, deps.notifier.CallsFor("seller2"), 3) // 创建 + 争议 + 裁决
}

func TestResolveDisputeSellerWins(t *testing.T) {
	d, deps, _, dispute := newDisputedEscrow(t, "1000.00")

	escrow, _, err := d.ResolveDispute(dispute.Id, "admin1", 0, "凭证支持卖家")
	require.NoError(t, err)

	// 全额放给卖家走 released 终态
	assert.Equal(t, model.EscrowStatusReleased, escrow.Status)
	assert.Equal(t, model.ReleaseReasonDisputeResolvedSeller, escrow.ReleaseReason)
	assert.Empty(t, deps.payment.Refunds)
	require.Len(t, deps.payment.Payouts, 1)
	assert.True(t, deps.payment.Payouts[0].Amount.Equal(decimal.RequireFromString("1000.00")))
}

func TestResolveDisputeFullRefund(t *testing.T) {
	d, deps, _, dispute := newDisputedEscrow(t, "1000.00")

	escrow, _, err := d.ResolveDispute(dispute.Id, "admin1", 100, "凭证支持买家")
	require.NoError(t, err)

	assert.Equal(t, model.EscrowStatusPartiallyRefunded, escrow.Status)
	require.Len(t, deps.payment.Refunds, 1)
	assert.True(t, deps.payment.Refunds[0].Amount.Equal(decimal.RequireFromString("1000.00")))
	// 卖家金额为零，不产生打款
	assert.Empty(t, deps.payment.Payouts)
}

func TestResolveDisputeExactComplement(t *testing.T) {
	// 任意百分比下退款与卖家金额之和都精确等于托管金额
	amount := decimal.RequireFromString("99.99")
	for pct := 0; pct <= 100; pct++ {
		t.Run(fmt.Sprintf("pct_%d", pct), func(t *testing.T) {
			refund := amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
			seller := amount.Sub(refund)
			assert.True(t, refund.Add(seller).Equal(amount),
				"pct=%d refund=%s seller=%s", pct, refund, seller)
			assert.True(t, refund.GreaterThanOrEqual(decimal.Zero))
			assert.True(t, seller.GreaterThanOrEqual(decimal.Zero))
		})
	}
}

func TestResolveDisputeSplitOddAmount(t *testing.T) {
	d, deps, _, dispute := newDisputedEscrow(t, "99.99")

	_, _, err := d.ResolveDispute(dispute.Id, "admin1", 33, "部分退款")
	require.NoError(t, err)

	// 33% of 99.99 = 32.9967 -> 33.00，卖家拿精确补数66.99
	require.Len(t, deps.payment.Refunds, 1)
	assert.True(t, deps.payment.Refunds[0].Amount.Equal(decimal.RequireFromString("33.00")))
	require.Len(t, deps.payment.Payouts, 1)
	assert.True(t, deps.payment.Payouts[0].Amount.Equal(decimal.RequireFromString("66.99")))
}

func TestResolveDisputeValidation(t *testing.T) {
	d, _, _, dispute := newDisputedEscrow(t, "1000.00")

	_, _, err := d.ResolveDispute(dispute.Id, "", 40, "x")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = d.ResolveDispute(dispute.Id, "admin1", -1, "x")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = d.ResolveDispute(dispute.Id, "admin1", 101, "x")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = d.ResolveDispute("missing", "admin1", 40, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveDisputeTwice(t *testing.T) {
	d, deps, escrowBefore, dispute := newDisputedEscrow(t, "1000.00")

	_, _, err := d.ResolveDispute(dispute.Id, "admin1", 40, "第一次裁决")
	require.NoError(t, err)

	// 已关闭的争议不允许再次裁决
	_, _, err = d.ResolveDispute(dispute.Id, "admin2", 60, "第二次裁决")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// 只有第一次裁决落账
	stored, err := deps.store.GetEscrow(escrowBefore.Id)
	require.NoError(t, err)
	assert.Equal(t, "admin1", stored.ReleasedBy)
	require.Len(t, deps.payment.Refunds, 1)
	assert.True(t, deps.payment.Refunds[0].Amount.Equal(decimal.RequireFromString("400.00")))
}

func TestResolveDisputeDownstreamFailureDoesNotRollBack(t *testing.T) {
	d, deps, escrowBefore, dispute := newDisputedEscrow(t, "1000.00")
	deps.payment.RefundErr = fmt.Errorf("支付网关不可用")

	// 资金归属已落账，退款失败只记日志
	escrow, _, err := d.ResolveDispute(dispute.Id, "admin1", 40, "部分退款")
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusPartiallyRefunded, escrow.Status)

	stored, err := deps.store.GetEscrow(escrowBefore.Id)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowStatusPartiallyRefunded, stored.Status)
}

func TestGetDisputeNotFound(t *testing.T) {
	d, _, _, _ := newDisputedEscrow(t, "1000.00")

	_, err := d.GetDispute("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
