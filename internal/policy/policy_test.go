package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFee(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"50.00", "0.50"},    // 1% 恰好等于最低费
		{"49.99", "0.50"},    // 低于最低费取最低费
		{"10.00", "0.50"},
		{"0.00", "0.50"},
		{"100.00", "1.00"},
		{"1000.00", "10.00"},
		{"123.45", "1.23"},
	}

	for _, c := range cases {
		amount := decimal.RequireFromString(c.amount)
		want := decimal.RequireFromString(c.want)
		got := Fee(amount)
		assert.True(t, want.Equal(got), "Fee(%s) = %s, want %s", c.amount, got, c.want)
	}
}

func TestProtectionPeriodDays(t *testing.T) {
	// 实物优先于数字
	assert.Equal(t, 21, ProtectionPeriodDays(true, false))
	assert.Equal(t, 21, ProtectionPeriodDays(true, true))
	assert.Equal(t, 3, ProtectionPeriodDays(false, true))
	assert.Equal(t, 14, ProtectionPeriodDays(false, false))
}
