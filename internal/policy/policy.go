package policy

import (
	"github.com/shopspring/decimal"
)

// 费率与保护期策略，纯函数，无任何 I/O

var (
	feeRate = decimal.NewFromFloat(0.01) // 托管服务费率 1%
	feeMin  = decimal.NewFromFloat(0.50) // 最低服务费
)

// 保护期天数
const (
	PeriodPhysicalDays = 21 // 含实物商品
	PeriodDigitalDays  = 3  // 纯数字商品
	PeriodDefaultDays  = 14 // 商品构成未知
)

// Fee 计算托管服务费: max(0.50, amount * 1%)
func Fee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(feeRate).Round(2)
	if fee.LessThan(feeMin) {
		return feeMin
	}
	return fee
}

// ProtectionPeriodDays 根据订单商品构成计算保护期天数。
// 只要包含实物商品（含数字+实物混合订单）即取实物保护期，
// 全部为数字商品取数字保护期，构成未知取默认保护期。
func ProtectionPeriodDays(hasPhysical, hasDigital bool) int {
	if hasPhysical {
		return PeriodPhysicalDays
	}
	if hasDigital {
		return PeriodDigitalDays
	}
	return PeriodDefaultDays
}
