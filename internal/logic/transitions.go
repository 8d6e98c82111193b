package logic

import (
	"github.com/blues/mes/internal/model"
)

// operation 状态机操作
type operation string

const (
	opMarkShipped     operation = "mark_shipped"
	opConfirmReceipt  operation = "confirm_receipt"
	opInitiateDispute operation = "initiate_dispute"
	opAutoRelease     operation = "auto_release"
	opResolveDispute  operation = "resolve_dispute"
)

// legalFrom 合法状态转移表，状态机的唯一判定入口。
// 收货确认仅允许在 active 状态发起，保持现行线上策略，
// 不放宽到 shipped（争议可以从 shipped 发起，两者口径不同）。
var legalFrom = map[operation][]model.EscrowStatus{
	opMarkShipped:     {model.EscrowStatusActive},
	opConfirmReceipt:  {model.EscrowStatusActive},
	opInitiateDispute: {model.EscrowStatusActive, model.EscrowStatusShipped},
	opAutoRelease:     {model.EscrowStatusActive, model.EscrowStatusShipped},
	opResolveDispute:  {model.EscrowStatusDisputed},
}

// canTransition 判断操作在当前状态下是否合法
func canTransition(op operation, status model.EscrowStatus) bool {
	for _, allowed := range legalFrom[op] {
		if status == allowed {
			return true
		}
	}
	return false
}
