package logic

import (
	"errors"

	"github.com/blues/mes/internal/logger"
)

// SweepResult 自动放款扫描结果
type SweepResult struct {
	Candidates int `json:"candidates"`
	Released   int `json:"released"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// RunAutoReleaseSweep 扫描到期且未处理的托管并逐笔自动放款。
// 单笔失败只记录日志并留待下一轮重试，不中断本轮其余候选。
// 与买家确认收货等人为操作并发竞争时，输掉竞争的一侧会观察到
// 终态并按跳过处理。
func (l *EscrowLogic) RunAutoReleaseSweep(batch int) SweepResult {
	result := SweepResult{}

	candidates, err := l.store.FindAutoReleasable(l.now(), batch)
	if err != nil {
		logger.Error("Auto release sweep failed to fetch candidates: %v", err)
		return result
	}
	result.Candidates = len(candidates)

	for _, candidate := range candidates {
		_, err := l.AutoRelease(candidate.Id)
		switch {
		case err == nil:
			result.Released++
		case errors.Is(err, ErrInvalidStateTransition):
			// 另一调用方已经完成终态转移，或查询到执行之间状态已变
			result.Skipped++
		default:
			logger.Error("Auto release failed for escrow %s, will retry next sweep: %v",
				candidate.Id, err)
			result.Failed++
		}
	}

	logger.Info("Auto release sweep completed: %d candidates, %d released, %d skipped, %d failed",
		result.Candidates, result.Released, result.Skipped, result.Failed)
	return result
}
