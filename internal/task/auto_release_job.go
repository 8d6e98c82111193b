package task

import (
	"time"

	"github.com/blues/mes/internal/config"
	"github.com/blues/mes/internal/logger"
	"github.com/blues/mes/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// AutoReleaseJob 保护期到期自动放款任务。
// 单笔候选失败不会中断整轮扫描，未提交的候选下一轮继续重试。
type AutoReleaseJob struct {
	escrowLogic *logic.EscrowLogic
	config      *config.Config
}

// NewAutoReleaseJob 创建自动放款任务
func NewAutoReleaseJob(escrowLogic *logic.EscrowLogic, cfg *config.Config) *AutoReleaseJob {
	return &AutoReleaseJob{
		escrowLogic: escrowLogic,
		config:      cfg,
	}
}

// GetName 获取任务名称
func (j *AutoReleaseJob) GetName() string {
	return "escrow_auto_release"
}

// GetSchedule 获取调度配置
func (j *AutoReleaseJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *AutoReleaseJob) Execute() {
	logger.Info("Starting escrow auto release sweep")

	batch := j.config.Task.BatchSize
	if batch <= 0 {
		batch = 100
	}
	result := j.escrowLogic.RunAutoReleaseSweep(batch)

	if result.Failed > 0 {
		logger.Warn("Auto release sweep finished with %d failures, candidates will be retried", result.Failed)
	}
}
