package task

import (
	"github.com/blues/mes/internal/config"
	"github.com/blues/mes/internal/logger"
	"github.com/blues/mes/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// Manager 任务管理器
type Manager struct {
	scheduler   gocron.Scheduler
	escrowLogic *logic.EscrowLogic
	config      *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(escrowLogic *logic.EscrowLogic, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler:   s,
		escrowLogic: escrowLogic,
		config:      cfg,
	}
}

// Start 启动任务管理器
func Start(escrowLogic *logic.EscrowLogic, cfg *config.Config) *Manager {
	manager := NewManager(escrowLogic, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	// 注册自动放款任务
	m.RegisterAutoReleaseJob()
}

// RegisterAutoReleaseJob 注册自动放款任务
func (m *Manager) RegisterAutoReleaseJob() {
	job := NewAutoReleaseJob(m.escrowLogic, m.config)

	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
