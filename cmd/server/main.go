package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/blues/mes/internal/config"
	"github.com/blues/mes/internal/database"
	"github.com/blues/mes/internal/gateway"
	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/logger"
	"github.com/blues/mes/internal/logic"
	"github.com/blues/mes/internal/notify"
	"github.com/blues/mes/internal/router"
	"github.com/blues/mes/internal/task"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()
	logger.Setup(cfg.Log)
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	store := ledger.NewGormStore(db)

	// 初始化下游协作方客户端
	payment := gateway.NewHTTPPaymentProcessor(cfg.Gateway)
	orders := gateway.NewHTTPOrderStore(cfg.Gateway)
	payouts := gateway.NewHTTPPayoutEngine(cfg.Gateway)
	ratings := gateway.NewHTTPReputationStore(cfg.Gateway)

	// 初始化通知发布器
	notifier, err := notify.NewKafkaNotifier(cfg.Kafka)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka notifier: %v", err)
	}
	defer notifier.Close()

	// 初始化业务逻辑
	escrowLogic := logic.NewEscrowLogic(store, payment, orders, payouts, ratings, notifier)
	disputeLogic := logic.NewDisputeLogic(store, payment, payouts, notifier)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(escrowLogic, disputeLogic)

	// 启动定时任务
	taskManager := task.Start(escrowLogic, cfg)
	defer taskManager.Stop()

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := r.Run(":" + cfg.Server.Port); err != nil {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")
}
