package router

import (
	"github.com/blues/mes/internal/handler"
	"github.com/blues/mes/internal/logic"
	"github.com/gin-gonic/gin"
)

func Setup(escrowLogic *logic.EscrowLogic, disputeLogic *logic.DisputeLogic) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "marketplace-escrow-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 托管相关路由
		escrowHandler := handler.NewEscrowHandler(escrowLogic)
		escrows := v1.Group("/escrows")
		{
			escrows.POST("", escrowHandler.CreateEscrow)
			escrows.GET("", escrowHandler.ListEscrows)
			escrows.GET("/stats", escrowHandler.GetStatistics)
			escrows.GET("/:id", escrowHandler.GetEscrow)
			escrows.GET("/:id/events", escrowHandler.GetEscrowEvents)
			escrows.POST("/:id/ship", escrowHandler.MarkShipped)
			escrows.POST("/:id/confirm", escrowHandler.ConfirmReceipt)
			escrows.POST("/:id/dispute", escrowHandler.InitiateDispute)
		}

		// 争议相关路由
		disputeHandler := handler.NewDisputeHandler(disputeLogic)
		disputes := v1.Group("/disputes")
		{
			disputes.GET("/:id", disputeHandler.GetDispute)
			disputes.POST("/:id/resolve", disputeHandler.ResolveDispute)
		}

		// 内部运维路由（由调度器/运维触发，不对终端用户开放）
		internal := v1.Group("/internal")
		{
			internal.POST("/auto-release/run", escrowHandler.RunAutoReleaseSweep)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-User-Id, X-Admin-Id")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
