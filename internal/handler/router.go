package handler

import (
	"cashledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(AccessLogMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 渠道相关
		channel := api.Group("/channel")
		{
			channel.POST("/create", h.CreateChannel)
			channel.GET("/list", h.ListChannels)
			channel.POST("/status", h.SetChannelStatus)
		}

		// 交易流水
		transaction := api.Group("/transaction")
		{
			transaction.POST("/record", h.RecordTransaction)
			transaction.POST("/:id/edit", h.EditTransaction)
			transaction.POST("/:id/delete", h.DeleteTransaction)
			transaction.GET("/list", h.ListTransactions)
		}

		// 余额
		balance := api.Group("/balance")
		{
			balance.GET("/live", h.LiveBalance)
			balance.GET("/history", h.BalanceHistory)
			balance.GET("/daily", h.DailyBalances)
			balance.GET("/adjustments", h.ListAdjustments)
			balance.POST("/recalculate", h.RecalculateBalances)
			balance.POST("/adjust", h.AdjustBalance)
		}

		// 结算
		settlement := api.Group("/settlement")
		{
			settlement.GET("/preview", h.SettlementPreview)
			settlement.POST("/execute", h.ExecuteSettlement)
			settlement.GET("/history", h.SettlementHistory)
			settlement.GET("/:id", h.SettlementDetail)
		}

		// 报表
		report := api.Group("/report")
		{
			report.GET("/daily", h.DailyReport)
			report.POST("/carry-forward", h.PersistCarryForward)
			report.POST("/monthly", h.MonthlyReport)
			report.POST("/yearly", h.YearlyReport)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
