package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taole4114/2.-Script-YTB/internal/metrics"
	middlewarepkg "github.com/taole4114/2.-Script-YTB/internal/middleware"
)

// NewRouter 创建 Gin 路由，limiter 为空时不限流
func NewRouter(container *AppContainer, handlers *Handlers, limiter *middlewarepkg.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middlewarepkg.RequestIDMiddleware(),
		RequestLogger(container.Logger),
		CORS(),
		metrics.PrometheusMiddleware(),
	)

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(container.KV))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if limiter != nil {
		api.Use(middlewarepkg.RateLimitMiddleware(limiter))
	}
	RegisterRoutes(api, handlers)
	return router
}

// RegisterRoutes 注册业务路由
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	// API Key 管理
	api.GET("/credentials", h.Credentials.List)
	api.PUT("/credentials", h.Credentials.Submit)

	// 模型目录
	api.GET("/models", h.Models.ListModels)

	// 脚本生成
	api.POST("/outline", h.Scripts.GenerateOutline)
	api.POST("/script-parts", h.Scripts.GenerateScriptPart)
	api.POST("/script/export", h.Scripts.Export)

	// 批量生成
	api.POST("/script-jobs", h.Scripts.CreateJob)
	api.GET("/script-jobs/:id", h.Scripts.GetJob)
}
