package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/logger"
)

// RequestLogger 请求日志中间件
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		log := logger.FromContext(c.Request.Context(), base)
		if status >= 500 {
			log.Warn("HTTP Request", fields...)
			return
		}
		log.Info("HTTP Request", fields...)
	}
}

// CORS 跨域中间件，允许的来源由 CORS_ALLOW_ORIGINS 配置
func CORS() gin.HandlerFunc {
	allowedOrigins := getEnvList("CORS_ALLOW_ORIGINS")
	allowedHeaders := strings.Join(defaultIfEmpty(
		getEnvList("CORS_ALLOW_HEADERS"),
		[]string{"Content-Type", "Content-Length", "Accept", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID"},
	), ", ")
	allowedMethods := strings.Join([]string{"GET", "POST", "PUT", "OPTIONS"}, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && stringInSlice(origin, allowedOrigins):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
