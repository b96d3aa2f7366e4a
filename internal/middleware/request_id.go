package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taole4114/2.-Script-YTB/internal/logger"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// ginRequestIDKey Gin 上下文键
const ginRequestIDKey = "request_id"

// maxRequestIDLen 上游传入的请求 ID 超过该长度时重新生成
const maxRequestIDLen = 64

// RequestIDMiddleware 请求 ID 中间件
// 沿用上游传入的 X-Request-ID，否则生成新的 UUID，并注入 context 供日志使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		c.Set(ginRequestIDKey, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}

// GetRequestIDFromGin 从 Gin 上下文获取请求 ID
func GetRequestIDFromGin(c *gin.Context) string {
	return c.GetString(ginRequestIDKey)
}
