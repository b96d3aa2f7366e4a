package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/dispatch"
	"github.com/taole4114/2.-Script-YTB/internal/logger"
	"github.com/taole4114/2.-Script-YTB/internal/script"
)

// StatusClientClosedRequest 客户端主动断开（nginx 约定）
const StatusClientClosedRequest = 499

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseError 返回错误响应，业务状态码映射到 HTTP 状态码
func ResponseError(c *gin.Context, code int, message string) {
	c.JSON(httpStatus(code), ErrorResponse(code, message))
}

// ResponseBadRequest 返回参数错误响应
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, CodeInvalidRequest, message)
}

// ResponseNotFound 返回资源不存在响应
func ResponseNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "资源不存在"
	}
	ResponseError(c, CodeNotFound, message)
}

// ResponseFromError 按错误类型返回响应
func ResponseFromError(c *gin.Context, err error) {
	code := ErrorCode(err)
	if code == CodeInternalError {
		logger.FromContext(c.Request.Context(), nil).Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	ResponseError(c, code, err.Error())
}

// ErrorCode 将领域错误归类为业务状态码
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrNoCredentialsConfigured):
		return CodeNoCredentials
	case errors.Is(err, dispatch.ErrAllCredentialsFailed):
		return CodeAllCredentialsFailed
	case errors.Is(err, context.Canceled):
		return CodeRequestCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeRequestTimeout
	case errors.Is(err, script.ErrJobNotFound):
		return CodeNotFound
	case errors.Is(err, script.ErrEmptyTitle),
		errors.Is(err, script.ErrEmptyOutline),
		errors.Is(err, script.ErrInvalidPartIndex),
		errors.Is(err, credential.ErrNoKeysSubmitted),
		errors.Is(err, credential.ErrOpenRouterModelRequired):
		return CodeInvalidRequest
	default:
		return CodeInternalError
	}
}

func httpStatus(code int) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeNoCredentials:
		return http.StatusPreconditionFailed
	case CodeAllCredentialsFailed:
		return http.StatusBadGateway
	case CodeRequestCanceled:
		return StatusClientClosedRequest
	case CodeRequestTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
