package aiinterface

import (
	"errors"
	"strings"
)

// Payload 发送给模型的请求内容
// 要么是单条 Prompt，要么是 System + User 组合，由调用方根据提供商选择
type Payload struct {
	Prompt string `json:"prompt,omitempty"` // 单条提示词
	System string `json:"system,omitempty"` // 系统提示词（结构化模式）
	User   string `json:"user,omitempty"`   // 用户提示词（结构化模式）
}

// PromptPayload 构造单条提示词请求
func PromptPayload(prompt string) Payload {
	return Payload{Prompt: prompt}
}

// ChatPayload 构造 System + User 请求
func ChatPayload(system, user string) Payload {
	return Payload{System: system, User: user}
}

// IsStructured 是否为 System + User 结构
func (p Payload) IsStructured() bool {
	return p.Prompt == "" && (p.System != "" || p.User != "")
}

// Flatten 将结构化请求拼接为单条提示词，供只接受单轮文本的提供商使用
func (p Payload) Flatten() string {
	if !p.IsStructured() {
		return p.Prompt
	}
	if p.System == "" {
		return p.User
	}
	if p.User == "" {
		return p.System
	}
	return p.System + "\n\n" + p.User
}

// GenerationParams 采样参数，字段均可选，不支持的提供商直接忽略
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
}

// NewGenerationParams 便捷构造完整的采样参数
func NewGenerationParams(temperature, topP float64, topK int) *GenerationParams {
	return &GenerationParams{
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
	}
}

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"           // 认证错误 (Unauthorized)
	ErrorTypeRateLimit     ErrorType = "rate_limit"     // 配额耗尽 / 速率限制 (RateLimited)
	ErrorTypeInvalidParams ErrorType = "invalid_params" // 请求或响应格式错误 (Malformed)
	ErrorTypeServerError   ErrorType = "server_error"   // 服务端错误
	ErrorTypeNetwork       ErrorType = "network"        // 网络错误 (NetworkFailure)
	ErrorTypeEmptyResponse ErrorType = "empty_response" // 空响应 (EmptyResponse)
	ErrorTypeUnknown       ErrorType = "unknown"        // 未知错误
)

// ClientError 客户端错误
type ClientError struct {
	Type       ErrorType // 错误类型
	Message    string    // 错误消息
	StatusCode int       // HTTP 状态码，未知时为 0
	Err        error     // 原始错误
}

// Error 实现error接口
func (e *ClientError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回原始错误
func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否可换 Key 重试
func (e *ClientError) IsRetryable() bool {
	return e.Type == ErrorTypeRateLimit || e.Type == ErrorTypeNetwork || e.Type == ErrorTypeServerError
}

// ErrorTypeOf 提取错误类型，非 ClientError 视为未知错误
func ErrorTypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimited 判断是否为配额类错误
func IsRateLimited(err error) bool {
	return ErrorTypeOf(err) == ErrorTypeRateLimit
}

// ClassifyStatus 按 HTTP 状态码归类错误
func ClassifyStatus(status int) ErrorType {
	switch {
	case status == 429:
		return ErrorTypeRateLimit
	case status == 401 || status == 403:
		return ErrorTypeAuth
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeInvalidParams
	default:
		return ErrorTypeUnknown
	}
}

// LooksLikeQuota 基于错误文本的配额判断（兜底规则："429" 或 "quota"）
func LooksLikeQuota(message string) bool {
	return strings.Contains(message, "429") || strings.Contains(strings.ToLower(message), "quota")
}
