package ai

import (
	"context"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

// 重新导出aiinterface包的类型，子包与调用方无需同时依赖两个包
type (
	Payload          = aiinterface.Payload
	GenerationParams = aiinterface.GenerationParams
	ClientError      = aiinterface.ClientError
	ErrorType        = aiinterface.ErrorType
)

// 重新导出常量
const (
	ErrorTypeAuth          = aiinterface.ErrorTypeAuth
	ErrorTypeRateLimit     = aiinterface.ErrorTypeRateLimit
	ErrorTypeInvalidParams = aiinterface.ErrorTypeInvalidParams
	ErrorTypeServerError   = aiinterface.ErrorTypeServerError
	ErrorTypeNetwork       = aiinterface.ErrorTypeNetwork
	ErrorTypeEmptyResponse = aiinterface.ErrorTypeEmptyResponse
	ErrorTypeUnknown       = aiinterface.ErrorTypeUnknown
)

// ProviderAdapter 提供商适配器
// 每个实现内部按 BuildRequest -> 发送 -> ParseResponse 的顺序完成一次调用，
// 失败时统一返回经 ClassifyError 归类的 *ClientError。
type ProviderAdapter interface {
	// Provider 适配的提供商
	Provider() credential.Provider

	// DefaultModel 未指定模型时使用的模型
	DefaultModel() string

	// Execute 使用给定 Key 发起一次调用，返回去除首尾空白后的文本
	Execute(ctx context.Context, payload Payload, secret, modelID string, params *GenerationParams) (string, error)

	// ClassifyError 将底层错误归类
	ClassifyError(err error) *ClientError
}
