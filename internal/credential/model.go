// Package credential 管理各提供商的 API Key 池：持久化、调度顺序、冷却与配额隔离
package credential

import (
	"fmt"
	"strings"
	"time"
)

// Provider LLM 提供商
type Provider string

const (
	ProviderGemini     Provider = "Gemini"
	ProviderOpenAI     Provider = "OpenAI"
	ProviderOpenRouter Provider = "OpenRouter"
)

// AllProviders 返回全部支持的提供商
func AllProviders() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderOpenRouter}
}

// ParseProvider 解析提供商名称（大小写不敏感）
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return ProviderGemini, nil
	case "openai":
		return ProviderOpenAI, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	default:
		return "", fmt.Errorf("不支持的提供商: %q", raw)
	}
}

// Valid 是否为受支持的提供商
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderOpenRouter:
		return true
	}
	return false
}

// Credential 单个 API Key 及其使用状态
type Credential struct {
	ID             string    // 存储分配的唯一标识
	Secret         string    // API Key
	Provider       Provider  // 所属提供商
	ModelID        string    // 偏好模型，可为空
	LastUsedAt     time.Time // 最近一次使用时间，零值表示从未使用
	ExhaustedUntil time.Time // 配额隔离截止时间，零值表示未隔离
}

// IsExhausted 当前是否处于配额隔离期
func (c Credential) IsExhausted(now time.Time) bool {
	return !c.ExhaustedUntil.IsZero() && c.ExhaustedUntil.After(now)
}

// Masked 返回脱敏后的 Key，仅保留末尾 4 位
func (c Credential) Masked() string {
	return MaskSecret(c.Secret)
}

// MaskSecret 脱敏 Key
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return "..." + secret
	}
	return "..." + secret[len(secret)-4:]
}
