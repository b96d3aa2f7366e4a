package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

const (
	// DefaultOpenAIBaseURL OpenAI 官方地址
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultOpenRouterBaseURL OpenRouter 地址
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

	DefaultOpenAIModel     = "gpt-4o"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"

	DefaultOpenRouterReferer = "https://script-generator.app"
	DefaultOpenRouterTitle   = "Script Generator"

	defaultTimeout = 120 * time.Second
)

// Config OpenAI 兼容接口配置
type Config struct {
	Provider     credential.Provider
	BaseURL      string
	DefaultModel string
	Headers      map[string]string // 每个请求附加的请求头
	Timeout      time.Duration
	HTTPClient   *http.Client // 为空时按 Timeout 创建
}

// Adapter OpenAI 兼容协议适配器，OpenAI 与 OpenRouter 共用
type Adapter struct {
	provider     credential.Provider
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewAdapter 创建适配器
func NewAdapter(cfg Config) *Adapter {
	base := cfg.HTTPClient
	if base == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		base = &http.Client{Timeout: timeout}
	}
	httpClient := base
	if len(cfg.Headers) > 0 {
		transport := base.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		clone := *base
		clone.Transport = &headerTransport{headers: cfg.Headers, base: transport}
		httpClient = &clone
	}
	return &Adapter{
		provider:     cfg.Provider,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		httpClient:   httpClient,
	}
}

// NewOpenAIAdapter 创建 OpenAI 适配器，空字段使用默认值
func NewOpenAIAdapter(baseURL, defaultModel string, timeout time.Duration) *Adapter {
	return NewAdapter(Config{
		Provider:     credential.ProviderOpenAI,
		BaseURL:      orDefault(baseURL, DefaultOpenAIBaseURL),
		DefaultModel: orDefault(defaultModel, DefaultOpenAIModel),
		Timeout:      timeout,
	})
}

// NewOpenRouterAdapter 创建 OpenRouter 适配器，附带来源标识请求头
func NewOpenRouterAdapter(baseURL, defaultModel, referer, title string, timeout time.Duration) *Adapter {
	return NewAdapter(Config{
		Provider:     credential.ProviderOpenRouter,
		BaseURL:      orDefault(baseURL, DefaultOpenRouterBaseURL),
		DefaultModel: orDefault(defaultModel, DefaultOpenRouterModel),
		Headers: map[string]string{
			"HTTP-Referer": orDefault(referer, DefaultOpenRouterReferer),
			"X-Title":      orDefault(title, DefaultOpenRouterTitle),
		},
		Timeout: timeout,
	})
}

// Provider 适配的提供商
func (a *Adapter) Provider() credential.Provider {
	return a.provider
}

// DefaultModel 默认模型
func (a *Adapter) DefaultModel() string {
	return a.defaultModel
}

// BuildRequest 构造请求体，只包含 model 与 messages
// 采样参数不发送，与早期版本的请求体保持一致
func (a *Adapter) BuildRequest(payload aiinterface.Payload, modelID string) openai.ChatCompletionRequest {
	if modelID == "" {
		modelID = a.defaultModel
	}
	var messages []openai.ChatCompletionMessage
	if payload.IsStructured() {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: payload.System},
			{Role: openai.ChatMessageRoleUser, Content: payload.User},
		}
	} else {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: payload.Prompt},
		}
	}
	return openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: messages,
	}
}

// ParseResponse 提取第一条候选的文本
func (a *Adapter) ParseResponse(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeEmptyResponse,
			Message: string(a.provider) + " 返回空响应",
		}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeEmptyResponse,
			Message: string(a.provider) + " 返回内容为空",
		}
	}
	return text, nil
}

// Execute 发起一次对话补全，不做内部重试，失败直接交给调度层换 Key
func (a *Adapter) Execute(ctx context.Context, payload aiinterface.Payload, secret, modelID string, _ *aiinterface.GenerationParams) (string, error) {
	cfg := openai.DefaultConfig(secret)
	cfg.BaseURL = a.baseURL
	cfg.HTTPClient = a.httpClient
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, a.BuildRequest(payload, modelID))
	if err != nil {
		return "", a.ClassifyError(err)
	}
	return a.ParseResponse(resp)
}

// ClassifyError 按 HTTP 状态码归类错误，拿不到状态码的视为网络错误
func (a *Adapter) ClassifyError(err error) *aiinterface.ClientError {
	var ce *aiinterface.ClientError
	if errors.As(err, &ce) {
		return ce
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == 0 {
		return &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: string(a.provider) + " 网络请求失败",
			Err:     err,
		}
	}
	return &aiinterface.ClientError{
		Type:       aiinterface.ClassifyStatus(status),
		Message:    string(a.provider) + " API 错误",
		StatusCode: status,
		Err:        err,
	}
}

// headerTransport 为每个请求附加固定请求头
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
