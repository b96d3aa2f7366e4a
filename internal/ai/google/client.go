package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"

	defaultTimeout = 120 * time.Second
	maxErrorBody   = 64 << 10
)

// Adapter Gemini REST 适配器
// 模型固定为配置值，调用方传入的 modelID 不生效
type Adapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAdapter 创建 Gemini 适配器，空字段使用默认值
func NewAdapter(baseURL, model string, timeout time.Duration) *Adapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient 替换 HTTP 客户端
func (a *Adapter) WithHTTPClient(client *http.Client) *Adapter {
	a.httpClient = client
	return a
}

// Provider 适配的提供商
func (a *Adapter) Provider() credential.Provider {
	return credential.ProviderGemini
}

// DefaultModel 使用的模型
func (a *Adapter) DefaultModel() string {
	return a.model
}

// BuildRequest 构造 generateContent 请求，整个载荷作为单轮 user 内容发送
func (a *Adapter) BuildRequest(ctx context.Context, payload aiinterface.Payload, secret string, params *aiinterface.GenerationParams) (*http.Request, error) {
	body := GeminiRequest{
		Contents: []GeminiContent{{
			Role:  "user",
			Parts: []GeminiPart{{Text: payload.Flatten()}},
		}},
	}
	if params != nil {
		body.GenerationConfig = &GeminiGenerationConfig{
			Temperature: params.Temperature,
			TopP:        params.TopP,
			TopK:        params.TopK,
		}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "序列化 Gemini 请求失败",
			Err:     err,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, a.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "创建 Gemini 请求失败",
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", secret)
	return req, nil
}

// ParseResponse 拼接第一个候选的全部文本
func (a *Adapter) ParseResponse(body []byte) (string, error) {
	var resp GeminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "解析 Gemini 响应失败",
			Err:     err,
		}
	}

	if len(resp.Candidates) == 0 {
		msg := "Gemini 返回空响应"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg += "（" + resp.PromptFeedback.BlockReason + "）"
		}
		return "", &aiinterface.ClientError{Type: aiinterface.ErrorTypeEmptyResponse, Message: msg}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeEmptyResponse,
			Message: "Gemini 返回内容为空",
		}
	}
	return text, nil
}

// Execute 发起一次 generateContent 调用
func (a *Adapter) Execute(ctx context.Context, payload aiinterface.Payload, secret, _ string, params *aiinterface.GenerationParams) (string, error) {
	req, err := a.BuildRequest(ctx, payload, secret, params)
	if err != nil {
		return "", err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", a.ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", a.ClassifyError(newStatusError(resp.StatusCode, body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", a.ClassifyError(err)
	}
	return a.ParseResponse(body)
}

// ClassifyError 优先按 HTTP 状态码归类，消息中含 "429" 或 "quota" 时一律视为配额耗尽
func (a *Adapter) ClassifyError(err error) *aiinterface.ClientError {
	var ce *aiinterface.ClientError
	if errors.As(err, &ce) {
		return ce
	}

	var se *statusError
	if errors.As(err, &se) {
		errType := aiinterface.ClassifyStatus(se.status)
		if errType != aiinterface.ErrorTypeRateLimit &&
			(se.apiStatus == "RESOURCE_EXHAUSTED" || aiinterface.LooksLikeQuota(se.message)) {
			errType = aiinterface.ErrorTypeRateLimit
		}
		return &aiinterface.ClientError{
			Type:       errType,
			Message:    "Gemini API 错误",
			StatusCode: se.status,
			Err:        err,
		}
	}

	if aiinterface.LooksLikeQuota(err.Error()) {
		return &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeRateLimit,
			Message: "Gemini API 配额耗尽",
			Err:     err,
		}
	}
	return &aiinterface.ClientError{
		Type:    aiinterface.ErrorTypeNetwork,
		Message: "Gemini 网络请求失败",
		Err:     err,
	}
}

// statusError 非 200 响应
type statusError struct {
	status    int
	apiStatus string
	message   string
}

func newStatusError(status int, body []byte) *statusError {
	se := &statusError{status: status, message: strings.TrimSpace(string(body))}
	var parsed GeminiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		se.apiStatus = parsed.Error.Status
		se.message = parsed.Error.Message
	}
	return se
}

func (e *statusError) Error() string {
	if e.apiStatus != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.status, e.apiStatus, e.message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.status, e.message)
}
