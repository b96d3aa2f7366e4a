package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultOpenAIModel 通过表单提交的 OpenAI Key 统一使用的模型
const DefaultOpenAIModel = "gpt-4o"

var (
	// ErrNoKeysSubmitted 提交内容中没有任何有效 Key
	ErrNoKeysSubmitted = errors.New("请至少提供一个 API Key")
	// ErrOpenRouterModelRequired 提交了 OpenRouter Key 但未选择模型
	ErrOpenRouterModelRequired = errors.New("使用 OpenRouter 时必须选择模型")
)

// SubmitKeysRequest 按提供商提交的 Key 列表，每行一个
type SubmitKeysRequest struct {
	GeminiKeys      string `json:"geminiKeys" yaml:"gemini_keys"`
	OpenAIKeys      string `json:"openaiKeys" yaml:"openai_keys"`
	OpenRouterKeys  string `json:"openrouterKeys" yaml:"openrouter_keys"`
	OpenRouterModel string `json:"openrouterModel" yaml:"openrouter_model"`
}

// KeyView 对外展示的 Key 信息（已脱敏）
type KeyView struct {
	ID             string     `json:"id"`
	Provider       Provider   `json:"provider"`
	Key            string     `json:"key"`
	Model          string     `json:"model,omitempty"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	Exhausted      bool       `json:"exhausted"`
	ExhaustedUntil *time.Time `json:"exhaustedUntil,omitempty"`
}

// Status Key 配置状态
type Status struct {
	Configured bool `json:"configured"`
	// Reset 为 true 表示存储中的快照已损坏并被清空，需要重新提交 Key
	Reset bool `json:"reset,omitempty"`
}

// Service Key 管理服务
type Service struct {
	store  *Store
	clock  Clock
	logger *zap.Logger
}

// NewService 创建 Key 管理服务
func NewService(store *Store, clock Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clock: clock, logger: logger}
}

// SubmitKeys 用提交的 Key 整体替换当前集合，所有 Key 的使用时间归零
func (s *Service) SubmitKeys(ctx context.Context, req SubmitKeysRequest) ([]Credential, error) {
	creds, err := BuildCredentials(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return nil, fmt.Errorf("保存 API Key 失败: %w", err)
	}
	s.logger.Info("API Key 已更新",
		zap.Int("gemini", countProvider(creds, ProviderGemini)),
		zap.Int("openai", countProvider(creds, ProviderOpenAI)),
		zap.Int("openrouter", countProvider(creds, ProviderOpenRouter)),
	)
	return s.store.All(ctx)
}

// BuildCredentials 把表单内容解析为凭证列表
func BuildCredentials(req SubmitKeysRequest) ([]Credential, error) {
	var creds []Credential
	for _, key := range splitKeys(req.GeminiKeys) {
		creds = append(creds, Credential{Secret: key, Provider: ProviderGemini})
	}
	for _, key := range splitKeys(req.OpenAIKeys) {
		creds = append(creds, Credential{Secret: key, Provider: ProviderOpenAI, ModelID: DefaultOpenAIModel})
	}

	openRouterKeys := splitKeys(req.OpenRouterKeys)
	model := strings.TrimSpace(req.OpenRouterModel)
	if len(openRouterKeys) > 0 && model == "" {
		return nil, ErrOpenRouterModelRequired
	}
	for _, key := range openRouterKeys {
		creds = append(creds, Credential{Secret: key, Provider: ProviderOpenRouter, ModelID: model})
	}

	if len(creds) == 0 {
		return nil, ErrNoKeysSubmitted
	}
	return creds, nil
}

// ListKeys 列出全部 Key（脱敏）
func (s *Service) ListKeys(ctx context.Context) ([]KeyView, error) {
	creds, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]KeyView, 0, len(creds))
	for _, cred := range creds {
		view := KeyView{
			ID:        cred.ID,
			Provider:  cred.Provider,
			Key:       cred.Masked(),
			Model:     cred.ModelID,
			Exhausted: cred.IsExhausted(now),
		}
		if !cred.LastUsedAt.IsZero() {
			t := cred.LastUsedAt
			view.LastUsedAt = &t
		}
		if view.Exhausted {
			t := cred.ExhaustedUntil
			view.ExhaustedUntil = &t
		}
		views = append(views, view)
	}
	return views, nil
}

// Status 返回是否已配置 Key，并消费一次“快照已重置”通知
func (s *Service) Status(ctx context.Context) (Status, error) {
	creds, err := s.store.All(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Configured: len(creds) > 0,
		Reset:      s.store.TakeReset(),
	}, nil
}

// HasKeys 是否至少配置了一个 Key
func (s *Service) HasKeys(ctx context.Context) (bool, error) {
	creds, err := s.store.All(ctx)
	if err != nil {
		return false, err
	}
	return len(creds) > 0, nil
}

// ImportFile 从 YAML 文件导入 Key，仅在当前没有任何 Key 时生效
// 返回导入的数量；文件不存在时返回 0 且不报错
func (s *Service) ImportFile(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("未找到初始 Key 文件，跳过导入", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("读取初始 Key 文件失败: %w", err)
	}

	has, err := s.HasKeys(ctx)
	if err != nil {
		return 0, err
	}
	if has {
		s.logger.Info("已存在 API Key，跳过初始导入", zap.String("path", path))
		return 0, nil
	}

	var req SubmitKeysRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return 0, fmt.Errorf("解析初始 Key 文件失败: %w", err)
	}
	creds, err := s.SubmitKeys(ctx, req)
	if err != nil {
		return 0, err
	}
	return len(creds), nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, line := range strings.Split(raw, "\n") {
		if key := strings.TrimSpace(line); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func countProvider(creds []Credential, provider Provider) int {
	n := 0
	for _, cred := range creds {
		if cred.Provider == provider {
			n++
		}
	}
	return n
}
