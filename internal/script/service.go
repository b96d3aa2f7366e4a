package script

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/metrics"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

// Executor 调度器抽象，便于注入 mock
type Executor interface {
	Execute(ctx context.Context, payload aiinterface.Payload, provider credential.Provider, params *aiinterface.GenerationParams, modelID string) (string, error)
}

// Service 脚本生成服务，所有模型调用都经由 Executor
type Service struct {
	exec   Executor
	tokens TokenCounter
	logger *zap.Logger
}

// NewService 创建脚本生成服务，tokens 为空时使用 tiktoken 估算
func NewService(exec Executor, tokens TokenCounter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = NewTiktokenCounter(logger)
	}
	return &Service{exec: exec, tokens: tokens, logger: logger}
}

// GenerateOutline 生成纪录片大纲
func (s *Service) GenerateOutline(ctx context.Context, title string, provider credential.Provider, modelID string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}

	prompt := buildOutlinePrompt(title)
	s.observeTokens("outline", provider, prompt)

	params := aiinterface.NewGenerationParams(0.7, 0.95, 40)
	outline, err := s.exec.Execute(ctx, aiinterface.PromptPayload(prompt), provider, params, modelID)
	if err != nil {
		return "", fmt.Errorf("生成大纲失败: %w", err)
	}
	return outline, nil
}

// GenerateScriptPart 生成第 PartIndex 个分段
// Gemini 接收拼接后的单条提示词与采样参数，其余提供商接收 system + user 且不带采样参数
func (s *Service) GenerateScriptPart(ctx context.Context, req PartRequest) (string, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "", ErrEmptyTitle
	}
	if len(req.Outline) == 0 {
		return "", ErrEmptyOutline
	}
	if req.PartIndex < 0 || req.PartIndex >= len(req.Outline) {
		return "", fmt.Errorf("%w: %d（共 %d 段）", ErrInvalidPartIndex, req.PartIndex, len(req.Outline))
	}

	system, user := buildScriptPrompts(req)

	var (
		payload aiinterface.Payload
		params  *aiinterface.GenerationParams
		model   = req.Model
	)
	if req.Provider == credential.ProviderGemini {
		payload = aiinterface.PromptPayload(system + "\n\n" + user)
		params = aiinterface.NewGenerationParams(0.8, 0.95, 50)
		model = ""
	} else {
		payload = aiinterface.ChatPayload(system, user)
	}
	s.observeTokens("script_part", req.Provider, system+user)

	content, err := s.exec.Execute(ctx, payload, req.Provider, params, model)
	if err != nil {
		return "", fmt.Errorf("生成第 %d 段失败: %w", req.PartIndex+1, err)
	}
	s.logger.Info("分段生成完成",
		zap.String("title", req.Title),
		zap.Int("part", req.PartIndex+1),
		zap.Int("total", len(req.Outline)),
	)
	return content, nil
}

func (s *Service) observeTokens(kind string, provider credential.Provider, prompt string) {
	n := s.tokens.Count(prompt)
	metrics.PromptTokens.WithLabelValues(kind).Observe(float64(n))
	s.logger.Debug("提示词 Token 估算",
		zap.String("kind", kind),
		zap.String("provider", string(provider)),
		zap.Int("tokens", n),
	)
}
