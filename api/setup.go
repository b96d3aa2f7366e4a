package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/ai"
	"github.com/taole4114/2.-Script-YTB/internal/ai/google"
	"github.com/taole4114/2.-Script-YTB/internal/ai/openai"
	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/dispatch"
	"github.com/taole4114/2.-Script-YTB/internal/infra/queue"
	"github.com/taole4114/2.-Script-YTB/internal/script"
	"github.com/taole4114/2.-Script-YTB/internal/security"
	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

// AppContainer 应用依赖容器
type AppContainer struct {
	Config      *config.Config
	Logger      *zap.Logger
	KV          storage.KeyValueStore
	Store       *credential.Store
	Credentials *credential.Service
	Registry    *ai.Registry
	Dispatcher  *dispatch.Dispatcher
	Scripts     *script.Service
	Jobs        *script.JobService
	Queue       queue.Client // 未启用队列时为 nil
}

// NewAppContainer 组装业务组件
// tokens 为空时使用 tiktoken 估算，queueClient 为空表示不支持批量生成
func NewAppContainer(ctx context.Context, cfg *config.Config, kv storage.KeyValueStore, queueClient queue.Client, tokens script.TokenCounter, logger *zap.Logger) (*AppContainer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	codec, err := newCodec(cfg.Storage.SealSecret)
	if err != nil {
		return nil, err
	}
	store := credential.NewStore(kv, codec, logger.Named("credential"))
	creds, result, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载 API Key 失败: %w", err)
	}
	if result.Reset {
		logger.Warn("API Key 快照无法解析，已重置为空，请重新提交")
	}
	logger.Info("API Key 已加载", zap.Int("count", len(creds)))

	credService := credential.NewService(store, nil, logger.Named("credential"))
	if n, err := credService.ImportFile(ctx, cfg.Bootstrap.CredentialsFile); err != nil {
		logger.Warn("导入初始 API Key 失败", zap.Error(err))
	} else if n > 0 {
		logger.Info("已导入初始 API Key", zap.Int("count", n))
	}

	registry := NewRegistry(cfg.Providers)
	dispatcher := dispatch.New(store, registry, dispatch.Options{
		Cooldown:   cfg.Dispatch.Cooldown,
		Quarantine: cfg.Dispatch.Quarantine,
		Logger:     logger.Named("dispatch"),
	})
	scripts := script.NewService(dispatcher, tokens, logger.Named("script"))

	var enqueuer script.Enqueuer
	if queueClient != nil {
		enqueuer = queueClient
	}
	jobs := script.NewJobService(scripts, script.NewJobStore(kv), enqueuer, logger.Named("job"))

	return &AppContainer{
		Config:      cfg,
		Logger:      logger,
		KV:          kv,
		Store:       store,
		Credentials: credService,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Scripts:     scripts,
		Jobs:        jobs,
		Queue:       queueClient,
	}, nil
}

// NewRegistry 按配置注册三个提供商的适配器
func NewRegistry(cfg config.ProvidersConfig) *ai.Registry {
	return ai.NewRegistry(
		google.NewAdapter(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Timeout),
		openai.NewOpenAIAdapter(cfg.OpenAI.BaseURL, cfg.OpenAI.DefaultModel, cfg.Timeout),
		openai.NewOpenRouterAdapter(cfg.OpenRouter.BaseURL, cfg.OpenRouter.DefaultModel, cfg.OpenRouter.Referer, cfg.OpenRouter.Title, cfg.Timeout),
	)
}

func newCodec(sealSecret string) (*credential.Codec, error) {
	if sealSecret == "" {
		return credential.NewCodec(nil), nil
	}
	sealer, err := security.NewSealer(sealSecret)
	if err != nil {
		return nil, fmt.Errorf("初始化快照加密失败: %w", err)
	}
	return credential.NewCodec(sealer), nil
}
