// Package dispatch 在同一提供商的多个 API Key 之间调度请求：
// 按最久未用排序、冷却限速、配额耗尽隔离，并逐个故障转移直到成功
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/ai"
	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/metrics"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

const tracerName = "github.com/taole4114/2.-Script-YTB/internal/dispatch"

// Options 调度器参数
type Options struct {
	Cooldown   time.Duration    // 同一 Key 的最小复用间隔，0 取默认 2s，负数关闭冷却
	Quarantine time.Duration    // 配额耗尽后的隔离时长，默认 24h
	Clock      credential.Clock // 为空时使用系统时钟
	Logger     *zap.Logger
}

// Dispatcher 多 Key 调度器
type Dispatcher struct {
	store    *credential.Store
	registry *ai.Registry
	gate     *credential.CooldownGate
	tracker  *credential.ExhaustionTracker
	clock    credential.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New 创建调度器
func New(store *credential.Store, registry *ai.Registry, opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = credential.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = credential.DefaultCooldown
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		gate:     credential.NewCooldownGate(opts.Cooldown, opts.Clock),
		tracker:  credential.NewExhaustionTracker(opts.Quarantine),
		clock:    opts.Clock,
		logger:   opts.Logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// errSkipExhausted 持锁复查时发现 Key 已被其他调用隔离
var errSkipExhausted = errors.New("skip exhausted credential")

// Execute 调度器唯一入口
// 按调度顺序逐个尝试该提供商的 Key，第一个非空结果即返回；
// 单个 Key 的失败被吸收，全部失败时返回 *AllCredentialsFailedError。
// ctx 在每个候选前检查，并在冷却等待期间生效。
func (d *Dispatcher) Execute(ctx context.Context, payload aiinterface.Payload, provider credential.Provider, params *aiinterface.GenerationParams, modelID string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.Execute", trace.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("model", modelID),
	))
	defer span.End()

	start := time.Now()
	text, status, err := d.execute(ctx, payload, provider, params, modelID)
	metrics.DispatchRequestsTotal.WithLabelValues(string(provider), status).Inc()
	metrics.DispatchDuration.WithLabelValues(string(provider)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	return text, nil
}

func (d *Dispatcher) execute(ctx context.Context, payload aiinterface.Payload, provider credential.Provider, params *aiinterface.GenerationParams, modelID string) (string, string, error) {
	creds, err := d.store.ForProvider(ctx, provider)
	if err != nil {
		return "", "store_error", fmt.Errorf("加载 API Key 失败: %w", err)
	}
	if len(creds) == 0 {
		return "", "no_credentials", fmt.Errorf("%w: %s", ErrNoCredentialsConfigured, provider)
	}

	adapter, err := d.registry.Get(provider)
	if err != nil {
		return "", "no_adapter", err
	}

	ordered := credential.Order(creds, d.clock.Now())
	failure := &AllCredentialsFailedError{Provider: provider, Candidates: len(ordered)}

	for _, cand := range ordered {
		if err := ctx.Err(); err != nil {
			return "", "cancelled", fmt.Errorf("调度已取消: %w", err)
		}

		text, err := d.attempt(ctx, adapter, cand, payload, params, modelID, failure)
		if err == nil {
			return text, "success", nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "cancelled", fmt.Errorf("调度已取消: %w", ctxErr)
		}
		if errors.Is(err, credential.ErrCredentialNotFound) {
			// Key 集合在本次调用期间被整体替换
			continue
		}
		failure.Cause = err
	}

	d.logger.Warn("所有 API Key 均调用失败",
		zap.String("provider", string(provider)),
		zap.Int("candidates", failure.Candidates),
		zap.Int("attempts", failure.Attempts),
		zap.Error(failure.Cause),
	)
	return "", "all_failed", failure
}

// attempt 使用单个 Key 尝试一次
func (d *Dispatcher) attempt(ctx context.Context, adapter ai.ProviderAdapter, cand credential.Credential, payload aiinterface.Payload, params *aiinterface.GenerationParams, modelID string, failure *AllCredentialsFailedError) (string, error) {
	provider := string(cand.Provider)

	// 隔离状态以最新值为准，排序快照可能已过期
	if live, ok := d.store.Get(cand.ID); ok && d.tracker.IsExhausted(live, d.clock.Now()) {
		metrics.DispatchAttemptsTotal.WithLabelValues(provider, "skipped_exhausted").Inc()
		return "", fmt.Errorf("%w: %s", ErrExhaustedCredential, live.Masked())
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.attempt", trace.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("key", cand.Masked()),
	))
	defer span.End()

	// 持有该 Key 的锁完成冷却等待与使用时间戳，发请求前先落盘
	var waited time.Duration
	stamped, err := d.store.Update(ctx, cand.ID, func(cur credential.Credential) (credential.Credential, error) {
		if d.tracker.IsExhausted(cur, d.clock.Now()) {
			return cur, errSkipExhausted
		}
		w, err := d.gate.AwaitReady(ctx, cur, d.clock.Now())
		if err != nil {
			return cur, err
		}
		waited = w
		cur.LastUsedAt = d.clock.Now()
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, errSkipExhausted) {
			metrics.DispatchAttemptsTotal.WithLabelValues(provider, "skipped_exhausted").Inc()
			return "", fmt.Errorf("%w: %s", ErrExhaustedCredential, cand.Masked())
		}
		return "", err
	}
	if waited > 0 {
		metrics.CooldownWaitSeconds.WithLabelValues(provider).Observe(waited.Seconds())
		d.logger.Debug("冷却等待完成", zap.String("key", stamped.Masked()), zap.Duration("waited", waited))
	}

	failure.Attempts++
	model := ai.ResolveModel(modelID, stamped.ModelID, adapter.DefaultModel())
	text, err := adapter.Execute(ctx, payload, stamped.Secret, model, params)
	if err == nil {
		if text = strings.TrimSpace(text); text != "" {
			metrics.DispatchAttemptsTotal.WithLabelValues(provider, "success").Inc()
			d.logger.Info("调用成功",
				zap.String("provider", provider),
				zap.String("key", stamped.Masked()),
				zap.String("model", model),
			)
			return text, nil
		}
		err = &aiinterface.ClientError{Type: aiinterface.ErrorTypeEmptyResponse, Message: provider + " 返回内容为空"}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(aiinterface.ErrorTypeOf(err)))
	if ctx.Err() != nil {
		return "", err
	}
	metrics.DispatchAttemptsTotal.WithLabelValues(provider, string(aiinterface.ErrorTypeOf(err))).Inc()

	if aiinterface.IsRateLimited(err) {
		d.quarantine(ctx, stamped)
	} else {
		d.logger.Warn("API Key 调用失败，尝试下一个",
			zap.String("provider", provider),
			zap.String("key", stamped.Masked()),
			zap.Error(err),
		)
	}
	return "", err
}

// quarantine 标记 Key 配额耗尽并持久化
func (d *Dispatcher) quarantine(ctx context.Context, cred credential.Credential) {
	updated, err := d.store.Update(context.WithoutCancel(ctx), cred.ID, func(cur credential.Credential) (credential.Credential, error) {
		d.tracker.MarkExhausted(&cur, d.clock.Now())
		return cur, nil
	})
	if err != nil {
		d.logger.Warn("标记 API Key 隔离失败", zap.String("key", cred.Masked()), zap.Error(err))
		return
	}
	metrics.CredentialQuarantinesTotal.WithLabelValues(string(cred.Provider)).Inc()
	d.logger.Warn("API Key 配额耗尽，已隔离",
		zap.String("provider", string(cred.Provider)),
		zap.String("key", cred.Masked()),
		zap.Time("exhausted_until", updated.ExhaustedUntil),
	)
}
