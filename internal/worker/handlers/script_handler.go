package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/worker/tasks"
)

// JobRunner 批量生成执行器抽象，便于注入 mock
type JobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}

type ScriptHandler struct {
	runner JobRunner
	logger *zap.Logger
}

func NewScriptHandler(runner JobRunner, logger *zap.Logger) *ScriptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptHandler{
		runner: runner,
		logger: logger,
	}
}

func (h *ScriptHandler) HandleGenerateScript(ctx context.Context, t *asynq.Task) error {
	var p tasks.GenerateScriptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w: %w", err, asynq.SkipRetry)
	}
	if p.JobID == "" {
		return fmt.Errorf("job_id 为空: %w", asynq.SkipRetry)
	}

	h.logger.Info("开始批量生成脚本", zap.String("job_id", p.JobID))

	if err := h.runner.RunJob(ctx, p.JobID); err != nil {
		h.logger.Error("批量生成脚本失败",
			zap.String("job_id", p.JobID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("批量生成脚本完成", zap.String("job_id", p.JobID))
	return nil
}
