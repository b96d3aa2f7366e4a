package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/infra/queue"
	"github.com/taole4114/2.-Script-YTB/internal/worker/handlers"
	"github.com/taole4114/2.-Script-YTB/internal/worker/tasks"
)

type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(
	redisCfg config.RedisConfig,
	queueCfg config.QueueConfig,
	runner handlers.JobRunner,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := asynq.NewServer(
		queue.RedisConnOpt(redisCfg),
		asynq.Config{
			// 并发过高只会让同一提供商的 Key 更快进入冷却，收益有限
			Concurrency: queueCfg.Concurrency,
			Queues: map[string]int{
				tasks.QueueScript: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	scriptHandler := handlers.NewScriptHandler(runner, logger)
	mux.HandleFunc(tasks.TypeGenerateScript, scriptHandler.HandleGenerateScript)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器，等待进行中的任务结束
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
