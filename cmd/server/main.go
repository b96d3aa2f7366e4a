package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/api"
	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/infra"
	"github.com/taole4114/2.-Script-YTB/internal/infra/queue"
	"github.com/taole4114/2.-Script-YTB/internal/logger"
	"github.com/taole4114/2.-Script-YTB/internal/metrics"
	middlewarepkg "github.com/taole4114/2.-Script-YTB/internal/middleware"
	"github.com/taole4114/2.-Script-YTB/internal/worker"
)

// 构建时通过 -ldflags 注入
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, os.Getenv("APP_CONFIG_FILE"))
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
		zap.String("version", version),
	)
	metrics.RecordBuildInfo(version, runtime.Version(), commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 存储与外部连接
	res, err := infra.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("初始化存储失败", zap.Error(err))
	}

	// 4. 任务队列（可选）
	var queueClient queue.Client
	if cfg.Queue.Enabled {
		queueClient = queue.NewClient(cfg.Redis, cfg.Queue)
	}

	// 5. 组装业务组件
	container, err := api.NewAppContainer(ctx, cfg, res.KV, queueClient, nil, log)
	if err != nil {
		log.Fatal("初始化应用失败", zap.Error(err))
	}

	var workerServer *worker.Server
	if cfg.Queue.Enabled {
		workerServer = worker.NewServer(cfg.Redis, cfg.Queue, container.Jobs, log.Named("worker"))
		if err := workerServer.Start(); err != nil {
			log.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}

	go metrics.NewRuntimeCollector(15 * time.Second).Run(ctx)

	// 6. 路由与 HTTP 服务器
	gin.SetMode(cfg.Server.Mode)
	limiter := middlewarepkg.NewRateLimiter(&middlewarepkg.RateLimiterConfig{
		RequestsPerMinute: cfg.Server.RateLimit,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	})
	router := api.NewRouter(container, api.NewHandlers(container), limiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 7. 优雅关闭
	<-ctx.Done()
	gracefulShutdown(log, server, workerServer, queueClient, limiter, res)
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	}
}

// resolveEnvPath 从当前工作目录、可执行文件目录向上查找 .env
func resolveEnvPath() string {
	for _, path := range collectEnvCandidates() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 4; i++ {
			path := filepath.Join(dir, ".env")
			if _, ok := seen[path]; !ok {
				seen[path] = struct{}{}
				candidates = append(candidates, path)
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}
	return candidates
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(log *zap.Logger, server *http.Server, workerServer *worker.Server, queueClient queue.Client, limiter *middlewarepkg.RateLimiter, res *infra.Resources) {
	log.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("服务器关闭异常", zap.Error(err))
	}
	limiter.Stop()

	if workerServer != nil {
		workerServer.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			log.Error("队列客户端关闭异常", zap.Error(err))
		}
	}
	if err := res.Close(); err != nil {
		log.Error("存储关闭异常", zap.Error(err))
	}

	log.Info("服务器已安全关闭")
}
