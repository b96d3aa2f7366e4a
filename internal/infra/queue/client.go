package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/worker/tasks"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueGenerateScript(jobID string) error
	Close() error
}

type asynqClient struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewClient 创建任务队列客户端
func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) Client {
	return &asynqClient{
		client:  asynq.NewClient(RedisConnOpt(redisCfg)),
		timeout: queueCfg.JobTimeout,
	}
}

// RedisConnOpt 按 Redis 模式构造 asynq 连接参数
func RedisConnOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{
			Addrs:    cfg.ClusterAddrs,
			Password: cfg.Password,
		}
	default:
		return asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
}

// NewGenerateScriptTask 构造批量生成任务
func NewGenerateScriptTask(jobID string, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(tasks.GenerateScriptPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	// 失败状态记录在任务中，由用户决定是否重新提交，这里不重试
	return asynq.NewTask(tasks.TypeGenerateScript, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Queue(tasks.QueueScript),
		asynq.TaskID(jobID),
	), nil
}

func (c *asynqClient) EnqueueGenerateScript(jobID string) error {
	task, err := NewGenerateScriptTask(jobID, c.timeout)
	if err != nil {
		return err
	}
	if _, err := c.client.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
