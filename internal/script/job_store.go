package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

const jobKeyPrefix = "script-job:"

// JobStore 任务状态存储，每个任务一条 JSON 记录
type JobStore struct {
	kv storage.KeyValueStore
}

// NewJobStore 创建任务存储
func NewJobStore(kv storage.KeyValueStore) *JobStore {
	return &JobStore{kv: kv}
}

// Get 读取任务
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.kv.Get(ctx, jobKeyPrefix+id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("读取任务失败: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("解析任务失败: %w", err)
	}
	return &job, nil
}

// Save 写入任务
func (s *JobStore) Save(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	if err := s.kv.Set(ctx, jobKeyPrefix+job.ID, string(raw)); err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}
	return nil
}
