package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/metrics"
)

// Enqueuer 任务队列抽象
type Enqueuer interface {
	EnqueueGenerateScript(jobID string) error
}

// CreateJobRequest 创建批量生成任务
type CreateJobRequest struct {
	Title    string              `json:"title"`
	Outline  []OutlineSection    `json:"outline"`
	Parts    []string            `json:"parts"` // 已有分段，从下一段继续
	Provider credential.Provider `json:"provider"`
	Model    string              `json:"model,omitempty"`
}

// JobService 批量生成任务：创建、查询与执行
type JobService struct {
	scripts *Service
	jobs    *JobStore
	queue   Enqueuer
	now     func() time.Time
	logger  *zap.Logger
}

// NewJobService 创建任务服务，queue 为空时不能创建任务
func NewJobService(scripts *Service, jobs *JobStore, queue Enqueuer, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{scripts: scripts, jobs: jobs, queue: queue, now: time.Now, logger: logger}
}

// Enabled 是否启用了任务队列
func (s *JobService) Enabled() bool {
	return s.queue != nil
}

// Create 保存任务并入队
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("任务队列未启用")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, ErrEmptyTitle
	}
	if len(req.Outline) == 0 {
		return nil, ErrEmptyOutline
	}
	if len(req.Parts) > len(req.Outline) {
		return nil, fmt.Errorf("%w: 已有 %d 段，大纲只有 %d 段", ErrInvalidPartIndex, len(req.Parts), len(req.Outline))
	}

	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Title:     req.Title,
		Outline:   req.Outline,
		Parts:     append([]string{}, req.Parts...),
		Provider:  req.Provider,
		Model:     req.Model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueGenerateScript(job.ID); err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		_ = s.jobs.Save(ctx, job)
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}
	metrics.ScriptJobsTotal.WithLabelValues("enqueued").Inc()
	s.logger.Info("批量生成任务已入队", zap.String("job_id", job.ID), zap.Int("remaining", job.Remaining()))
	return job, nil
}

// Get 查询任务
func (s *JobService) Get(ctx context.Context, id string) (*Job, error) {
	return s.jobs.Get(ctx, id)
}

// RunJob 依次生成剩余分段，每段完成后保存进度
// 已结束的任务直接返回；任一分段失败则任务标记为失败
func (s *JobService) RunJob(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Done() {
		return nil
	}

	job.Status = JobStatusRunning
	if err := s.save(ctx, job); err != nil {
		return err
	}

	for len(job.Parts) < len(job.Outline) {
		content, err := s.scripts.GenerateScriptPart(ctx, PartRequest{
			Title:     job.Title,
			Outline:   job.Outline,
			Parts:     job.Parts,
			PartIndex: len(job.Parts),
			Provider:  job.Provider,
			Model:     job.Model,
		})
		if err != nil {
			job.Status = JobStatusFailed
			job.Error = err.Error()
			if saveErr := s.save(context.WithoutCancel(ctx), job); saveErr != nil {
				s.logger.Error("保存任务状态失败", zap.String("job_id", job.ID), zap.Error(saveErr))
			}
			metrics.ScriptJobsTotal.WithLabelValues("failed").Inc()
			return err
		}
		job.Parts = append(job.Parts, content)
		if err := s.save(ctx, job); err != nil {
			return err
		}
	}

	job.Status = JobStatusCompleted
	if err := s.save(ctx, job); err != nil {
		return err
	}
	metrics.ScriptJobsTotal.WithLabelValues("completed").Inc()
	return nil
}

func (s *JobService) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = s.now()
	return s.jobs.Save(ctx, job)
}
