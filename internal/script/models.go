// Package script 纪录片大纲与分段脚本的生成、导出以及批量生成任务
package script

import (
	"errors"
	"time"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
)

var (
	ErrEmptyTitle       = errors.New("请输入视频标题")
	ErrEmptyOutline     = errors.New("大纲不能为空")
	ErrInvalidPartIndex = errors.New("无效的分段序号")
	ErrJobNotFound      = errors.New("任务不存在")
)

// DefaultWordTarget 分段字数目标无法解析时使用的默认值
const DefaultWordTarget = 800

// OutlineSection 大纲中的一个章节
type OutlineSection struct {
	Title       string `json:"title"`
	WordTarget  string `json:"wordTarget"` // 例如 "~800 words"
	Description string `json:"description"`
}

// PartRequest 生成单个分段的请求
type PartRequest struct {
	Title     string              `json:"title"`
	Outline   []OutlineSection    `json:"outline"`
	Parts     []string            `json:"parts"` // 已生成的分段内容，按顺序
	PartIndex int                 `json:"partIndex"`
	Provider  credential.Provider `json:"provider"`
	Model     string              `json:"model,omitempty"`
}

// ============================================================================
// 批量生成任务
// ============================================================================

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"   // 已入队
	JobStatusRunning   JobStatus = "running"   // 生成中
	JobStatusCompleted JobStatus = "completed" // 已完成
	JobStatusFailed    JobStatus = "failed"    // 失败
)

// Job 批量生成剩余全部分段的任务
type Job struct {
	ID        string              `json:"id"`
	Status    JobStatus           `json:"status"`
	Title     string              `json:"title"`
	Outline   []OutlineSection    `json:"outline"`
	Parts     []string            `json:"parts"`
	Provider  credential.Provider `json:"provider"`
	Model     string              `json:"model,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Remaining 尚未生成的分段数
func (j *Job) Remaining() int {
	if n := len(j.Outline) - len(j.Parts); n > 0 {
		return n
	}
	return 0
}

// Done 是否已结束
func (j *Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
