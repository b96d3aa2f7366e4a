package scripts

import "github.com/taole4114/2.-Script-YTB/internal/script"

// OutlineRequest 生成大纲
type OutlineRequest struct {
	Title    string `json:"title" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model"`
}

// OutlineResponse 大纲文本
type OutlineResponse struct {
	Outline string `json:"outline"`
}

// PartRequest 生成单个分段
type PartRequest struct {
	Title     string                  `json:"title" binding:"required"`
	Outline   []script.OutlineSection `json:"outline" binding:"required"`
	Parts     []string                `json:"parts"`
	PartIndex *int                    `json:"partIndex" binding:"required"`
	Provider  string                  `json:"provider" binding:"required"`
	Model     string                  `json:"model"`
}

// PartResponse 分段内容
type PartResponse struct {
	PartIndex int    `json:"partIndex"`
	Content   string `json:"content"`
}

// ExportRequest 导出脚本
type ExportRequest struct {
	Title string   `json:"title"`
	Parts []string `json:"parts" binding:"required"`
}

// CreateJobRequest 创建批量生成任务
type CreateJobRequest struct {
	Title    string                  `json:"title" binding:"required"`
	Outline  []script.OutlineSection `json:"outline" binding:"required"`
	Parts    []string                `json:"parts"`
	Provider string                  `json:"provider" binding:"required"`
	Model    string                  `json:"model"`
}
