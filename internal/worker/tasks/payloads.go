package tasks

// Task Types
const (
	TypeGenerateScript = "script:generate"
)

// QueueScript 脚本生成专用队列
const QueueScript = "script"

// GenerateScriptPayload 批量生成脚本任务载荷，任务详情保存在存储中
type GenerateScriptPayload struct {
	JobID string `json:"job_id"`
}
