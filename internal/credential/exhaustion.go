package credential

import "time"

// DefaultQuarantine 配额耗尽后的隔离时长
const DefaultQuarantine = 24 * time.Hour

// ExhaustionTracker 标记并查询 Key 的配额隔离状态
// 过期是惰性的：下一次评估时自然恢复，不需要后台清理
type ExhaustionTracker struct {
	quarantine time.Duration
}

// NewExhaustionTracker 创建隔离跟踪器
func NewExhaustionTracker(quarantine time.Duration) *ExhaustionTracker {
	if quarantine <= 0 {
		quarantine = DefaultQuarantine
	}
	return &ExhaustionTracker{quarantine: quarantine}
}

// Quarantine 配置的隔离时长
func (t *ExhaustionTracker) Quarantine() time.Duration {
	return t.quarantine
}

// MarkExhausted 设置 ExhaustedUntil = now + quarantine
func (t *ExhaustionTracker) MarkExhausted(cred *Credential, now time.Time) {
	cred.ExhaustedUntil = now.Add(t.quarantine)
}

// IsExhausted 当前是否处于隔离期
func (t *ExhaustionTracker) IsExhausted(cred Credential, now time.Time) bool {
	return cred.IsExhausted(now)
}
