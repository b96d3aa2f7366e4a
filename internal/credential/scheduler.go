package credential

import (
	"sort"
	"time"
)

// Order 计算本次请求的尝试顺序
// 未隔离的排在隔离中的前面；同组内按 LastUsedAt 升序（最久未用优先）；
// 相同时保持原有插入顺序。结果确定、可复现。
func Order(creds []Credential, now time.Time) []Credential {
	ordered := make([]Credential, len(creds))
	copy(ordered, creds)
	sort.SliceStable(ordered, func(i, j int) bool {
		ei, ej := ordered[i].IsExhausted(now), ordered[j].IsExhausted(now)
		if ei != ej {
			return !ei
		}
		return ordered[i].LastUsedAt.Before(ordered[j].LastUsedAt)
	})
	return ordered
}
