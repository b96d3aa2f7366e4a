package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptgen_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptgen_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)
)

// 调度指标
var (
	// DispatchRequestsTotal 调度请求总数
	DispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptgen_dispatch_requests_total",
			Help: "调度请求总数",
		},
		[]string{"provider", "status"}, // status: success, no_credentials, all_failed, cancelled
	)

	// DispatchAttemptsTotal 单个 Key 的尝试次数
	DispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptgen_dispatch_attempts_total",
			Help: "按结果统计的 Key 尝试次数",
		},
		[]string{"provider", "outcome"}, // outcome: success, skipped_exhausted 或错误类型
	)

	// DispatchDuration 单次调度耗时（秒），包含冷却等待与全部尝试
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptgen_dispatch_duration_seconds",
			Help:    "调度耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	// CredentialQuarantinesTotal 因配额耗尽被隔离的次数
	CredentialQuarantinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptgen_credential_quarantines_total",
			Help: "Key 被隔离次数",
		},
		[]string{"provider"},
	)

	// CooldownWaitSeconds 冷却等待时长（秒）
	CooldownWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptgen_cooldown_wait_seconds",
			Help:    "冷却等待时长分布",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 5},
		},
		[]string{"provider"},
	)

	// PromptTokens 估算的提示词 Token 数
	PromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scriptgen_prompt_tokens",
			Help:    "提示词 Token 数分布（估算）",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		},
		[]string{"kind"}, // kind: outline, script_part
	)
)

// 任务指标
var (
	// ScriptJobsTotal 批量生成任务数
	ScriptJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptgen_script_jobs_total",
			Help: "批量生成任务数",
		},
		[]string{"status"}, // status: enqueued, completed, failed
	)
)

// 系统指标
var (
	// BuildInfo 构建信息
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scriptgen_build_info",
			Help: "构建信息",
		},
		[]string{"version", "go_version", "commit"},
	)
)

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion, commit string) {
	BuildInfo.WithLabelValues(version, goVersion, commit).Set(1)
}
