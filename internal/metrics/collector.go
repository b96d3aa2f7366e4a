package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RuntimeCollector 定期采集 Go 运行时指标
type RuntimeCollector struct {
	interval time.Duration
}

// NewRuntimeCollector 创建运行时指标收集器
func NewRuntimeCollector(interval time.Duration) *RuntimeCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &RuntimeCollector{interval: interval}
}

// Run 阻塞采集直到 ctx 结束
func (c *RuntimeCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collectOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectOnce()
		}
	}
}

// collectOnce 收集一次 Go 运行时统计信息
func (c *RuntimeCollector) collectOnce() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	goMemoryUsage.Set(float64(m.Alloc))
	goMemorySys.Set(float64(m.Sys))
	goGoroutines.Set(float64(runtime.NumGoroutine()))
}

// Go 运行时指标
var (
	goMemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptgen_go_memory_usage_bytes",
			Help: "当前 Go 内存使用量",
		},
	)

	goMemorySys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptgen_go_memory_sys_bytes",
			Help: "Go 从系统获取的内存",
		},
	)

	goGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptgen_go_goroutines",
			Help: "当前 Goroutine 数量",
		},
	)
)
