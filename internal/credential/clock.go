package credential

import (
	"context"
	"time"
)

// Clock 时间来源，便于测试时注入假时钟
type Clock interface {
	Now() time.Time
	// Sleep 挂起指定时长，ctx 取消时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock 使用真实时间
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep 可取消的等待
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
