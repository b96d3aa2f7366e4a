package credential

import (
	"context"
	"time"
)

// DefaultCooldown 同一 Key 两次使用之间的最小间隔
const DefaultCooldown = 2 * time.Second

// CooldownGate 控制同一 Key 的复用间隔，只负责延迟，不跳过也不重排
type CooldownGate struct {
	cooldown time.Duration
	clock    Clock
}

// NewCooldownGate 创建冷却闸门，cooldown <= 0 时不做等待
func NewCooldownGate(cooldown time.Duration, clock Clock) *CooldownGate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CooldownGate{cooldown: cooldown, clock: clock}
}

// Cooldown 配置的冷却时长
func (g *CooldownGate) Cooldown() time.Duration {
	return g.cooldown
}

// Remaining 距离冷却结束还需等待的时长
func (g *CooldownGate) Remaining(cred Credential, now time.Time) time.Duration {
	if g.cooldown <= 0 || cred.LastUsedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(cred.LastUsedAt)
	if elapsed >= g.cooldown {
		return 0
	}
	return g.cooldown - elapsed
}

// AwaitReady 如仍在冷却期则挂起剩余时长，返回实际等待的时长
func (g *CooldownGate) AwaitReady(ctx context.Context, cred Credential, now time.Time) (time.Duration, error) {
	wait := g.Remaining(cred, now)
	if wait <= 0 {
		return 0, ctx.Err()
	}
	if err := g.clock.Sleep(ctx, wait); err != nil {
		return 0, err
	}
	return wait, nil
}
