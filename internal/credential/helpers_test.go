package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

// fakeClock 手动推进的时钟，Sleep 直接把时间向前拨
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingKV 写入总是失败的键值存储
type failingKV struct {
	*storage.MemoryStore
}

var errSetFailed = errors.New("写入失败")

func (f failingKV) Set(context.Context, string, string) error {
	return errSetFailed
}
