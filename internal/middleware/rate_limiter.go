package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	RequestsPerMinute int           // 每分钟请求数，<=0 表示不限
	BurstSize         int           // 突发容量
	CleanupInterval   time.Duration // 清理间隔
}

// DefaultRateLimiterConfig 默认配置
// 生成接口单次可能等待数十秒，正常使用远达不到该上限
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

type clientState struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter 按客户端的令牌桶限流器
type RateLimiter struct {
	config  *RateLimiterConfig
	now     func() time.Time
	clients map[string]*clientState
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter 创建限流器并启动后台清理
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimiterConfig()
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	if rl.config.RequestsPerMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	burst := float64(rl.config.BurstSize)
	state, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientState{tokens: burst - 1, lastUpdate: now}
		return true
	}

	// 令牌桶：按分钟速率补充
	elapsed := now.Sub(state.lastUpdate).Minutes()
	state.tokens += elapsed * float64(rl.config.RequestsPerMinute)
	if state.tokens > burst {
		state.tokens = burst
	}
	state.lastUpdate = now

	if state.tokens < 1 {
		return false
	}
	state.tokens--
	return true
}

// retryAfter 获得下一个令牌所需秒数
func (rl *RateLimiter) retryAfter() int {
	if rl.config.RequestsPerMinute <= 0 {
		return 0
	}
	secs := 60 / rl.config.RequestsPerMinute
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, state := range rl.clients {
				if now.Sub(state.lastUpdate) > 10*time.Minute {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop 停止限流器，可重复调用
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// RateLimitMiddleware 按客户端 IP 限流
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			retry := limiter.retryAfter()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"code":        "RATE_LIMIT_EXCEEDED",
				"message":     "请求过于频繁，请稍后重试",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}
