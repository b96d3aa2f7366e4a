package script

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// TokenCounter 估算文本的 Token 数
type TokenCounter interface {
	Count(text string) int
}

// TokenCounterFunc 函数适配
type TokenCounterFunc func(text string) int

// Count 实现 TokenCounter
func (f TokenCounterFunc) Count(text string) int {
	return f(text)
}

// tiktokenCounter 使用 cl100k_base 编码估算，编码表加载失败时按字符数粗估
type tiktokenCounter struct {
	once   sync.Once
	tkm    *tiktoken.Tiktoken
	logger *zap.Logger
}

// NewTiktokenCounter 创建基于 tiktoken 的计数器，编码表在首次使用时加载
func NewTiktokenCounter(logger *zap.Logger) TokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tiktokenCounter{logger: logger}
}

func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			c.logger.Warn("加载 tiktoken 编码失败，改用字符数估算", zap.Error(err))
			return
		}
		c.tkm = tkm
	})
	if c.tkm == nil {
		return EstimateTokens(text)
	}
	return len(c.tkm.Encode(text, nil, nil))
}

// EstimateTokens 粗略估算：约 4 个字符一个 Token
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len([]rune(text)) + 3) / 4
}
