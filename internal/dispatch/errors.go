package dispatch

import (
	"errors"
	"fmt"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
)

var (
	// ErrNoCredentialsConfigured 该提供商没有任何 Key，需要用户先提交
	ErrNoCredentialsConfigured = errors.New("未配置该提供商的 API Key")

	// ErrExhaustedCredential Key 仍处于配额隔离期，未发起请求
	ErrExhaustedCredential = errors.New("API Key 配额已耗尽，处于隔离期")

	// ErrAllCredentialsFailed 所有候选 Key 均失败，用于 errors.Is 判断
	ErrAllCredentialsFailed = errors.New("所有 API Key 均调用失败")
)

// AllCredentialsFailedError 所有候选 Key 均失败，Cause 为最后一次失败原因
type AllCredentialsFailedError struct {
	Provider   credential.Provider
	Candidates int // 候选 Key 数量
	Attempts   int // 实际发起的网络请求次数
	Cause      error
}

func (e *AllCredentialsFailedError) Error() string {
	msg := fmt.Sprintf("%s 的所有 API Key 均调用失败（候选 %d 个，请求 %d 次）", e.Provider, e.Candidates, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AllCredentialsFailedError) Unwrap() error {
	return e.Cause
}

// Is 使 errors.Is(err, ErrAllCredentialsFailed) 成立
func (e *AllCredentialsFailedError) Is(target error) bool {
	return target == ErrAllCredentialsFailed
}
