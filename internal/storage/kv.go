// Package storage 提供凭证快照等数据的键值持久化实现
package storage

import (
	"context"
	"errors"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("键不存在")

// KeyValueStore 键值持久化接口
// 只需要整体读写，不支持部分更新
type KeyValueStore interface {
	// Get 读取键值，键不存在时返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set 整体覆盖写入
	Set(ctx context.Context, key, value string) error

	// Delete 删除键，键不存在时不报错
	Delete(ctx context.Context, key string) error
}

// Pinger 可选的健康检查能力
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping 对支持健康检查的存储执行 Ping，其余实现视为可用
func Ping(ctx context.Context, store KeyValueStore) error {
	if p, ok := store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
