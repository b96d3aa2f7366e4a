package ai

import (
	"fmt"
	"sync"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
)

// Registry 按提供商索引的适配器集合
type Registry struct {
	mu       sync.RWMutex
	adapters map[credential.Provider]ProviderAdapter
}

// NewRegistry 创建适配器注册表
func NewRegistry(adapters ...ProviderAdapter) *Registry {
	r := &Registry{adapters: make(map[credential.Provider]ProviderAdapter)}
	for _, adapter := range adapters {
		r.Register(adapter)
	}
	return r
}

// Register 注册适配器，同一提供商后注册的覆盖先注册的
func (r *Registry) Register(adapter ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Provider()] = adapter
}

// Get 获取提供商对应的适配器
func (r *Registry) Get(provider credential.Provider) (ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("未注册的提供商: %s", provider)
	}
	return adapter, nil
}

// Providers 已注册的提供商
func (r *Registry) Providers() []credential.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []credential.Provider
	for _, p := range credential.AllProviders() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ResolveModel 确定本次调用使用的模型：显式指定 > Key 绑定 > 适配器默认
func ResolveModel(explicit, credentialModel, fallback string) string {
	switch {
	case explicit != "":
		return explicit
	case credentialModel != "":
		return credentialModel
	default:
		return fallback
	}
}
