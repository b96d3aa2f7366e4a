package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
)

type stubAdapter struct {
	provider credential.Provider
	model    string
}

func (s stubAdapter) Provider() credential.Provider { return s.provider }
func (s stubAdapter) DefaultModel() string          { return s.model }
func (s stubAdapter) Execute(context.Context, Payload, string, string, *GenerationParams) (string, error) {
	return "", nil
}
func (s stubAdapter) ClassifyError(err error) *ClientError {
	return &ClientError{Type: ErrorTypeUnknown, Message: "stub", Err: err}
}

func TestRegistry_GetAndProviders(t *testing.T) {
	r := NewRegistry(
		stubAdapter{provider: credential.ProviderOpenRouter, model: "openai/gpt-4o-mini"},
		stubAdapter{provider: credential.ProviderGemini, model: "gemini-2.5-flash"},
	)

	adapter, err := r.Get(credential.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", adapter.DefaultModel())

	_, err = r.Get(credential.ProviderOpenAI)
	assert.Error(t, err)

	// 按固定顺序返回，与注册顺序无关
	assert.Equal(t, []credential.Provider{credential.ProviderGemini, credential.ProviderOpenRouter}, r.Providers())
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	r := NewRegistry(stubAdapter{provider: credential.ProviderOpenAI, model: "gpt-4o"})
	r.Register(stubAdapter{provider: credential.ProviderOpenAI, model: "gpt-4o-mini"})

	adapter, err := r.Get(credential.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", adapter.DefaultModel())
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name, explicit, cred, fallback, want string
	}{
		{"显式优先", "a", "b", "c", "a"},
		{"Key 绑定其次", "", "b", "c", "b"},
		{"适配器默认", "", "", "c", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveModel(tt.explicit, tt.cred, tt.fallback))
		})
	}
}

func TestCatalog(t *testing.T) {
	r := NewRegistry(
		stubAdapter{provider: credential.ProviderGemini, model: "gemini-2.5-flash"},
		stubAdapter{provider: credential.ProviderOpenAI, model: "gpt-4o"},
		stubAdapter{provider: credential.ProviderOpenRouter, model: "openai/gpt-4o-mini"},
	)

	catalog := r.Catalog()

	require.Len(t, catalog, 3)
	assert.Equal(t, credential.ProviderGemini, catalog[0].Provider)
	assert.Equal(t, []ModelInfo{{ID: "gemini-2.5-flash", Name: "gemini-2.5-flash"}}, catalog[0].Models)
	assert.Len(t, catalog[1].Models, len(OpenAIModels))
	assert.Len(t, catalog[2].Models, len(OpenRouterModels))
	assert.Equal(t, "openai/gpt-4o-mini", catalog[2].DefaultModel)
}
