package ai

import "github.com/taole4114/2.-Script-YTB/internal/credential"

// ModelInfo 可选模型
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProviderModels 某个提供商的可选模型列表
type ProviderModels struct {
	Provider     credential.Provider `json:"provider"`
	DefaultModel string              `json:"defaultModel"`
	Models       []ModelInfo         `json:"models"`
}

// OpenRouterModels 提交 OpenRouter Key 时可选的模型
var OpenRouterModels = []ModelInfo{
	{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet"},
	{ID: "openai/gpt-4o", Name: "GPT-4o"},
	{ID: "google/gemini-1.5-pro", Name: "Gemini 1.5 Pro"},
	{ID: "meta-llama/llama-3.1-70b-instruct", Name: "Llama 3.1 70B"},
	{ID: "deepseek/deepseek-v2-chat", Name: "DeepSeek V2 Chat"},
	{ID: "mistralai/mistral-large", Name: "Mistral Large"},
	{ID: "anthropic/claude-3-haiku", Name: "Claude 3 Haiku"},
	{ID: "google/gemini-1.5-flash", Name: "Gemini 1.5 Flash"},
	{ID: "openai/gpt-4o-mini", Name: "GPT-4o Mini"},
}

// OpenAIModels OpenAI 可选模型
var OpenAIModels = []ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o"},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini"},
}

// Catalog 汇总已注册提供商的模型列表
func (r *Registry) Catalog() []ProviderModels {
	var out []ProviderModels
	for _, provider := range r.Providers() {
		adapter, err := r.Get(provider)
		if err != nil {
			continue
		}
		entry := ProviderModels{Provider: provider, DefaultModel: adapter.DefaultModel()}
		switch provider {
		case credential.ProviderOpenRouter:
			entry.Models = OpenRouterModels
		case credential.ProviderOpenAI:
			entry.Models = OpenAIModels
		default:
			entry.Models = []ModelInfo{{ID: adapter.DefaultModel(), Name: adapter.DefaultModel()}}
		}
		out = append(out, entry)
	}
	return out
}
