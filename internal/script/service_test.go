package script

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

type executeCall struct {
	payload  aiinterface.Payload
	provider credential.Provider
	params   *aiinterface.GenerationParams
	model    string
}

// fakeExecutor 记录调用并按顺序返回结果
type fakeExecutor struct {
	calls   []executeCall
	results []string
	err     error
	failAt  int // 第几次调用返回 err，从 1 开始，0 表示总是成功
}

func (f *fakeExecutor) Execute(_ context.Context, payload aiinterface.Payload, provider credential.Provider, params *aiinterface.GenerationParams, modelID string) (string, error) {
	f.calls = append(f.calls, executeCall{payload: payload, provider: provider, params: params, model: modelID})
	n := len(f.calls)
	if f.err != nil && (f.failAt == 0 || f.failAt == n) {
		return "", f.err
	}
	if n <= len(f.results) {
		return f.results[n-1], nil
	}
	return "generated", nil
}

var stubTokens = TokenCounterFunc(func(text string) int { return len(text) })

func newTestService(t *testing.T, exec Executor) *Service {
	return NewService(exec, stubTokens, zaptest.NewLogger(t))
}

var testOutline = []OutlineSection{
	{Title: "Origins", WordTarget: "~800 words", Description: "Where it began."},
	{Title: "Rise", WordTarget: "~900 words", Description: "How it grew."},
	{Title: "Fall", WordTarget: "~700 words", Description: "How it ended."},
}

func TestGenerateOutline(t *testing.T) {
	exec := &fakeExecutor{results: []string{"outline text"}}
	svc := newTestService(t, exec)

	out, err := svc.GenerateOutline(context.Background(), "  The Titanic ", credential.ProviderOpenRouter, "openai/gpt-4o")

	require.NoError(t, err)
	assert.Equal(t, "outline text", out)
	require.Len(t, exec.calls, 1)
	c := exec.calls[0]
	assert.False(t, c.payload.IsStructured())
	assert.Contains(t, c.payload.Prompt, `"The Titanic"`)
	assert.Equal(t, credential.ProviderOpenRouter, c.provider)
	assert.Equal(t, "openai/gpt-4o", c.model)
	require.NotNil(t, c.params)
	assert.Equal(t, 0.7, *c.params.Temperature)
	assert.Equal(t, 0.95, *c.params.TopP)
	assert.Equal(t, 40, *c.params.TopK)
}

func TestGenerateOutline_EmptyTitle(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestService(t, exec).GenerateOutline(context.Background(), "   ", credential.ProviderGemini, "")

	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Empty(t, exec.calls)
}

func TestGenerateOutline_PropagatesDispatchError(t *testing.T) {
	sentinel := errors.New("all keys failed")
	exec := &fakeExecutor{err: sentinel}

	_, err := newTestService(t, exec).GenerateOutline(context.Background(), "Topic", credential.ProviderGemini, "")

	assert.ErrorIs(t, err, sentinel)
}

func TestGenerateScriptPart_GeminiUsesSinglePromptWithParams(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(t, exec)

	_, err := svc.GenerateScriptPart(context.Background(), PartRequest{
		Title: "Topic", Outline: testOutline, PartIndex: 0,
		Provider: credential.ProviderGemini, Model: "ignored",
	})

	require.NoError(t, err)
	c := exec.calls[0]
	assert.False(t, c.payload.IsStructured())
	assert.True(t, strings.Contains(c.payload.Prompt, "SCRIPT RULES"))
	assert.True(t, strings.Contains(c.payload.Prompt, "**TOPIC:**"))
	assert.Empty(t, c.model)
	require.NotNil(t, c.params)
	assert.Equal(t, 0.8, *c.params.Temperature)
	assert.Equal(t, 50, *c.params.TopK)
}

func TestGenerateScriptPart_ChatProvidersUseSystemAndUser(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(t, exec)

	_, err := svc.GenerateScriptPart(context.Background(), PartRequest{
		Title: "Topic", Outline: testOutline, Parts: []string{"one"}, PartIndex: 1,
		Provider: credential.ProviderOpenAI, Model: "gpt-4o-mini",
	})

	require.NoError(t, err)
	c := exec.calls[0]
	assert.True(t, c.payload.IsStructured())
	assert.Contains(t, c.payload.System, "SCRIPT RULES")
	assert.Contains(t, c.payload.User, "Part 2: Rise")
	assert.Nil(t, c.params)
	assert.Equal(t, "gpt-4o-mini", c.model)
}

func TestGenerateScriptPart_InvalidIndex(t *testing.T) {
	exec := &fakeExecutor{}
	svc := newTestService(t, exec)

	for _, idx := range []int{-1, 3, 10} {
		_, err := svc.GenerateScriptPart(context.Background(), PartRequest{
			Title: "Topic", Outline: testOutline, PartIndex: idx, Provider: credential.ProviderGemini,
		})
		assert.ErrorIs(t, err, ErrInvalidPartIndex)
	}
	_, err := svc.GenerateScriptPart(context.Background(), PartRequest{Title: "Topic", Provider: credential.ProviderGemini})
	assert.ErrorIs(t, err, ErrEmptyOutline)
	assert.Empty(t, exec.calls)
}

func TestExport(t *testing.T) {
	assert.Equal(t, "a\n\n---\n\nb", JoinParts([]string{"a", "b"}))
	assert.Equal(t, "The_Lost_City_script.txt", ExportFilename("The Lost City"))
	assert.Equal(t, "untitled_script.txt", ExportFilename("  "))
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}
