package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taole4114/2.-Script-YTB/api/handlers/common"
	"github.com/taole4114/2.-Script-YTB/api/handlers/credentials"
	"github.com/taole4114/2.-Script-YTB/internal/config"
	"github.com/taole4114/2.-Script-YTB/internal/script"
	"github.com/taole4114/2.-Script-YTB/internal/storage"
)

const (
	okCompletion      = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  generated outline \n"}}]}`
	rateLimitedAnswer = `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`
)

// newProviderServer 按 Bearer Key 返回成功或 429
func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer sk-limited" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(rateLimitedAnswer))
			return
		}
		_, _ = w.Write([]byte(okCompletion))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := newProviderServer(t)

	cfg := &config.Config{
		Dispatch: config.DispatchConfig{Cooldown: -1, Quarantine: 24 * time.Hour},
		Providers: config.ProvidersConfig{
			Timeout:    5 * time.Second,
			Gemini:     config.GeminiConfig{BaseURL: srv.URL},
			OpenAI:     config.OpenAIConfig{BaseURL: srv.URL},
			OpenRouter: config.OpenRouterConfig{BaseURL: srv.URL},
		},
	}
	tokens := script.TokenCounterFunc(func(text string) int { return len(text) })
	container, err := NewAppContainer(context.Background(), cfg, storage.NewMemoryStore(), nil, tokens, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewRouter(container, NewHandlers(container), nil)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealthAndReady(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestCredentials_SubmitAndList(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/credentials", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list credentials.ListResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.False(t, list.Configured)

	w = doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{
		"openaiKeys": "sk-good\n\n  sk-other  \n",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	assert.True(t, list.Configured)
	require.Len(t, list.Keys, 2)
	assert.Equal(t, "gpt-4o", list.Keys[0].Model)
	assert.NotContains(t, w.Body.String(), "sk-good")
}

func TestCredentials_SubmitValidation(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"openrouterKeys": "or-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"geminiKeys": "  \n "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutline_NoCredentials(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"title": "深海", "provider": "openai"})

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, common.CodeNoCredentials, decode(t, w).Code)
}

func TestOutline_Success(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"openaiKeys": "sk-good"}).Code)

	w := doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"title": "深海", "provider": "OpenAI"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Outline string `json:"outline"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.Equal(t, "generated outline", resp.Outline)
}

func TestOutline_FailoverAndQuarantine(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"openaiKeys": "sk-limited\nsk-good"}).Code)

	w := doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"title": "深海", "provider": "openai"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var list credentials.ListResponse
	require.NoError(t, json.Unmarshal(decode(t, doJSON(t, r, http.MethodGet, "/api/credentials", nil)).Data, &list))
	require.Len(t, list.Keys, 2)
	assert.True(t, list.Keys[0].Exhausted)
	assert.NotNil(t, list.Keys[0].ExhaustedUntil)
	assert.False(t, list.Keys[1].Exhausted)
}

func TestOutline_AllCredentialsFailed(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"openaiKeys": "sk-limited"}).Code)

	w := doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"title": "深海", "provider": "openai"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, common.CodeAllCredentialsFailed, decode(t, w).Code)
}

func TestOutline_InvalidRequest(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"title": "深海", "provider": "anthropic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/outline", map[string]string{"provider": "openai"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScriptPart_SuccessAndValidation(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPut, "/api/credentials", map[string]string{"openaiKeys": "sk-good"}).Code)
	outline := []script.OutlineSection{
		{Title: "开场", WordTarget: "~500 words", Description: "引入"},
		{Title: "结尾", WordTarget: "~800 words", Description: "收束"},
	}

	w := doJSON(t, r, http.MethodPost, "/api/script-parts", map[string]any{
		"title": "深海", "outline": outline, "parts": []string{"第一段"}, "partIndex": 1, "provider": "openai",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(decode(t, w).Data), "generated outline")

	w = doJSON(t, r, http.MethodPost, "/api/script-parts", map[string]any{
		"title": "深海", "outline": outline, "partIndex": 2, "provider": "openai",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/script-parts", map[string]any{
		"title": "深海", "outline": outline, "provider": "openai",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/script/export", map[string]any{
		"title": "Deep Sea Story", "parts": []string{"one", "two"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "one\n\n---\n\ntwo", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Deep_Sea_Story_script.txt")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestModels(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/models", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var catalog []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &catalog))
	assert.Len(t, catalog, 3)
}

func TestScriptJobs_Disabled(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/script-jobs", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/outline", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
