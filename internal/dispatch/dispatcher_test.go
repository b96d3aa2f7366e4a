package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taole4114/2.-Script-YTB/internal/ai"
	"github.com/taole4114/2.-Script-YTB/internal/credential"
	"github.com/taole4114/2.-Script-YTB/internal/storage"
	"github.com/taole4114/2.-Script-YTB/pkg/aiinterface"
)

// fakeClock Sleep 直接推进时间并记录等待时长
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
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

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// call 一次适配器调用记录
type call struct {
	secret  string
	model   string
	payload aiinterface.Payload
	at      time.Time
}

// mockAdapter 按 Key 返回预设结果的适配器
type mockAdapter struct {
	mu       sync.Mutex
	provider credential.Provider
	clock    *fakeClock
	results  map[string]func() (string, error)
	calls    []call
}

func newMockAdapter(provider credential.Provider, clock *fakeClock) *mockAdapter {
	return &mockAdapter{provider: provider, clock: clock, results: make(map[string]func() (string, error))}
}

func (m *mockAdapter) on(secret, text string, err error) *mockAdapter {
	m.results[secret] = func() (string, error) { return text, err }
	return m
}

func (m *mockAdapter) Provider() credential.Provider { return m.provider }

func (m *mockAdapter) DefaultModel() string { return "default-model" }

func (m *mockAdapter) Execute(_ context.Context, payload aiinterface.Payload, secret, modelID string, _ *aiinterface.GenerationParams) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call{secret: secret, model: modelID, payload: payload, at: m.clock.Now()})
	fn := m.results[secret]
	m.mu.Unlock()
	if fn == nil {
		return "", &aiinterface.ClientError{Type: aiinterface.ErrorTypeInvalidParams, Message: "unexpected key"}
	}
	return fn()
}

func (m *mockAdapter) ClassifyError(err error) *aiinterface.ClientError {
	return &aiinterface.ClientError{Type: aiinterface.ErrorTypeOf(err), Err: err}
}

func (m *mockAdapter) secrets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.secret
	}
	return out
}

var (
	errRateLimited = &aiinterface.ClientError{Type: aiinterface.ErrorTypeRateLimit, Message: "429 quota", StatusCode: 429}
	errAuth        = &aiinterface.ClientError{Type: aiinterface.ErrorTypeAuth, Message: "bad key", StatusCode: 401}
	errNetwork     = &aiinterface.ClientError{Type: aiinterface.ErrorTypeNetwork, Message: "connection reset"}
)

type fixture struct {
	kv      *storage.MemoryStore
	store   *credential.Store
	clock   *fakeClock
	adapter *mockAdapter
	disp    *Dispatcher
}

func newFixture(t *testing.T, creds ...credential.Credential) *fixture {
	t.Helper()
	kv := storage.NewMemoryStore()
	store := credential.NewStore(kv, nil, nil)
	require.NoError(t, store.Save(context.Background(), creds))

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	adapter := newMockAdapter(credential.ProviderGemini, clock)
	disp := New(store, ai.NewRegistry(adapter), Options{Clock: clock})
	return &fixture{kv: kv, store: store, clock: clock, adapter: adapter, disp: disp}
}

func (f *fixture) cred(t *testing.T, id string) credential.Credential {
	t.Helper()
	c, ok := f.store.Get(id)
	require.True(t, ok)
	return c
}

func gemini(id, secret string, lastUsedMs int64) credential.Credential {
	c := credential.Credential{ID: id, Secret: secret, Provider: credential.ProviderGemini}
	if lastUsedMs > 0 {
		c.LastUsedAt = time.UnixMilli(lastUsedMs)
	}
	return c
}

func TestExecute_FirstReadyCandidateWins(t *testing.T) {
	f := newFixture(t,
		gemini("a", "key-a", 5_000),
		gemini("b", "key-b", 1_000),
		gemini("c", "key-c", 3_000),
	)
	f.adapter.on("key-b", "  hello world \n", nil).on("key-c", "other", nil)

	text, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, []string{"key-b"}, f.adapter.secrets())

	// 只有被使用的 Key 的时间戳前进
	assert.Equal(t, f.clock.Now(), f.cred(t, "b").LastUsedAt)
	assert.Equal(t, int64(5_000), f.cred(t, "a").LastUsedAt.UnixMilli())
	assert.Equal(t, int64(3_000), f.cred(t, "c").LastUsedAt.UnixMilli())
}

func TestExecute_OrderIsLeastRecentlyUsed(t *testing.T) {
	f := newFixture(t,
		gemini("a", "key-a", 5_000),
		gemini("b", "key-b", 1_000),
		gemini("c", "key-c", 3_000),
	)

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.Error(t, err)
	assert.Equal(t, []string{"key-b", "key-c", "key-a"}, f.adapter.secrets())
}

func TestExecute_NoCredentials(t *testing.T) {
	f := newFixture(t, credential.Credential{ID: "o", Secret: "sk", Provider: credential.ProviderOpenAI})

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	assert.ErrorIs(t, err, ErrNoCredentialsConfigured)
	assert.NotErrorIs(t, err, ErrAllCredentialsFailed)
	assert.Empty(t, f.adapter.secrets())
}

func TestExecute_AllExhaustedMakesNoCalls(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	a := gemini("a", "key-a", 0)
	a.ExhaustedUntil = now.Add(time.Hour)
	b := gemini("b", "key-b", 0)
	b.ExhaustedUntil = now.Add(2 * time.Hour)
	f := newFixture(t, a, b)

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	var failed *AllCredentialsFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, ErrAllCredentialsFailed)
	assert.ErrorIs(t, err, ErrExhaustedCredential)
	assert.Equal(t, 2, failed.Candidates)
	assert.Zero(t, failed.Attempts)
	assert.Empty(t, f.adapter.secrets())
	assert.True(t, f.cred(t, "a").LastUsedAt.IsZero())
}

func TestExecute_RateLimitQuarantinesAndFailsOver(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 1_000), gemini("b", "key-b", 2_000))
	f.adapter.on("key-a", "", errRateLimited).on("key-b", "from b", nil)

	text, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.NoError(t, err)
	assert.Equal(t, "from b", text)
	assert.Equal(t, []string{"key-a", "key-b"}, f.adapter.secrets())

	a := f.cred(t, "a")
	assert.True(t, a.IsExhausted(f.clock.Now()))
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), a.ExhaustedUntil)
	assert.True(t, f.cred(t, "b").ExhaustedUntil.IsZero())

	// 隔离状态已持久化
	reloaded, _, err := credential.NewStore(f.kv, nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, reloaded[0].ExhaustedUntil.IsZero())
}

func TestExecute_ExhaustedKeyIsSkippedUntouched(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	a := gemini("a", "key-a", 500)
	a.ExhaustedUntil = now.Add(time.Hour)
	f := newFixture(t, a, gemini("b", "key-b", 1_000))
	f.adapter.on("key-b", "ok", nil)

	text, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, []string{"key-b"}, f.adapter.secrets())
	got := f.cred(t, "a")
	assert.Equal(t, int64(500), got.LastUsedAt.UnixMilli())
	assert.Equal(t, a.ExhaustedUntil, got.ExhaustedUntil)
}

func TestExecute_QuarantineExpiresLazily(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 0))
	f.adapter.on("key-a", "", errRateLimited)

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
	require.ErrorIs(t, err, ErrAllCredentialsFailed)

	_, err = f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
	require.ErrorIs(t, err, ErrExhaustedCredential)
	assert.Len(t, f.adapter.secrets(), 1)

	f.clock.advance(24 * time.Hour)
	f.adapter.on("key-a", "back", nil)
	text, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "back", text)
}

func TestExecute_AllFailedCarriesLastCause(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 1_000), gemini("b", "key-b", 2_000))
	f.adapter.on("key-a", "", errAuth).on("key-b", "   ", nil)

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	var failed *AllCredentialsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 2, failed.Attempts)
	assert.Equal(t, aiinterface.ErrorTypeEmptyResponse, aiinterface.ErrorTypeOf(errors.Unwrap(err)))
	// 非配额错误不隔离
	assert.True(t, f.cred(t, "a").ExhaustedUntil.IsZero())
}

func TestExecute_FailedAttemptStillStampsKey(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 0))
	f.adapter.on("key-a", "", errNetwork)

	_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.ErrorIs(t, err, ErrAllCredentialsFailed)
	assert.Equal(t, f.clock.Now(), f.cred(t, "a").LastUsedAt)

	reloaded, _, err := credential.NewStore(f.kv, nil, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().UnixMilli(), reloaded[0].LastUsedAt.UnixMilli())
}

func TestExecute_CooldownSpacesReuse(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 0))
	f.adapter.on("key-a", "ok", nil)

	for i := 0; i < 3; i++ {
		_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
		require.NoError(t, err)
		f.clock.advance(500 * time.Millisecond)
	}

	calls := f.adapter.calls
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].at.Sub(calls[i-1].at), 2*time.Second)
	}
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, f.clock.sleeps)
}

func TestExecute_ConcurrentCallsShareCooldown(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 0))
	f.adapter.on("key-a", "ok", nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.adapter.secrets(), 4)
	// 同一 Key 的每次使用都等满冷却时间，没有两个调用落在同一槽位
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, f.clock.sleeps)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).Add(6*time.Second), f.cred(t, "a").LastUsedAt)
}

func TestExecute_CancelledContext(t *testing.T) {
	f := newFixture(t, gemini("a", "key-a", 0), gemini("b", "key-b", 0))
	ctx, cancel := context.WithCancel(context.Background())
	f.adapter.results["key-a"] = func() (string, error) {
		cancel()
		return "", errNetwork
	}

	_, err := f.disp.Execute(ctx, aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllCredentialsFailed)
	assert.Equal(t, []string{"key-a"}, f.adapter.secrets())
}

func TestExecute_ModelResolution(t *testing.T) {
	withModel := gemini("a", "key-a", 0)
	withModel.ModelID = "bound-model"
	f := newFixture(t, withModel, gemini("b", "key-b", 1))
	f.adapter.on("key-a", "", errNetwork).on("key-b", "", errNetwork)

	_, _ = f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")
	require.Len(t, f.adapter.calls, 2)
	assert.Equal(t, "bound-model", f.adapter.calls[0].model)
	assert.Equal(t, "default-model", f.adapter.calls[1].model)

	f.clock.advance(time.Minute)
	_, _ = f.disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "explicit")
	require.Len(t, f.adapter.calls, 4)
	assert.Equal(t, "explicit", f.adapter.calls[2].model)
	assert.Equal(t, "explicit", f.adapter.calls[3].model)
}

func TestExecute_PersistFailureDoesNotAbort(t *testing.T) {
	store := credential.NewStore(readOnlyKV{storage.NewMemoryStore()}, nil, nil)
	_ = store.Save(context.Background(), []credential.Credential{gemini("a", "key-a", 0)})
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	adapter := newMockAdapter(credential.ProviderGemini, clock).on("key-a", "fine", nil)
	disp := New(store, ai.NewRegistry(adapter), Options{Clock: clock})

	text, err := disp.Execute(context.Background(), aiinterface.PromptPayload("p"), credential.ProviderGemini, nil, "")

	require.NoError(t, err)
	assert.Equal(t, "fine", text)
}

type readOnlyKV struct {
	*storage.MemoryStore
}

func (readOnlyKV) Set(context.Context, string, string) error {
	return errors.New("read-only")
}
