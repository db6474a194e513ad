package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/calstats/internal/config"
	"github.com/teemow/calstats/internal/logging"
)

const testTenant = "contoso-tenant"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeIdentityProvider serves the tenant token endpoint and counts grants.
type fakeIdentityProvider struct {
	t        *testing.T
	server   *httptest.Server
	requests atomic.Int32

	mu      sync.Mutex
	respond func(w http.ResponseWriter, r *http.Request, n int32)
}

func newFakeIdentityProvider(t *testing.T) *fakeIdentityProvider {
	t.Helper()

	p := &fakeIdentityProvider{t: t}
	p.respond = func(w http.ResponseWriter, _ *http.Request, n int32) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+testTenant+"/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		n := p.requests.Add(1)
		p.mu.Lock()
		respond := p.respond
		p.mu.Unlock()
		respond(w, r, n)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeIdentityProvider) setResponder(f func(w http.ResponseWriter, r *http.Request, n int32)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.respond = f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func testCredentials(authority string) Credentials {
	return Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     testTenant,
		AuthorityURL: authority,
		Scopes:       []string{config.DefaultGraphScope},
	}
}

func newTestManager(t *testing.T, p *fakeIdentityProvider, clock *fakeClock) *TokenManager {
	t.Helper()

	cfg := ManagerConfig{
		HTTPClient:     p.server.Client(),
		RequestTimeout: 5 * time.Second,
		Logger:         logging.DiscardLogger(),
	}
	if clock != nil {
		cfg.Now = clock.Now
	}

	tm, err := NewTokenManager(testCredentials(p.server.URL), cfg)
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager_InvalidCredentials(t *testing.T) {
	creds := testCredentials("https://login.microsoftonline.com")
	creds.ClientSecret = ""
	creds.Scopes = []string{"Calendars.Read"}

	_, err := NewTokenManager(creds, ManagerConfig{})
	require.Error(t, err)

	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{config.EnvClientSecret}, cerr.Missing)
	require.Len(t, cerr.Invalid, 1)
	assert.Contains(t, cerr.Invalid[0], "Calendars.Read")
}

func TestGetToken_SendsClientCredentialGrant(t *testing.T) {
	p := newFakeIdentityProvider(t)
	p.setResponder(func(w http.ResponseWriter, r *http.Request, _ int32) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, config.DefaultGraphScope, r.PostForm.Get("scope"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "abc",
			"token_type":   "Bearer",
			"expires_in":   3599,
		})
	})

	tm := newTestManager(t, p, nil)

	token, err := tm.GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, int32(1), p.requests.Load())
}

func TestGetToken_ReusesCachedTokenWithinWindow(t *testing.T) {
	p := newFakeIdentityProvider(t)
	clock := newFakeClock()
	tm := newTestManager(t, p, clock)

	first, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)

	second, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.requests.Load())

	status := tm.Status()
	assert.True(t, status.Cached)
	assert.True(t, status.Valid)
}

func TestGetToken_RefreshesInsideMargin(t *testing.T) {
	p := newFakeIdentityProvider(t)
	clock := newFakeClock()
	tm := newTestManager(t, p, clock)

	first, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	// 3600s lifetime, 60s margin: at 3550s the token is no longer handed out.
	clock.Advance(3550 * time.Second)
	assert.False(t, tm.Status().Valid)

	second, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), p.requests.Load())
	assert.True(t, tm.Status().Valid)
}

func TestGetToken_DefaultLifetimeWithoutExpiresIn(t *testing.T) {
	p := newFakeIdentityProvider(t)
	p.setResponder(func(w http.ResponseWriter, _ *http.Request, _ int32) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "no-expiry",
			"token_type":   "Bearer",
		})
	})
	clock := newFakeClock()
	tm := newTestManager(t, p, clock)

	_, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	status := tm.Status()
	assert.WithinDuration(t, clock.Now().Add(DefaultTokenLifetime), status.ExpiresAt, time.Second)
}

func TestGetToken_MissingAccessToken(t *testing.T) {
	p := newFakeIdentityProvider(t)
	p.setResponder(func(w http.ResponseWriter, _ *http.Request, _ int32) {
		writeJSON(w, http.StatusOK, map[string]any{
			"token_type": "Bearer",
			"expires_in": 3600,
		})
	})
	tm := newTestManager(t, p, nil)

	token, err := tm.GetToken(t.Context())
	require.Error(t, err)
	assert.Empty(t, token)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	assert.False(t, tm.Status().Cached, "a failed acquisition must not populate the cache")

	// The next call tries again rather than serving a cached failure.
	_, err = tm.GetToken(t.Context())
	require.Error(t, err)
	assert.Equal(t, int32(2), p.requests.Load())
}

func TestGetToken_ProviderRejection(t *testing.T) {
	p := newFakeIdentityProvider(t)
	p.setResponder(func(w http.ResponseWriter, _ *http.Request, _ int32) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid_client",
			"error_description": "AADSTS7000215: Invalid client secret provided.",
		})
	})
	tm := newTestManager(t, p, nil)

	_, err := tm.GetToken(t.Context())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "invalid_client", authErr.Code)
	assert.Contains(t, authErr.Description, "AADSTS7000215")
	assert.Contains(t, authErr.Error(), "invalid_client")
	assert.False(t, authErr.Timeout())
	assert.False(t, tm.Status().Cached)
	assert.Equal(t, int32(1), p.requests.Load(), "no automatic retry")
}

func TestGetToken_ProviderUnreachable(t *testing.T) {
	p := newFakeIdentityProvider(t)
	tm := newTestManager(t, p, nil)
	p.server.Close()

	_, err := tm.GetToken(t.Context())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.StatusCode)
	assert.NotNil(t, authErr.Unwrap())
}

func TestGetToken_ConcurrentCallersShareOneRequest(t *testing.T) {
	p := newFakeIdentityProvider(t)
	release := make(chan struct{})
	p.setResponder(func(w http.ResponseWriter, _ *http.Request, _ int32) {
		<-release
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "shared",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	tm := newTestManager(t, p, nil)

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = tm.GetToken(context.Background())
		}()
	}

	// Let the callers pile up behind the in-flight request.
	require.Eventually(t, func() bool { return p.requests.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", tokens[i])
	}
	assert.Equal(t, int32(1), p.requests.Load())
}

func TestGetToken_CallerCancellationDoesNotPoisonRefresh(t *testing.T) {
	p := newFakeIdentityProvider(t)
	release := make(chan struct{})
	p.setResponder(func(w http.ResponseWriter, _ *http.Request, _ int32) {
		<-release
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "late",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	tm := newTestManager(t, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tm.GetToken(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.requests.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	close(release)
	require.Eventually(t, func() bool { return tm.Status().Cached }, 2*time.Second, 5*time.Millisecond)

	token, err := tm.GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "late", token)
	assert.Equal(t, int32(1), p.requests.Load())
}

func TestInvalidate(t *testing.T) {
	p := newFakeIdentityProvider(t)
	tm := newTestManager(t, p, nil)

	_, err := tm.GetToken(t.Context())
	require.NoError(t, err)

	tm.Invalidate()
	assert.Equal(t, TokenStatus{}, tm.Status())

	_, err = tm.GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.requests.Load())
}

func TestStaticToken(t *testing.T) {
	token, err := StaticToken("fixed").GetToken(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "fixed", token)

	_, err = StaticToken("").GetToken(t.Context())
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
