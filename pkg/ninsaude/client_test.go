package ninsaude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/saraivavision/clinic-gateway/pkg/ratelimit"
	"github.com/saraivavision/clinic-gateway/pkg/tokencache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProvider simulates the Ninsaúde API plus its OAuth2 token endpoint.
type fakeProvider struct {
	mu            sync.Mutex
	srv           *httptest.Server
	validToken    string
	tokenRequests atomic.Int32
	grantTypes    []string
	apiHits       []string // Authorization headers seen by the API endpoint
	failTokens    bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{validToken: "initial-token"}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenRequests.Add(1)

		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload) //nolint:errcheck

		p.mu.Lock()
		p.grantTypes = append(p.grantTypes, payload["grant_type"])
		fail := p.failTokens
		p.mu.Unlock()

		if fail {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		p.mu.Lock()
		p.validToken = "token-" + time.Now().Format("150405.000000")
		token := p.validToken
		p.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token":  token,
			"refresh_token": "refresh-1",
			"expires_in":    900,
			"token_type":    "Bearer",
		})
	})
	mux.HandleFunc("/atendimento/listar", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		p.mu.Lock()
		p.apiHits = append(p.apiHits, auth)
		valid := auth == "Bearer "+p.validToken
		p.mu.Unlock()

		if !valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}}) //nolint:errcheck
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func newTestClient(t *testing.T, p *fakeProvider, opts ...ratelimit.Option) (*Client, *tokencache.Cache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := tokencache.New(rdb, zap.NewNop())

	conf := Config{
		BaseURL:  p.srv.URL,
		Account:  "clinic",
		Username: "api-user",
		Password: "api-pass",
	}
	conf.setDefaults()

	limiter := ratelimit.New(opts...)
	return NewClient(conf, p.srv.Client(), cache, limiter, zap.NewNop()), cache
}

func TestAuthenticatesOnFirstRequest(t *testing.T) {
	p := newFakeProvider(t)
	client, cache := newTestClient(t, p)

	resp, err := client.Get(context.Background(), "/atendimento/listar")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), p.tokenRequests.Load())
	// No refresh token existed, so the client fell back to password grant.
	assert.Equal(t, []string{"password"}, p.grantTypes)

	stored, err := cache.GetToken(context.Background(), accessTokenType)
	require.NoError(t, err)
	assert.Equal(t, p.validToken, stored)
}

func TestRefreshRetryOnceOn401(t *testing.T) {
	p := newFakeProvider(t)
	client, cache := newTestClient(t, p)

	// Seed a stale access token and a refresh token.
	ctx := context.Background()
	require.NoError(t, cache.StoreToken(ctx, accessTokenType, "stale-token", time.Minute))
	require.NoError(t, cache.StoreToken(ctx, refreshTokenType, "refresh-0", time.Hour))

	resp, err := client.Get(ctx, "/atendimento/listar")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"refresh_token"}, p.grantTypes)

	// First attempt carried the stale token, the retry the refreshed one.
	require.Len(t, p.apiHits, 2)
	assert.Equal(t, "Bearer stale-token", p.apiHits[0])
	assert.Equal(t, "Bearer "+p.validToken, p.apiHits[1])
}

func TestRefreshFailurePropagates(t *testing.T) {
	p := newFakeProvider(t)
	p.failTokens = true
	client, cache := newTestClient(t, p)

	ctx := context.Background()
	require.NoError(t, cache.StoreToken(ctx, accessTokenType, "stale-token", time.Minute))

	_, err := client.Get(ctx, "/atendimento/listar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)

	// Exactly one request reached the API; there was no second retry loop.
	assert.Len(t, p.apiHits, 1)
}

func TestRateLimitRejectsBeforeSending(t *testing.T) {
	p := newFakeProvider(t)
	client, _ := newTestClient(t, p, ratelimit.WithCapacity(2))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp, err := client.Get(ctx, "/atendimento/listar")
		require.NoError(t, err)
		_ = resp.Body.Close() //nolint:errcheck
	}

	_, err := client.Get(ctx, "/atendimento/listar")
	assert.ErrorIs(t, err, ErrRateLimited)

	// The rejected request never reached the API.
	assert.Len(t, p.apiHits, 2)
	assert.True(t, client.RateLimited())
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	p := newFakeProvider(t)
	client, cache := newTestClient(t, p, ratelimit.WithCapacity(100))

	ctx := context.Background()
	require.NoError(t, cache.StoreToken(ctx, accessTokenType, "stale-token", time.Minute))
	require.NoError(t, cache.StoreToken(ctx, refreshTokenType, "refresh-0", time.Hour))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(ctx, "/atendimento/listar")
			if err != nil {
				errs <- err
				return
			}
			_ = resp.Body.Close() //nolint:errcheck
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("request failed: %v", err)
	}

	// All stale-token 401s should have shared a small number of refreshes,
	// not one round-trip each. Timing can split the single-flight window,
	// so allow a little slack below the request count.
	assert.LessOrEqual(t, p.tokenRequests.Load(), int32(3))
}
