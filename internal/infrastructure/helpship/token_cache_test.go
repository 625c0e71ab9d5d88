package helpship

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/velaro/ordersync/internal/domain/integration"
)

type stubTokenSource struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	ttl    time.Duration
	err    error
}

func (s *stubTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	tok := s.tokens[(s.calls-1)%len(s.tokens)]
	return &oauth2.Token{AccessToken: tok, Expiry: time.Now().Add(s.ttl)}, nil
}

func (s *stubTokenSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestTokenCache_ReusesValidToken(t *testing.T) {
	source := &stubTokenSource{tokens: []string{"t1", "t2"}, ttl: time.Hour}
	cache := NewTokenCache(source)

	for range 3 {
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t1", tok)
	}
	assert.Equal(t, 1, source.callCount())
	assert.WithinDuration(t, time.Now().Add(time.Hour), cache.ExpiresAt(), time.Minute)
}

func TestTokenCache_RefreshesBeforeExpiry(t *testing.T) {
	t.Run("inside the default buffer", func(t *testing.T) {
		// four minutes left is inside the five minute buffer
		source := &stubTokenSource{tokens: []string{"t1", "t2"}, ttl: 4 * time.Minute}
		cache := NewTokenCache(source)

		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t1", tok)

		tok, err = cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t2", tok)
		assert.Equal(t, 2, source.callCount())
	})

	t.Run("outside a shorter buffer", func(t *testing.T) {
		source := &stubTokenSource{tokens: []string{"t1", "t2"}, ttl: 4 * time.Minute}
		cache := NewTokenCache(source, WithRefreshBuffer(time.Minute))

		_, err := cache.Token(context.Background())
		require.NoError(t, err)
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t1", tok)
		assert.Equal(t, 1, source.callCount())
	})
}

func TestTokenCache_Invalidate(t *testing.T) {
	source := &stubTokenSource{tokens: []string{"t1", "t2"}, ttl: time.Hour}
	cache := NewTokenCache(source)

	_, err := cache.Token(context.Background())
	require.NoError(t, err)
	cache.Invalidate()
	assert.True(t, cache.ExpiresAt().IsZero())

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
}

func TestTokenCache_FetchError(t *testing.T) {
	source := &stubTokenSource{err: errors.New("identity server down")}
	cache := NewTokenCache(source)

	_, err := cache.Token(context.Background())
	assert.Error(t, err)
	_, err = cache.Token(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestTokenCache_CancelledContext(t *testing.T) {
	source := &stubTokenSource{tokens: []string{"t1"}, ttl: time.Hour}
	cache := NewTokenCache(source)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, source.callCount())
}

func TestClientCredentialsSource_Token(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/connect/token", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			assert.Equal(t, "id", r.PostForm.Get("client_id"))
			assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "orders", r.PostForm.Get("scope"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600,"token_type":"Bearer"}`))
		}))
		defer server.Close()

		cfg := &Config{ClientID: "id", ClientSecret: "secret", Scope: "orders", TokenBaseURL: server.URL}
		require.NoError(t, cfg.Validate())
		tok, err := NewClientCredentialsSource(cfg, server.Client()).Token()
		require.NoError(t, err)
		assert.Equal(t, "abc", tok.AccessToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
	})

	t.Run("missing expires_in gets the default lifetime", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"abc"}`))
		}))
		defer server.Close()

		cfg := &Config{ClientID: "id", ClientSecret: "secret", TokenBaseURL: server.URL}
		require.NoError(t, cfg.Validate())
		tok, err := NewClientCredentialsSource(cfg, server.Client()).Token()
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(defaultTokenLifetime), tok.Expiry, time.Minute)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		}))
		defer server.Close()

		cfg := &Config{ClientID: "id", ClientSecret: "wrong", TokenBaseURL: server.URL}
		require.NoError(t, cfg.Validate())
		_, err := NewClientCredentialsSource(cfg, server.Client()).Token()
		assert.ErrorIs(t, err, integration.ErrWMSAuthFailed)
		assert.Contains(t, err.Error(), "invalid_client")
	})

	t.Run("unreachable identity server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		cfg := &Config{ClientID: "id", ClientSecret: "secret", TokenBaseURL: url}
		require.NoError(t, cfg.Validate())
		_, err := NewClientCredentialsSource(cfg, http.DefaultClient).Token()
		assert.ErrorIs(t, err, integration.ErrWMSUnavailable)
	})
}
