package helpship

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/velaro/ordersync/internal/domain/integration"
)

// defaultTokenLifetime applies when the identity server omits expires_in
const defaultTokenLifetime = time.Hour

// TokenCache keeps one bearer token in memory and replaces it refreshBuffer
// before it expires. Safe for concurrent use.
type TokenCache struct {
	source        oauth2.TokenSource
	refreshBuffer time.Duration

	mu     sync.Mutex
	reuse  oauth2.TokenSource
	expiry time.Time
}

// TokenCacheOption configures a TokenCache
type TokenCacheOption func(*TokenCache)

// WithRefreshBuffer sets how long before expiry the token is refreshed
func WithRefreshBuffer(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		c.refreshBuffer = d
	}
}

// NewTokenCache creates a token cache over source. source must fetch a new
// token on every call.
func NewTokenCache(source oauth2.TokenSource, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		source:        source,
		refreshBuffer: DefaultTokenRefreshBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reuse = oauth2.ReuseTokenSourceWithExpiry(nil, c.source, c.refreshBuffer)
	return c
}

// Token returns the cached access token, fetching a new one when none is
// cached or the cached one is within the refresh buffer of its expiry.
// Fetches are bounded by the HTTP client timeout, not by ctx.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	reuse := c.reuse
	c.mu.Unlock()

	tok, err := reuse.Token()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.reuse == reuse {
		c.expiry = tok.Expiry
	}
	c.mu.Unlock()
	return tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a new one
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reuse = oauth2.ReuseTokenSourceWithExpiry(nil, c.source, c.refreshBuffer)
	c.expiry = time.Time{}
}

// ExpiresAt returns the expiry of the cached token, zero when empty
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// ClientCredentialsSource fetches a new token with the OAuth2 client
// credentials grant on every call
type ClientCredentialsSource struct {
	ctx    context.Context
	config *clientcredentials.Config
}

// NewClientCredentialsSource creates a token source for the configured
// client. Requests go through httpClient.
func NewClientCredentialsSource(config *Config, httpClient *http.Client) *ClientCredentialsSource {
	ctx := context.Background()
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	return &ClientCredentialsSource{
		ctx: ctx,
		config: &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     strings.TrimRight(config.TokenBaseURL, "/") + "/connect/token",
			Scopes:       strings.Fields(config.Scope),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
}

// Token posts the client credentials to /connect/token
func (s *ClientCredentialsSource) Token() (*oauth2.Token, error) {
	tok, err := s.config.Token(s.ctx)
	if err != nil {
		return nil, tokenError(err)
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = time.Now().Add(defaultTokenLifetime)
	}
	return tok, nil
}

func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return fmt.Errorf("%w: token endpoint returned %d: %s",
			integration.ErrWMSAuthFailed, status, truncate(string(retrieveErr.Body), maxErrorBody))
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", integration.ErrWMSUnavailable, err)
	}
	return fmt.Errorf("%w: %v", integration.ErrWMSInvalidResponse, err)
}
