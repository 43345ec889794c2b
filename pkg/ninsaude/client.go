package ninsaude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/saraivavision/clinic-gateway/pkg/ratelimit"
	"github.com/saraivavision/clinic-gateway/pkg/tokencache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrRateLimited is returned before the request is sent when the outbound
// fixed-window limit is exhausted.
var ErrRateLimited = errors.New("ninsaude: rate limit exceeded")

// Client talks to the Ninsaúde scheduling API. Token storage and the rate
// limiter are injected so tests can substitute fakes, and so each client is
// lifecycle-scoped instead of an ambient singleton.
type Client struct {
	conf       Config
	httpClient *http.Client
	cache      *tokencache.Cache
	limiter    *ratelimit.Limiter
	log        *zap.Logger

	refreshGroup singleflight.Group
}

func NewClient(conf Config, httpClient *http.Client, cache *tokencache.Cache, limiter *ratelimit.Limiter, log *zap.Logger) *Client {
	return &Client{
		conf:       conf,
		httpClient: httpClient,
		cache:      cache,
		limiter:    limiter,
		log:        log.With(zap.String("component", "ninsaude-client")),
	}
}

// Do performs an authenticated request against the API. The rate limiter is
// consulted before anything is sent. A 401 triggers exactly one token
// refresh followed by one retry of the original request; any other status or
// network error propagates unchanged.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// 401: the cached token is stale or revoked. Refresh once and replay.
	_ = resp.Body.Close() //nolint:errcheck

	newToken, err := c.refreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body, newToken)
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// RateLimited reports whether the next call would be rejected, without
// consuming quota. Used by status endpoints.
func (c *Client) RateLimited() bool {
	return c.limiter.Limited()
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	url := c.conf.BaseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}
