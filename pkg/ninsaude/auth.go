package ninsaude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/saraivavision/clinic-gateway/pkg/tokencache"
	"go.uber.org/zap"
)

const (
	accessTokenType  = "access_token"
	refreshTokenType = "refresh_token"
)

// ErrRefreshFailed wraps failures of the refresh-and-retry cycle. The
// original request is not retried further once this is returned.
var ErrRefreshFailed = errors.New("ninsaude: token refresh failed")

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// accessToken returns a bearer token, refreshing through the provider when
// the cache has none. The token is always read from the cache, never held in
// the client, so a token refreshed by a concurrent request is picked up
// without client-side staleness.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	token, err := c.cache.GetToken(ctx, accessTokenType)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, tokencache.ErrNotFound) {
		return "", err
	}
	return c.refreshAccessToken(ctx)
}

// refreshAccessToken obtains and caches a fresh access token. Concurrent
// callers share one in-flight refresh: when N requests hit a 401
// simultaneously only one round-trip goes to the OAuth provider.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	token, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return token.(string), nil
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken, err := c.cache.GetToken(ctx, refreshTokenType)
	if err != nil && !errors.Is(err, tokencache.ErrNotFound) {
		return "", err
	}

	var resp *tokenResponse
	if refreshToken != "" {
		resp, err = c.requestTokenGrant(ctx, map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
			"account":       c.conf.Account,
			"account_unit":  c.conf.AccountUnit,
		})
		if err != nil {
			c.log.Warn("refresh grant failed, falling back to password grant", zap.Error(err))
			resp = nil
		} else if resp.RefreshToken == "" {
			// Provider may rotate only the access token.
			resp.RefreshToken = refreshToken
		}
	}

	if resp == nil {
		resp, err = c.requestTokenGrant(ctx, map[string]string{
			"grant_type":   "password",
			"account":      c.conf.Account,
			"username":     c.conf.Username,
			"password":     c.conf.Password,
			"account_unit": c.conf.AccountUnit,
		})
		if err != nil {
			return "", err
		}
	}

	if err := c.storeTokens(ctx, resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *Client) requestTokenGrant(ctx context.Context, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.tokenURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d", httpResp.StatusCode)
	}

	var resp tokenResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, errors.New("no access token in response")
	}
	return &resp, nil
}

func (c *Client) storeTokens(ctx context.Context, resp *tokenResponse) error {
	accessTTL := c.conf.AccessTokenTTL
	if resp.ExpiresIn > 0 {
		// One minute safety margin under the provider-reported expiry.
		ttl := time.Duration(resp.ExpiresIn)*time.Second - time.Minute
		if ttl > 0 {
			accessTTL = ttl
		}
	}

	if err := c.cache.StoreToken(ctx, accessTokenType, resp.AccessToken, accessTTL); err != nil {
		return err
	}
	if resp.RefreshToken != "" {
		if err := c.cache.StoreToken(ctx, refreshTokenType, resp.RefreshToken, c.conf.RefreshTokenTTL); err != nil {
			return err
		}
	}
	return nil
}
