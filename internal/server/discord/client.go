// Package discord implements the provider OAuth client: authorization-code
// exchange, token refresh, token revocation, user info, and application
// entitlement listing against the Discord HTTP API.
//
// The wire contract is fixed (field names, basic auth on the token and
// revoke endpoints, bot bearer credential on entitlements), so requests are
// built directly on net/http rather than through an OAuth library that
// would own the token lifecycle.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
)

const (
	defaultAPIBaseURL = "https://discord.com/api/v10"

	defaultTimeout = 10 * time.Second
)

// Config carries the application credentials for the Discord API.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BotToken     string
}

// Client executes synchronous calls against the Discord API. Each call is
// one round trip with a timeout; a stalled call never blocks other users'
// requests because every inbound request runs on its own goroutine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        Config
	logger     logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API base, used by tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// NewClient builds a Discord API client.
func NewClient(cfg Config, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultAPIBaseURL,
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderError marks a failed or malformed response from the Discord API.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("discord API error: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("discord API error: %s: %s", e.Endpoint, e.Body)
}

// TokenResult is the transient outcome of a code exchange or refresh. It is
// never persisted as-is; the refresh token goes to storage encrypted and the
// access token is consumed immediately.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ProviderUser is the Discord /users/@me payload.
type ProviderUser struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Avatar        *string `json:"avatar"`
	GlobalName    *string `json:"global_name"`
	Discriminator *string `json:"discriminator"`
}

// ProviderEntitlement is one element of the Discord entitlements listing.
type ProviderEntitlement struct {
	ID       string     `json:"id"`
	SkuID    string     `json:"sku_id"`
	UserID   *string    `json:"user_id"`
	Type     int32      `json:"type"`
	Deleted  bool       `json:"deleted"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Consumed bool       `json:"consumed"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// ExchangeCode exchanges a single-use authorization code for a token pair.
// Replay of a consumed code is rejected by the provider and surfaces as a
// ProviderError.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResult, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	}
	return c.requestToken(ctx, form)
}

// RefreshToken trades a stored refresh token for a fresh token pair.
// Provider rejection means the refresh token is expired or invalid and the
// user must re-authenticate, so it surfaces as common.ErrAuthFailed.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	result, err := c.requestToken(ctx, form)
	if err != nil {
		var provErr *ProviderError
		if errors.As(err, &provErr) && provErr.StatusCode != 0 {
			c.logger.Warn(ctx, "provider rejected refresh token", "status", provErr.StatusCode)
			return nil, common.ErrAuthFailed
		}
		return nil, err
	}
	return result, nil
}

// RevokeToken asks the provider to revoke a token. Best effort: a
// non-success response is logged and swallowed, since local token clearing
// must proceed regardless of the provider's answer.
func (c *Client) RevokeToken(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn(ctx, "token revocation returned non-success",
			"status", resp.StatusCode, "body", string(body))
	}
	return nil
}

// FetchUserInfo loads the authenticated user's profile with their access
// token.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (*ProviderUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readProviderError("/users/@me", resp)
	}

	var user ProviderUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, &ProviderError{Endpoint: "/users/@me", Body: "malformed response body"}
	}
	return &user, nil
}

// FetchEntitlements lists the application's entitlements for one user,
// authenticated with the bot credential (an application-level privilege,
// not the user's token). Provider failure yields an empty list, never an
// error: entitlement reconciliation is best effort and must not block the
// authentication flow.
func (c *Client) FetchEntitlements(ctx context.Context, userID int64) ([]ProviderEntitlement, error) {
	endpoint := fmt.Sprintf("%s/applications/%s/entitlements?user_id=%s&exclude_ended=false",
		c.baseURL, c.cfg.ClientID, strconv.FormatInt(userID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.BotToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn(ctx, "entitlements fetch returned non-success",
			"status", resp.StatusCode, "body", string(body))
		return []ProviderEntitlement{}, nil
	}

	var entitlements []ProviderEntitlement
	if err := json.NewDecoder(resp.Body).Decode(&entitlements); err != nil {
		return nil, &ProviderError{Endpoint: "/entitlements", Body: "malformed response body"}
	}
	return entitlements, nil
}

// requestToken posts to the token endpoint with HTTP basic auth and parses
// the token response. It computes the absolute expiry from expires_in.
func (c *Client) requestToken(ctx context.Context, form url.Values) (*TokenResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readProviderError("/oauth2/token", resp)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &ProviderError{Endpoint: "/oauth2/token", Body: "malformed response body"}
	}
	if token.AccessToken == "" {
		return nil, &ProviderError{Endpoint: "/oauth2/token", Body: "response missing access_token"}
	}

	return &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

func readProviderError(endpoint string, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProviderError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
}
