package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
)

func testConfig() Config {
	return Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example/callback",
		BotToken:     "bot-token",
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(testConfig(), logging.NewNopLogger(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestExchangeCode_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://app.example/callback", r.PostForm.Get("redirect_uri"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "acc",
			"token_type":    "Bearer",
			"expires_in":    604800,
			"refresh_token": "ref",
			"scope":         "identify",
		})
	}))

	before := time.Now()
	result, err := client.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "acc", result.AccessToken)
	assert.Equal(t, "ref", result.RefreshToken)
	wantExpiry := before.Add(604800 * time.Second)
	assert.WithinDuration(t, wantExpiry, result.ExpiresAt, 5*time.Second)
}

func TestExchangeCode_ProviderRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))

	_, err := client.ExchangeCode(context.Background(), "replayed-code")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode)
}

func TestExchangeCode_MalformedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	_, err := client.ExchangeCode(context.Background(), "code")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestRefreshToken_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-acc",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "new-ref",
			"scope":         "identify",
		})
	}))

	result, err := client.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-acc", result.AccessToken)
	assert.Equal(t, "new-ref", result.RefreshToken)
}

func TestRefreshToken_RejectionRequiresReauth(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	}))

	_, err := client.RefreshToken(context.Background(), "expired-refresh")
	require.ErrorIs(t, err, common.ErrAuthFailed)
}

func TestRevokeToken_SwallowsProviderFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	err := client.RevokeToken(context.Background(), "token")
	assert.NoError(t, err)
}

func TestRevokeToken_Success(t *testing.T) {
	var gotToken string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/token/revoke", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotToken = r.PostForm.Get("token")
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, client.RevokeToken(context.Background(), "the-token"))
	assert.Equal(t, "the-token", gotToken)
}

func TestFetchUserInfo(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/@me", r.URL.Path)
		require.Equal(t, "Bearer user-access-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"id":          "123456789",
			"username":    "testuser",
			"avatar":      "abc123",
			"global_name": "Test User",
		})
	}))

	user, err := client.FetchUserInfo(context.Background(), "user-access-token")
	require.NoError(t, err)
	assert.Equal(t, "123456789", user.ID)
	assert.Equal(t, "testuser", user.Username)
	require.NotNil(t, user.Avatar)
	assert.Equal(t, "abc123", *user.Avatar)
	require.NotNil(t, user.GlobalName)
	assert.Nil(t, user.Discriminator)
}

func TestFetchUserInfo_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "{}", http.StatusUnauthorized)
	}))

	_, err := client.FetchUserInfo(context.Background(), "bad-token")
	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
}

func TestFetchEntitlements_Success(t *testing.T) {
	ends := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/applications/client-id/entitlements", r.URL.Path)
		require.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		assert.Equal(t, "123", r.URL.Query().Get("user_id"))
		assert.Equal(t, "false", r.URL.Query().Get("exclude_ended"))

		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "1", "sku_id": "777", "type": 8, "ends_at": ends.Format(time.RFC3339)},
			{"id": "2", "sku_id": "999", "type": 8, "deleted": true},
		})
	}))

	entitlements, err := client.FetchEntitlements(context.Background(), 123)
	require.NoError(t, err)
	require.Len(t, entitlements, 2)
	assert.Equal(t, "777", entitlements[0].SkuID)
	require.NotNil(t, entitlements[0].EndsAt)
	assert.True(t, entitlements[0].EndsAt.Equal(ends))
	assert.True(t, entitlements[1].Deleted)
}

func TestFetchEntitlements_ProviderFailureYieldsEmptyList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))

	entitlements, err := client.FetchEntitlements(context.Background(), 123)
	require.NoError(t, err)
	assert.Empty(t, entitlements)
}
