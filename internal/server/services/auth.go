// Package services contains server-side business logic: the authentication
// flow orchestration (code exchange, refresh, revoke, logout) and the
// entitlement reconciliation engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/auth"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/discord"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/storage"
)

// Provider is the slice of the Discord client the auth flow consumes.
type Provider interface {
	ExchangeCode(ctx context.Context, code string) (*discord.TokenResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*discord.TokenResult, error)
	RevokeToken(ctx context.Context, token string) error
	FetchUserInfo(ctx context.Context, accessToken string) (*discord.ProviderUser, error)
}

// Session is what a successful exchange or refresh hands back to the
// caller: the service's own bearer token plus the raw provider access token
// for client-side SDK use.
type Session struct {
	SessionToken       string
	DiscordAccessToken string
}

// AuthService orchestrates the authentication flow across the provider
// client, the storage contract, the vault, and the session token issuer.
// It is request-scoped and stateless between invocations.
type AuthService struct {
	store         storage.Storage
	provider      Provider
	reconciler    *Reconciler
	encryptionKey []byte
	jwtSecret     []byte
	tokenValidity time.Duration
	clientID      string
	redirectURI   string
	logger        logging.Logger
}

// NewAuthService wires the auth flow dependencies together.
func NewAuthService(store storage.Storage, provider Provider, reconciler *Reconciler,
	encryptionKey, jwtSecret []byte, tokenValidity time.Duration,
	clientID, redirectURI string, logger logging.Logger) *AuthService {
	return &AuthService{
		store:         store,
		provider:      provider,
		reconciler:    reconciler,
		encryptionKey: encryptionKey,
		jwtSecret:     jwtSecret,
		tokenValidity: tokenValidity,
		clientID:      clientID,
		redirectURI:   redirectURI,
		logger:        logger,
	}
}

// ExchangeCode trades a single-use authorization code for a session: it
// exchanges the code at the provider, fetches the user profile, persists
// the user with the refresh token encrypted, runs a best-effort
// entitlement reconciliation, and mints the session token.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", common.ErrorInvalidRequest)
	}

	token, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Error(ctx, "code exchange failed", "error", err)
		return nil, err
	}

	providerUser, err := s.provider.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		s.logger.Error(ctx, "user info fetch failed", "error", err)
		return nil, err
	}

	// Snowflakes are decimal uint64 strings; they fit an int64 key.
	userID, err := strconv.ParseInt(providerUser.ID, 10, 64)
	if err != nil {
		s.logger.Error(ctx, "unparsable provider user id", "id", providerUser.ID)
		return nil, common.ErrorInternal
	}

	avatarURL := discord.BuildAvatarURL(providerUser)
	if err := s.store.UpsertUser(ctx, models.UserUpsertParams{
		UserID:         userID,
		Username:       providerUser.Username,
		GlobalName:     providerUser.GlobalName,
		AvatarURL:      &avatarURL,
		RefreshToken:   &token.RefreshToken,
		TokenExpiresAt: &token.ExpiresAt,
	}, s.encryptionKey); err != nil {
		s.logger.Error(ctx, "failed to upsert user", "user_id", userID, "error", err)
		return nil, err
	}

	if s.reconciler != nil && s.reconciler.Enabled() {
		tier := s.reconciler.Reconcile(ctx, userID)
		s.logger.Debug(ctx, "entitlements reconciled", "user_id", userID, "tier", tier)
	}

	s.logger.Info(ctx, "user authenticated", "user_id", userID, "username", providerUser.Username)
	return s.mintSession(userID, providerUser.Username, token.AccessToken)
}

// Refresh rotates the provider tokens for an already-validated session
// identity and mints a new session token. Provider rejection of the stored
// refresh token surfaces as common.ErrAuthFailed: the caller must restart
// at the exchange step.
func (s *AuthService) Refresh(ctx context.Context, userID int64, username string) (*Session, error) {
	user, err := s.store.GetUser(ctx, userID, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrorNotFound
	}
	if user.RefreshToken == nil {
		s.logger.Warn(ctx, "no refresh token stored", "user_id", userID)
		return nil, common.ErrAuthFailed
	}

	token, err := s.provider.RefreshToken(ctx, *user.RefreshToken)
	if err != nil {
		s.logger.Warn(ctx, "token refresh failed", "user_id", userID, "error", err)
		return nil, err
	}

	if err := s.store.UpdateRefreshToken(ctx, userID, token.RefreshToken, token.ExpiresAt, s.encryptionKey); err != nil {
		s.logger.Error(ctx, "failed to store rotated refresh token", "user_id", userID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "token refreshed", "user_id", userID)
	return s.mintSession(userID, username, token.AccessToken)
}

// Revoke clears the user's local tokens, asking the provider to revoke the
// refresh token first. The provider call is best effort; local clearing
// proceeds regardless of its outcome.
func (s *AuthService) Revoke(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID, s.encryptionKey)
	if err != nil {
		return err
	}

	if user != nil && user.RefreshToken != nil {
		if err := s.provider.RevokeToken(ctx, *user.RefreshToken); err != nil {
			s.logger.Warn(ctx, "provider revoke failed, clearing local tokens anyway",
				"user_id", userID, "error", err)
		}
	}

	if err := s.store.ClearUserTokens(ctx, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "tokens revoked", "user_id", userID)
	return nil
}

// Logout clears the user's local tokens without contacting the provider.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.store.ClearUserTokens(ctx, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// CurrentUser returns the stored user record for an authenticated identity.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID, s.encryptionKey)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.ErrorNotFound
	}
	return user, nil
}

// LoginURL builds the provider authorization URL with a fresh opaque state
// value for the standard web flow.
func (s *AuthService) LoginURL() (loginURL, state string) {
	state = uuid.NewString()
	q := url.Values{
		"client_id":     {s.clientID},
		"response_type": {"code"},
		"redirect_uri":  {s.redirectURI},
		"scope":         {"identify"},
		"state":         {state},
	}
	return "https://discord.com/oauth2/authorize?" + q.Encode(), state
}

func (s *AuthService) mintSession(userID int64, username, discordAccessToken string) (*Session, error) {
	sessionToken, err := auth.GenerateToken(userID, username, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, errors.Join(common.ErrorInternal, err)
	}
	return &Session{SessionToken: sessionToken, DiscordAccessToken: discordAccessToken}, nil
}
