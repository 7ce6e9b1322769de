package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/discord"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/services"
)

var errMissingBearer = common.ErrInvalidToken

// Handler holds the dependencies shared by all auth endpoints.
type Handler struct {
	authService *services.AuthService
	jwtSecret   []byte
	logger      logging.Logger
}

type codeExchangeRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	// Session token for backend API authentication.
	AccessToken string `json:"access_token"`
	// Raw Discord OAuth access token for client-side SDK use.
	DiscordAccessToken string `json:"discord_access_token,omitempty"`
}

type loginURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// userResponse is the externally serialized user. The refresh token must
// never appear here in any form.
type userResponse struct {
	UserID           int64                   `json:"user_id"`
	Username         string                  `json:"username"`
	GlobalName       *string                 `json:"global_name,omitempty"`
	AvatarURL        *string                 `json:"avatar_url,omitempty"`
	DisplayName      string                  `json:"display_name"`
	SubscriptionTier models.SubscriptionTier `json:"subscription_tier"`
	IsPremium        bool                    `json:"is_premium"`
}

func (h *Handler) loginURL(w http.ResponseWriter, r *http.Request) {
	loginURL, state := h.authService.LoginURL()
	h.writeJSON(w, http.StatusOK, loginURLResponse{URL: loginURL, State: state})
}

func (h *Handler) exchangeCode(w http.ResponseWriter, r *http.Request) {
	var req codeExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, common.ErrorInvalidRequest)
		return
	}

	session, err := h.authService.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:        session.SessionToken,
		DiscordAccessToken: session.DiscordAccessToken,
	})
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrInvalidToken)
		return
	}

	session, err := h.authService.Refresh(r.Context(), id.UserID, id.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:        session.SessionToken,
		DiscordAccessToken: session.DiscordAccessToken,
	})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrInvalidToken)
		return
	}

	if err := h.authService.Revoke(r.Context(), id.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrInvalidToken)
		return
	}

	if err := h.authService.Logout(r.Context(), id.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		h.writeError(w, r, common.ErrInvalidToken)
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, userResponse{
		UserID:           user.UserID,
		Username:         user.Username,
		GlobalName:       user.GlobalName,
		AvatarURL:        user.AvatarURL,
		DisplayName:      user.DisplayName(),
		SubscriptionTier: user.SubscriptionTier,
		IsPremium:        user.IsPremium(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes. Internal
// detail (storage, encryption) is never echoed to the caller.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var provErr *discord.ProviderError

	var status int
	var message string
	switch {
	case errors.Is(err, common.ErrorInvalidRequest):
		status, message = http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrAuthFailed),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		status, message = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorNotFound):
		status, message = http.StatusNotFound, "user not found"
	case errors.As(err, &provErr):
		status, message = http.StatusBadGateway, "identity provider error"
	default:
		status, message = http.StatusInternalServerError, "internal error"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
