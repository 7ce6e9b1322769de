// Package httpapi exposes the authentication operations over HTTP/JSON
// using chi. Routing stays thin: handlers translate between the wire and
// the services layer and map the error taxonomy onto status codes.
package httpapi

import (
	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/services"
)

// NewRouter mounts the auth routes:
//
//	GET  /auth/login-url  - provider authorization URL with fresh state
//	POST /auth/exchange   - exchange authorization code for tokens
//	POST /auth/refresh    - rotate provider tokens, new session token
//	POST /auth/revoke     - revoke at provider and clear local tokens
//	POST /auth/logout     - clear local tokens
//	GET  /auth/me         - current user info
func NewRouter(authService *services.AuthService, jwtSecret []byte, logger logging.Logger) chi.Router {
	h := &Handler{authService: authService, jwtSecret: jwtSecret, logger: logger}

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login-url", h.loginURL)
		r.Post("/exchange", h.exchangeCode)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/refresh", h.refreshToken)
			r.Post("/revoke", h.revokeToken)
			r.Post("/logout", h.logout)
			r.Get("/me", h.currentUser)
		})
	})
	return r
}
