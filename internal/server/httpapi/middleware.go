package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/oauthkeeper/internal/server/auth"
)

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// Identity is the validated session identity injected into the request
// context by requireSession.
type Identity struct {
	UserID   int64
	Username string
}

// requireSession validates the bearer session token. Validation is
// stateless: it checks signature and expiry only, never storage or the
// provider.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, r, errMissingBearer)
			return
		}

		userID, username, err := auth.ParseToken(token, h.jwtSecret)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, Identity{UserID: userID, Username: username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the identity stored by requireSession.
func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
