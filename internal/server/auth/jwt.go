// Package auth issues and validates the service's own bearer session
// tokens. Tokens are HS256-signed JWTs asserting the user's Discord id and
// username, with issued-at and expiry claims.
//
// Validation is stateless: it never consults storage or the provider. A
// user revoked at the provider therefore stays locally authenticated until
// the token's expiry passes. That window equals the configured token
// validity and is an accepted trust boundary.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
)

// Claims extends the registered JWT claims with the authenticated user's
// identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
}

// GenerateToken mints a signed session token valid for validityDuration.
func GenerateToken(userID int64, username string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:   userID,
		Username: username,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies signature and expiry and returns the embedded user id
// and username. Expired tokens yield common.ErrTokenExpired; any other
// defect (bad signature, malformed structure, wrong algorithm) yields
// common.ErrInvalidToken. Both match common.ErrAuthFailed semantics at the
// transport layer.
func ParseToken(tokenString string, secretKey []byte) (int64, string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", common.ErrTokenExpired
		}
		return 0, "", common.ErrInvalidToken
	}

	if !token.Valid {
		return 0, "", common.ErrInvalidToken
	}

	return claims.UserID, claims.Username, nil
}
