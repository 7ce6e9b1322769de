// Package common defines shared constants and sentinel errors used across
// OAuthKeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("user not found")
	ErrorStorage  = errors.New("storage error")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrorInvalidRequest = errors.New("invalid request")

	// Auth errors. ErrAuthFailed covers bad credentials and provider
	// rejection of a refresh token; the token-specific variants let the
	// transport layer distinguish expiry from tampering in logs.
	ErrAuthFailed   = errors.New("authentication failed")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Vault errors. Decryption failures never carry cryptographic detail.
	ErrorEncryption = errors.New("encryption error")
)
