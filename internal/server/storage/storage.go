// Package storage defines the persistence contract consumed by the auth and
// reconciliation services, with two interchangeable implementations:
// PostgresStorage (durable, pgx) and MemoryStorage (process memory, for
// tests and development). The backend is chosen once at composition time.
package storage

import (
	"context"
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
)

// UserStorage persists user records. Refresh tokens cross this boundary as
// plaintext on the way in and out; implementations encrypt before writing
// and decrypt on read using the supplied key.
//
// All mutating operations are atomic per user id: two concurrent writes for
// the same user must not interleave partial field updates.
type UserStorage interface {
	// GetUser returns the user or (nil, nil) when no record exists.
	GetUser(ctx context.Context, userID int64, encryptionKey []byte) (*models.User, error)

	// UpsertUser creates or merges a user record. Optional params fields
	// that are nil are preserved from the existing record, never cleared.
	// New users start on the free tier.
	UpsertUser(ctx context.Context, params models.UserUpsertParams, encryptionKey []byte) error

	// UpdateRefreshToken overwrites the stored token and expiry for an
	// existing user. Missing users are a no-op, not an error.
	UpdateRefreshToken(ctx context.Context, userID int64, refreshToken string, tokenExpiresAt time.Time, encryptionKey []byte) error

	// ClearUserTokens removes the refresh token and its expiry. Idempotent.
	ClearUserTokens(ctx context.Context, userID int64) error

	// UpdateSubscription overwrites tier, source and expiry as one unit.
	UpdateSubscription(ctx context.Context, userID int64, tier models.SubscriptionTier, source models.SubscriptionSource, expiresAt *time.Time) error
}

// EntitlementStorage persists provider entitlement records.
type EntitlementStorage interface {
	// UpsertEntitlement creates or updates by entitlement id. The update
	// path refreshes only the consumed flag and end instant.
	UpsertEntitlement(ctx context.Context, params models.EntitlementUpsertParams) error
}

// Storage combines the user and entitlement contracts.
type Storage interface {
	UserStorage
	EntitlementStorage
}
