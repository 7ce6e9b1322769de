package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
)

var testKey = []byte("unused-by-memory-backend")

func strPtr(s string) *string       { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestMemoryStorage_UserLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	// Initially absent, not an error.
	user, err := store.GetUser(ctx, 123, testKey)
	require.NoError(t, err)
	assert.Nil(t, user)

	expires := time.Now().Add(time.Hour)
	err = store.UpsertUser(ctx, models.UserUpsertParams{
		UserID:         123,
		Username:       "testuser",
		GlobalName:     strPtr("Test User"),
		RefreshToken:   strPtr("token123"),
		TokenExpiresAt: &expires,
	}, testKey)
	require.NoError(t, err)

	user, err = store.GetUser(ctx, 123, testKey)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "testuser", user.Username)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "token123", *user.RefreshToken)
	assert.Equal(t, models.TierFree, user.SubscriptionTier)

	// Upsert with absent token fields must preserve the stored ones.
	err = store.UpsertUser(ctx, models.UserUpsertParams{
		UserID:   123,
		Username: "newname",
	}, testKey)
	require.NoError(t, err)

	user, err = store.GetUser(ctx, 123, testKey)
	require.NoError(t, err)
	assert.Equal(t, "newname", user.Username)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "token123", *user.RefreshToken)
	require.NotNil(t, user.TokenExpiresAt)
	require.NotNil(t, user.GlobalName)
	assert.Equal(t, "Test User", *user.GlobalName)

	// Upsert with present token fields overwrites both.
	newExpires := time.Now().Add(2 * time.Hour)
	err = store.UpsertUser(ctx, models.UserUpsertParams{
		UserID:         123,
		Username:       "newname",
		RefreshToken:   strPtr("token456"),
		TokenExpiresAt: &newExpires,
	}, testKey)
	require.NoError(t, err)

	user, _ = store.GetUser(ctx, 123, testKey)
	assert.Equal(t, "token456", *user.RefreshToken)
	assert.True(t, user.TokenExpiresAt.Equal(newExpires))

	// Clearing tokens is explicit and idempotent.
	require.NoError(t, store.ClearUserTokens(ctx, 123))
	require.NoError(t, store.ClearUserTokens(ctx, 123))

	user, _ = store.GetUser(ctx, 123, testKey)
	assert.Nil(t, user.RefreshToken)
	assert.Nil(t, user.TokenExpiresAt)
}

func TestMemoryStorage_UpdateRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	// Missing user is a no-op, not an error.
	require.NoError(t, store.UpdateRefreshToken(ctx, 404, "tok", time.Now(), testKey))
	assert.Equal(t, 0, store.UserCount())

	require.NoError(t, store.UpsertUser(ctx, models.UserUpsertParams{UserID: 1, Username: "u"}, testKey))

	expires := time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateRefreshToken(ctx, 1, "rotated", expires, testKey))

	user, _ := store.GetUser(ctx, 1, testKey)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, "rotated", *user.RefreshToken)
}

func TestMemoryStorage_Subscription(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UpsertUser(ctx, models.UserUpsertParams{UserID: 456, Username: "subuser"}, testKey))

	user, _ := store.GetUser(ctx, 456, testKey)
	assert.Equal(t, models.TierFree, user.SubscriptionTier)
	assert.False(t, user.IsPremium())

	expires := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, store.UpdateSubscription(ctx, 456, models.TierPremium, models.SourceDiscord, &expires))

	user, _ = store.GetUser(ctx, 456, testKey)
	assert.Equal(t, models.TierPremium, user.SubscriptionTier)
	require.NotNil(t, user.SubscriptionSource)
	assert.Equal(t, models.SourceDiscord, *user.SubscriptionSource)
	assert.True(t, user.IsPremium())
}

func TestMemoryStorage_Entitlements(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	assert.Equal(t, 0, store.EntitlementCount())

	starts := time.Now().Add(-time.Hour)
	ends := time.Now().Add(time.Hour)
	require.NoError(t, store.UpsertEntitlement(ctx, models.EntitlementUpsertParams{
		EntitlementID:   1,
		UserID:          123,
		SkuID:           456,
		EntitlementType: 8,
		StartsAt:        &starts,
		EndsAt:          &ends,
	}))
	assert.Equal(t, 1, store.EntitlementCount())

	// The update path refreshes only consumed and ends_at.
	laterEnds := ends.Add(24 * time.Hour)
	require.NoError(t, store.UpsertEntitlement(ctx, models.EntitlementUpsertParams{
		EntitlementID:   1,
		UserID:          999, // must not change
		SkuID:           999, // must not change
		EntitlementType: 1,   // must not change
		Consumed:        true,
		EndsAt:          &laterEnds,
	}))
	assert.Equal(t, 1, store.EntitlementCount())

	store.mu.RLock()
	ent := store.entitlements[1]
	store.mu.RUnlock()
	assert.Equal(t, int64(123), ent.UserID)
	assert.Equal(t, int64(456), ent.SkuID)
	assert.Equal(t, int32(8), ent.EntitlementType)
	assert.True(t, ent.Consumed)
	assert.True(t, ent.EndsAt.Equal(laterEnds))
}

func TestMemoryStorage_Clear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UpsertUser(ctx, models.UserUpsertParams{UserID: 1, Username: "user1"}, testKey))
	assert.Equal(t, 1, store.UserCount())

	store.Clear()
	assert.Equal(t, 0, store.UserCount())
}
