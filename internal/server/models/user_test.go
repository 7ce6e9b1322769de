package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestUser() User {
	globalName := "Test User"
	avatarURL := "https://cdn.discordapp.com/avatars/123/abc.png"
	return User{
		UserID:           123456789,
		Username:         "testuser",
		GlobalName:       &globalName,
		AvatarURL:        &avatarURL,
		SubscriptionTier: TierFree,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func TestIsPremium(t *testing.T) {
	future := time.Now().Add(30 * 24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name      string
		tier      SubscriptionTier
		expiresAt *time.Time
		want      bool
	}{
		{"free tier never active", TierFree, nil, false},
		{"free tier with future expiry still inactive", TierFree, &future, false},
		{"premium without expiry is lifetime", TierPremium, nil, true},
		{"premium with future expiry is active", TierPremium, &future, true},
		{"premium with past expiry is inactive", TierPremium, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := makeTestUser()
			user.SubscriptionTier = tt.tier
			user.SubscriptionExpiresAt = tt.expiresAt
			assert.Equal(t, tt.want, user.IsPremium())
		})
	}
}

func TestDisplayName(t *testing.T) {
	user := makeTestUser()
	assert.Equal(t, "Test User", user.DisplayName())

	user.GlobalName = nil
	assert.Equal(t, "testuser", user.DisplayName())

	empty := ""
	user.GlobalName = &empty
	assert.Equal(t, "testuser", user.DisplayName())
}

func TestUserSerialization_ExcludesRefreshToken(t *testing.T) {
	user := makeTestUser()
	secret := "secret_refresh_token"
	user.RefreshToken = &secret

	data, err := json.Marshal(user)
	require.NoError(t, err)

	assert.False(t, strings.Contains(string(data), "secret_refresh_token"))
	assert.False(t, strings.Contains(string(data), "refresh_token"))
}
