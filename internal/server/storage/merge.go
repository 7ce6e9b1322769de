package storage

import (
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
)

// mergeUser applies upsert params onto an existing record. Present fields
// overwrite, nil optional fields keep their stored values. Subscription
// fields are untouched here; they change only through UpdateSubscription.
//
// Both backends share this function so the merge law cannot drift between
// them; they differ only in I/O.
func mergeUser(existing models.User, params models.UserUpsertParams, now time.Time) models.User {
	merged := existing
	merged.Username = params.Username
	if params.GlobalName != nil {
		merged.GlobalName = params.GlobalName
	}
	if params.AvatarURL != nil {
		merged.AvatarURL = params.AvatarURL
	}
	if params.RefreshToken != nil {
		merged.RefreshToken = params.RefreshToken
	}
	if params.TokenExpiresAt != nil {
		merged.TokenExpiresAt = params.TokenExpiresAt
	}
	merged.UpdatedAt = now
	return merged
}

// newUser builds the record for a first-time upsert. New users start on the
// free tier with no subscription source or expiry.
func newUser(params models.UserUpsertParams, now time.Time) models.User {
	return models.User{
		UserID:           params.UserID,
		Username:         params.Username,
		GlobalName:       params.GlobalName,
		AvatarURL:        params.AvatarURL,
		RefreshToken:     params.RefreshToken,
		TokenExpiresAt:   params.TokenExpiresAt,
		SubscriptionTier: models.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
