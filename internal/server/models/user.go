// Package models holds the domain types shared by storage backends and
// services: users keyed by their Discord snowflake and the entitlement
// records reconciled from the provider.
package models

import "time"

// User is an end user authenticated via Discord OAuth.
//
// RefreshToken is plaintext on this struct; storage backends encrypt it
// before persisting and decrypt it on read. It is never serialized.
type User struct {
	UserID                int64               `json:"user_id"`
	Username              string              `json:"username"`
	GlobalName            *string             `json:"global_name,omitempty"`
	AvatarURL             *string             `json:"avatar_url,omitempty"`
	RefreshToken          *string             `json:"-"`
	TokenExpiresAt        *time.Time          `json:"token_expires_at,omitempty"`
	SubscriptionTier      SubscriptionTier    `json:"subscription_tier"`
	SubscriptionSource    *SubscriptionSource `json:"subscription_source,omitempty"`
	SubscriptionExpiresAt *time.Time          `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// IsPremium reports whether the user has a currently active premium
// subscription. Tier alone is not enough: an expiry in the past disables
// access, an absent expiry means a non-expiring grant.
func (u *User) IsPremium() bool {
	if !u.SubscriptionTier.IsPremium() {
		return false
	}
	if u.SubscriptionExpiresAt == nil {
		return true
	}
	return u.SubscriptionExpiresAt.After(time.Now())
}

// DisplayName prefers the rich display name over the username.
func (u *User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}

// UserUpsertParams carries the fields written by an upsert. Nil optional
// fields are preserved from the existing record, never cleared; clearing
// tokens is a separate explicit storage operation.
type UserUpsertParams struct {
	UserID         int64
	Username       string
	GlobalName     *string
	AvatarURL      *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
}
