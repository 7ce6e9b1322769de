package models

// SubscriptionTier is the access level derived from provider entitlements.
type SubscriptionTier string

const (
	// TierFree is the default tier for every new user.
	TierFree SubscriptionTier = "free"
	// TierPremium grants paid features.
	TierPremium SubscriptionTier = "premium"
)

// IsPremium reports whether the tier itself grants premium access. Whether
// that access is currently active additionally depends on the subscription
// expiry, see User.IsPremium.
func (t SubscriptionTier) IsPremium() bool {
	return t == TierPremium
}

// SubscriptionSource records where a subscription grant came from.
type SubscriptionSource string

const (
	// SourceDiscord marks grants reconciled from Discord entitlements.
	SourceDiscord SubscriptionSource = "discord"
	// SourceManual marks grants made by an administrator.
	SourceManual SubscriptionSource = "manual"
	// SourceExternal marks grants from an external payment provider.
	SourceExternal SubscriptionSource = "external"
)
