package services

import (
	"context"
	"strconv"
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/discord"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/storage"
)

// EntitlementFetcher is the slice of the provider client the reconciler
// needs.
type EntitlementFetcher interface {
	FetchEntitlements(ctx context.Context, userID int64) ([]discord.ProviderEntitlement, error)
}

// Reconciler merges a user's provider entitlements into a single
// subscription tier and expiry.
//
// Promotion is eager, demotion is not: a pass that derives the free tier
// writes nothing, so a transient empty entitlement list cannot revoke an
// existing premium grant. Product has not confirmed whether indefinite
// persistence of a stale grant is desired; the behavior is kept as-is.
type Reconciler struct {
	store        storage.Storage
	provider     EntitlementFetcher
	premiumSkuID *int64
	logger       logging.Logger
}

// NewReconciler builds a Reconciler. premiumSkuID may be nil, which
// disables reconciliation entirely.
func NewReconciler(store storage.Storage, provider EntitlementFetcher, premiumSkuID *int64, logger logging.Logger) *Reconciler {
	return &Reconciler{store: store, provider: provider, premiumSkuID: premiumSkuID, logger: logger}
}

// Enabled reports whether a premium-granting SKU is configured. When it is
// not, the surrounding flow skips reconciliation.
func (r *Reconciler) Enabled() bool { return r.premiumSkuID != nil }

// Reconcile runs one reconciliation pass for the user and returns the
// derived tier for informational use. All internal failures are absorbed
// and logged; this method never aborts the surrounding authentication flow.
func (r *Reconciler) Reconcile(ctx context.Context, userID int64) models.SubscriptionTier {
	if !r.Enabled() {
		return models.TierFree
	}

	entitlements, err := r.provider.FetchEntitlements(ctx, userID)
	if err != nil {
		r.logger.Warn(ctx, "failed to fetch entitlements", "user_id", userID, "error", err)
		return models.TierFree
	}

	derived := models.TierFree
	var expiresAt *time.Time
	nonExpiring := false
	now := time.Now()

	for _, ent := range entitlements {
		// A provider-side soft delete skips the record for this pass; it
		// is neither persisted nor considered for tier derivation.
		if ent.Deleted {
			continue
		}

		entID, err := strconv.ParseInt(ent.ID, 10, 64)
		if err != nil {
			r.logger.Warn(ctx, "unparsable entitlement id", "id", ent.ID, "error", err)
			continue
		}
		skuID, err := strconv.ParseInt(ent.SkuID, 10, 64)
		if err != nil {
			r.logger.Warn(ctx, "unparsable entitlement sku id", "sku_id", ent.SkuID, "error", err)
			continue
		}

		if err := r.store.UpsertEntitlement(ctx, models.EntitlementUpsertParams{
			EntitlementID:   entID,
			UserID:          userID,
			SkuID:           skuID,
			EntitlementType: ent.Type,
			IsTest:          false,
			Consumed:        ent.Consumed,
			StartsAt:        ent.StartsAt,
			EndsAt:          ent.EndsAt,
		}); err != nil {
			r.logger.Warn(ctx, "failed to upsert entitlement", "entitlement_id", entID, "error", err)
			continue
		}

		if skuID != *r.premiumSkuID {
			continue
		}
		if ent.EndsAt != nil && !ent.EndsAt.After(now) {
			continue
		}

		derived = models.TierPremium
		if ent.EndsAt == nil {
			// Any non-expiring active premium entitlement pins the
			// effective expiry to non-expiring for the rest of the pass.
			nonExpiring = true
			expiresAt = nil
		} else if !nonExpiring && (expiresAt == nil || ent.EndsAt.After(*expiresAt)) {
			expiresAt = ent.EndsAt
		}
	}

	if derived == models.TierPremium {
		if err := r.store.UpdateSubscription(ctx, userID, derived, models.SourceDiscord, expiresAt); err != nil {
			r.logger.Warn(ctx, "failed to update subscription", "user_id", userID, "error", err)
			return derived
		}
		r.logger.Info(ctx, "subscription updated", "user_id", userID,
			"tier", derived, "expires_at", expiresAt)
	}

	return derived
}
