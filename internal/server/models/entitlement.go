package models

import "time"

// Entitlement is a provider-granted product grant. Records are created and
// refreshed only by the reconciliation pass and never deleted by it.
type Entitlement struct {
	EntitlementID   int64
	UserID          int64
	SkuID           int64
	EntitlementType int32
	IsTest          bool
	Consumed        bool
	StartsAt        *time.Time
	EndsAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EntitlementUpsertParams carries the fields written by an entitlement
// upsert. On the update path only Consumed and EndsAt are refreshed.
type EntitlementUpsertParams struct {
	EntitlementID   int64
	UserID          int64
	SkuID           int64
	EntitlementType int32
	IsTest          bool
	Consumed        bool
	StartsAt        *time.Time
	EndsAt          *time.Time
}
