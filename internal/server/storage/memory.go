package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
)

// MemoryStorage is an in-process backend for tests and development.
//
// Refresh tokens are stored in plaintext here; the encryption key arguments
// are accepted for contract compatibility and ignored. Per-user atomicity
// is provided by a single mutex, which is sufficient at test scale.
type MemoryStorage struct {
	mu           sync.RWMutex
	users        map[int64]models.User
	entitlements map[int64]models.Entitlement
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:        make(map[int64]models.User),
		entitlements: make(map[int64]models.Entitlement),
	}
}

// Clear drops all stored data. Useful between test cases.
func (m *MemoryStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[int64]models.User)
	m.entitlements = make(map[int64]models.Entitlement)
}

// UserCount returns the number of stored users.
func (m *MemoryStorage) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// EntitlementCount returns the number of stored entitlements.
func (m *MemoryStorage) EntitlementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entitlements)
}

func (m *MemoryStorage) GetUser(_ context.Context, userID int64, _ []byte) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryStorage) UpsertUser(_ context.Context, params models.UserUpsertParams, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.users[params.UserID]; ok {
		m.users[params.UserID] = mergeUser(existing, params, now)
	} else {
		m.users[params.UserID] = newUser(params, now)
	}
	return nil
}

func (m *MemoryStorage) UpdateRefreshToken(_ context.Context, userID int64, refreshToken string, tokenExpiresAt time.Time, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.RefreshToken = &refreshToken
	user.TokenExpiresAt = &tokenExpiresAt
	user.UpdatedAt = time.Now()
	m.users[userID] = user
	return nil
}

func (m *MemoryStorage) ClearUserTokens(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.RefreshToken = nil
	user.TokenExpiresAt = nil
	user.UpdatedAt = time.Now()
	m.users[userID] = user
	return nil
}

func (m *MemoryStorage) UpdateSubscription(_ context.Context, userID int64, tier models.SubscriptionTier, source models.SubscriptionSource, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	user.SubscriptionTier = tier
	user.SubscriptionSource = &source
	user.SubscriptionExpiresAt = expiresAt
	user.UpdatedAt = time.Now()
	m.users[userID] = user
	return nil
}

func (m *MemoryStorage) UpsertEntitlement(_ context.Context, params models.EntitlementUpsertParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.entitlements[params.EntitlementID]; ok {
		existing.Consumed = params.Consumed
		existing.EndsAt = params.EndsAt
		existing.UpdatedAt = now
		m.entitlements[params.EntitlementID] = existing
		return nil
	}

	m.entitlements[params.EntitlementID] = models.Entitlement{
		EntitlementID:   params.EntitlementID,
		UserID:          params.UserID,
		SkuID:           params.SkuID,
		EntitlementType: params.EntitlementType,
		IsTest:          params.IsTest,
		Consumed:        params.Consumed,
		StartsAt:        params.StartsAt,
		EndsAt:          params.EndsAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}
