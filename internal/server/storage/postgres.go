package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
	"github.com/dmitrijs2005/oauthkeeper/internal/cryptox"
	"github.com/dmitrijs2005/oauthkeeper/internal/dbx"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/models"
)

// PostgresStorage is the durable backend. Refresh tokens are encrypted with
// the vault before they reach a row and decrypted on the way out.
//
// Per-user atomicity: the read-merge-write upsert runs inside a transaction
// holding a row lock (SELECT ... FOR UPDATE); all other mutations are single
// statements.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage opens a pgx-backed connection pool for the given DSN.
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return &PostgresStorage{db: db}, nil
}

// DB exposes the underlying pool, mainly for migrations and tests.
func (s *PostgresStorage) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *PostgresStorage) Close() error { return s.db.Close() }

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStorage) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

const userColumns = `user_id, username, global_name, avatar_url,
	refresh_token, token_expires_at,
	subscription_tier, subscription_source, subscription_expires_at,
	created_at, updated_at`

func (s *PostgresStorage) GetUser(ctx context.Context, userID int64, encryptionKey []byte) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)

	user, encrypted, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}

	if encrypted != nil {
		plaintext, err := cryptox.Decrypt(*encrypted, encryptionKey)
		if err != nil {
			return nil, err
		}
		user.RefreshToken = &plaintext
	}
	return user, nil
}

func (s *PostgresStorage) UpsertUser(ctx context.Context, params models.UserUpsertParams, encryptionKey []byte) error {
	// The row carries ciphertext, so the merge works on a copy whose
	// refresh token field holds encrypted material throughout.
	encryptedParams := params
	if params.RefreshToken != nil {
		encrypted, err := cryptox.Encrypt(*params.RefreshToken, encryptionKey)
		if err != nil {
			return err
		}
		encryptedParams.RefreshToken = &encrypted
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR UPDATE`,
			params.UserID)

		now := time.Now()
		existing, encrypted, err := scanUser(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			user := newUser(encryptedParams, now)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (user_id, username, global_name, avatar_url,
					refresh_token, token_expires_at, subscription_tier, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
				user.UserID, user.Username, user.GlobalName, user.AvatarURL,
				user.RefreshToken, user.TokenExpiresAt, user.SubscriptionTier, now)
			return err
		case err != nil:
			return err
		}

		existing.RefreshToken = encrypted
		merged := mergeUser(*existing, encryptedParams, now)
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET username = $2, global_name = $3, avatar_url = $4,
				refresh_token = $5, token_expires_at = $6, updated_at = $7
			 WHERE user_id = $1`,
			merged.UserID, merged.Username, merged.GlobalName, merged.AvatarURL,
			merged.RefreshToken, merged.TokenExpiresAt, merged.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func (s *PostgresStorage) UpdateRefreshToken(ctx context.Context, userID int64, refreshToken string, tokenExpiresAt time.Time, encryptionKey []byte) error {
	encrypted, err := cryptox.Encrypt(refreshToken, encryptionKey)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $2, token_expires_at = $3, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, encrypted, tokenExpiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func (s *PostgresStorage) ClearUserTokens(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = NULL, token_expires_at = NULL, updated_at = NOW()
		 WHERE user_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func (s *PostgresStorage) UpdateSubscription(ctx context.Context, userID int64, tier models.SubscriptionTier, source models.SubscriptionSource, expiresAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_tier = $2, subscription_source = $3,
			subscription_expires_at = $4, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, tier, source, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func (s *PostgresStorage) UpsertEntitlement(ctx context.Context, params models.EntitlementUpsertParams) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entitlements (entitlement_id, user_id, sku_id, entitlement_type,
			is_test, consumed, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (entitlement_id) DO UPDATE SET
			consumed = EXCLUDED.consumed,
			ends_at = EXCLUDED.ends_at,
			updated_at = NOW()`,
		params.EntitlementID, params.UserID, params.SkuID, params.EntitlementType,
		params.IsTest, params.Consumed, params.StartsAt, params.EndsAt)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

// scanUser reads a user row. The refresh token column is returned separately
// as ciphertext so callers decide whether to decrypt it.
func scanUser(row *sql.Row) (*models.User, *string, error) {
	var (
		user         models.User
		globalName   sql.NullString
		avatarURL    sql.NullString
		refreshToken sql.NullString
		tokenExpires sql.NullTime
		source       sql.NullString
		subExpires   sql.NullTime
	)

	err := row.Scan(&user.UserID, &user.Username, &globalName, &avatarURL,
		&refreshToken, &tokenExpires,
		&user.SubscriptionTier, &source, &subExpires,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}

	if globalName.Valid {
		user.GlobalName = &globalName.String
	}
	if avatarURL.Valid {
		user.AvatarURL = &avatarURL.String
	}
	if tokenExpires.Valid {
		user.TokenExpiresAt = &tokenExpires.Time
	}
	if source.Valid {
		s := models.SubscriptionSource(source.String)
		user.SubscriptionSource = &s
	}
	if subExpires.Valid {
		user.SubscriptionExpiresAt = &subExpires.Time
	}

	var encrypted *string
	if refreshToken.Valid {
		encrypted = &refreshToken.String
	}
	return &user, encrypted, nil
}
