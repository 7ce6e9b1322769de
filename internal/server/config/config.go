// Package config loads the immutable process configuration. Values come
// from the environment (with an optional .env file for development),
// constructed once at startup and passed into component constructors.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds runtime settings for the OAuthKeeper server.
type Config struct {
	// Host and Port form the HTTP bind address.
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"3000"`

	// DatabaseDSN selects the Postgres backend; when empty the in-memory
	// backend is used (development only).
	DatabaseDSN string `env:"DATABASE_DSN"`

	// JWTSecret signs session tokens (HS256).
	JWTSecret string `env:"JWT_SECRET,required"`

	// EncryptionKey protects stored refresh tokens. Base64 of 32 bytes, or
	// any passphrase (expanded via HKDF).
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// TokenValidity is the session token lifetime. It is also the window
	// during which a provider-revoked user stays locally authenticated.
	TokenValidity time.Duration `env:"TOKEN_VALIDITY" envDefault:"1h"`

	Discord DiscordConfig
}

// DiscordConfig carries the Discord application credentials.
type DiscordConfig struct {
	ClientID     string `env:"DISCORD_CLIENT_ID,required"`
	ClientSecret string `env:"DISCORD_CLIENT_SECRET,required"`
	RedirectURI  string `env:"DISCORD_REDIRECT_URI,required"`

	// BotToken authenticates the entitlements listing (application-level
	// privilege, not the user's token).
	BotToken string `env:"DISCORD_BOT_TOKEN,required"`

	// PremiumSkuID designates the premium-granting SKU. Unset disables
	// entitlement reconciliation.
	PremiumSkuID *int64 `env:"DISCORD_PREMIUM_SKU_ID"`
}

// Addr returns the HTTP bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
