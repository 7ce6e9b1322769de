// Package server initializes and runs the application: it selects the
// storage backend, wires the provider client, reconciler, and auth service
// together, and serves the HTTP API with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/oauthkeeper/internal/cryptox"
	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/config"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/discord"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/services"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

// App is the composed server.
type App struct {
	config *config.Config
	logger logging.Logger
	server *http.Server
	closer func() error
}

// NewApp builds the full dependency graph from configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	encryptionKey, err := cryptox.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	var store storage.Storage
	closer := func() error { return nil }
	if cfg.DatabaseDSN != "" {
		pg, err := storage.NewPostgresStorage(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
		store = pg
		closer = pg.Close
	} else {
		logger.Warn(ctx, "DATABASE_DSN is empty, using in-memory storage")
		store = storage.NewMemoryStorage()
	}

	provider := discord.NewClient(discord.Config{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURI:  cfg.Discord.RedirectURI,
		BotToken:     cfg.Discord.BotToken,
	}, logger)

	reconciler := services.NewReconciler(store, provider, cfg.Discord.PremiumSkuID, logger)
	authService := services.NewAuthService(store, provider, reconciler,
		encryptionKey, []byte(cfg.JWTSecret), cfg.TokenValidity,
		cfg.Discord.ClientID, cfg.Discord.RedirectURI, logger)

	router := httpapi.NewRouter(authService, []byte(cfg.JWTSecret), logger)

	return &App{
		config: cfg,
		logger: logger,
		server: &http.Server{Addr: cfg.Addr(), Handler: router},
		closer: closer,
	}, nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.initSignalHandler(cancel)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return app.closer()
}

func (app *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}
