package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/oauthkeeper/internal/logging"
	"github.com/dmitrijs2005/oauthkeeper/internal/server"
	"github.com/dmitrijs2005/oauthkeeper/internal/server/config"
)

func main() {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize app", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "server error", "error", err)
		os.Exit(1)
	}
}
