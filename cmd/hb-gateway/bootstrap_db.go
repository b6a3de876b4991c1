package main

import (
	"context"

	config "github.com/NordCoder/hbgate/internal/config/gateway"
	"github.com/NordCoder/hbgate/internal/obs/retry"
	pg "github.com/NordCoder/hbgate/internal/repository/postgres"
	"go.uber.org/zap"
)

// initDB returns nil when no dsn is configured; host sessions are then not resolved.
func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	if cfg.DB.URL == "" {
		logger.Warn("db.dsn is empty, host session lookup disabled")
		return nil, nil
	}
	return retry.Value(ctx, func() (*pg.DB, error) {
		return pg.New(ctx, cfg.DB)
	}, retry.StartupPolicy("postgres", logger))
}
