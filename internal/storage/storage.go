// Package storage selects and opens the configured statistics backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/config"
	"github.com/cory-johannsen/dicebot/internal/stats"
	"github.com/cory-johannsen/dicebot/internal/storage/postgres"
	"github.com/cory-johannsen/dicebot/internal/storage/sqlite"
)

// Open connects to the backend named by cfg.Driver.
//
// Precondition: cfg must have passed config validation.
// Postcondition: Returns a ready store and a cleanup func that releases it,
// or a non-nil error with nothing left open.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (stats.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		logger.Info("connected to postgres",
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Name),
		)
		cleanup := func() {
			pool.Close()
			logger.Info("postgres pool closed")
		}
		return postgres.NewStatsRepository(pool.DB()), cleanup, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		logger.Info("opened sqlite database", zap.String("path", cfg.SQLitePath))
		cleanup := func() {
			if err := repo.Close(); err != nil {
				logger.Warn("closing sqlite database", zap.Error(err))
			}
		}
		return repo, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
