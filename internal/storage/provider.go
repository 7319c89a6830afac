// Package storage opens the configured harvest store.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/storage/postgres"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/storage/sqlite"
)

// Drivers accepted in Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures a store backend.
type Config struct {
	Driver          string
	SQLitePath      string
	PostgresDSN     string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Store is a harvest.Store that can also report liveness.
type Store interface {
	harvest.Store
	Ping(ctx context.Context) error
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open connects to the configured backend and ensures its schema exists.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", DriverSQLite:
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLitePath))
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		logger.Info("opening postgres store")
		s, err := postgres.NewStore(ctx, postgres.StoreConfig{
			DSN:             cfg.PostgresDSN,
			MaxConns:        cfg.MaxConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
