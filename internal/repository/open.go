package repository

import (
	"context"
	"fmt"

	"github.com/dastanaron/bookaimark/internal/config"
)

// Open returns the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteRepository(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return NewPostgresRepository(ctx, cfg.PostgresDSN)
	case config.DriverJSON:
		return NewJSONRepository(cfg.DataDir)
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("storage driver: unsupported value %q", cfg.Driver)
	}
}
