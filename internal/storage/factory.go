package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/config"
)

// Open returns the store selected by cfg.Driver. When ensureSchema is set the
// postgres schema is created; SQLite always initializes its own schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, dimensions int, ensureSchema bool, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []Option{
		WithLogger(logger),
		WithStatementTimeout(cfg.StatementTimeout),
		WithDimensions(dimensions),
		WithMaxConns(cfg.MaxConns),
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := NewPostgresStore(ctx, cfg.ConnString(), cfg.ConnectTimeout, opts...)
		if err != nil {
			return nil, err
		}
		if ensureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil
	case config.DriverSQLite:
		return nonNil(NewSQLiteStorage(cfg.SQLitePath, opts...))
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

func nonNil(s *SQLiteStorage, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
