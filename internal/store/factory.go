// Package store selects a concrete store implementation from configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/brewpass/brewpass/internal/config"
	"github.com/brewpass/brewpass/internal/store/core"
	"github.com/brewpass/brewpass/internal/store/memory"
	"github.com/brewpass/brewpass/internal/store/pg"
)

// Open builds the store for the configured driver.
// "memory" keeps everything in process and is meant for dev/tests only.
func Open(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres", "pg":
		var lifetime time.Duration
		if s := cfg.Storage.Postgres.ConnMaxLifetime; s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				lifetime = d
			}
		}
		return pg.New(ctx, cfg.Storage.DSN, pg.Options{
			MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
			ConnMaxLifetime: lifetime,
		})
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Storage.Driver)
	}
}
