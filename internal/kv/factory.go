package kv

import (
	"context"
	"fmt"

	"tandem/collab/internal/config"
)

// NewStoreFromConfig creates a Store for the configured backend.
func NewStoreFromConfig(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL, cfg.SessionID)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL, cfg.SessionID)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
