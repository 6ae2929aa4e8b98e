// Package storage provides the durable key-value slots that back a local
// profile. Every store scopes its keys to a single profile name.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/geotagger/client/internal/config"
)

var ErrNotFound = errors.New("not found")

// Store is a string key-value store scoped to one profile.
type Store interface {
	// Get returns ErrNotFound when the key has never been set or was removed.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Ping reports whether the underlying medium is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return NewMemory(cfg.Profile), nil
	case config.StorageSQLite:
		return OpenSQLite(ctx, cfg.DBPath, cfg.Profile)
	case config.StorageRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.Profile)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
