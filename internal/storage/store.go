// Package storage provides the durable key-value slot that keeps client
// state (the auth token, the last selected city) across restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Keys of the persisted client state.
const (
	KeyToken    = "authToken"
	KeyLastCity = "lastCity"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Store is a durable key-value slot.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Type represents the storage backend.
type Type string

const (
	// TypeFile keeps state in a JSON file on the local disk.
	TypeFile Type = "file"
	// TypeRedis keeps state in Redis.
	TypeRedis Type = "redis"
	// TypePostgres keeps state in a PostgreSQL table.
	TypePostgres Type = "postgres"
)

// Config holds configuration for creating a store.
type Config struct {
	Type     Type           // Type of store to create
	Path     string         // File path (file store)
	RedisURL string         // Connection URL (redis store)
	Postgres PostgresConfig // Connection settings (postgres store)
	Logger   *slog.Logger   // Logger for the store
}

// New creates a store based on the provided configuration.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFile:
		return NewFileStore(cfg.Path, cfg.Logger)
	case TypeRedis:
		return NewRedisStore(cfg.RedisURL, cfg.Logger)
	case TypePostgres:
		pool, err := NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, cfg.Logger)
		if err = store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
