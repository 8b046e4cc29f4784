// Package cache provides string-keyed result caches for prediction and
// judgment responses.
package cache

import (
	"context"

	"github.com/clindocs/cdi-eval/internal/config"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// Cache stores serialized results keyed by content hash.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// New builds a cache from configuration. Supported types are "memory",
// "redis", and "none".
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(cfg.Size), nil
	case "redis":
		return NewRedis(cfg.RedisURL)
	case "none":
		return Nop{}, nil
	default:
		return nil, apperrors.ValidationError("unknown cache type: " + cfg.Type)
	}
}

// Nop is a cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) Set(context.Context, string, string) error         { return nil }
