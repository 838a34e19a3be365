// Package cache provides key/value stores with expiry behind one interface.
//
//	store, err := cache.NewStore(cfg.Cache, cfg.App.Name)
//	v, err := cache.Remember(ctx, store, "users.count", time.Minute, countUsers)
package cache

import (
	"context"
	"time"

	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/errs"
)

// Store is a string key/value cache. A ttl of zero uses the store's default;
// a default of zero means entries never expire.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

// NewStore builds the store selected by cfg.Driver. Keys of the redis store
// are namespaced with prefix.
func NewStore(cfg config.CacheConfig, prefix string) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.TTL), nil
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   prefix,
			TTL:      cfg.TTL,
		}), nil
	default:
		return nil, errs.New(errs.Cache, "cache.NewStore", cfg.Driver, "unknown cache driver")
	}
}

// Remember returns the cached value for key, computing and storing it with
// fn on a miss.
func Remember(ctx context.Context, s Store, key string, ttl time.Duration, fn func(ctx context.Context) (string, error)) (string, error) {
	if v, ok, err := s.Get(ctx, key); err != nil || ok {
		return v, err
	}
	v, err := fn(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, key, v, ttl); err != nil {
		return "", err
	}
	return v, nil
}
