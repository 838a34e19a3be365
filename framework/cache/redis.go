package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/km-arc/go-spiral/framework/errs"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // prepended as "prefix:" to every key
	TTL      time.Duration // default ttl
}

// RedisStore keeps entries in redis. It implements io.Closer, so a
// container-owned store is closed with its scope.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects lazily; the first command dials.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.Prefix, opts.TTL)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix != "" {
		prefix += ":"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(errs.Cache, "cache.Get", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return errs.Wrap(errs.Cache, "cache.Set", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errs.Wrap(errs.Cache, "cache.Delete", key, err)
	}
	return nil
}

// Flush removes the keys under the store's prefix only; without a prefix the
// whole database is flushed.
func (r *RedisStore) Flush(ctx context.Context) error {
	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return errs.Wrap(errs.Cache, "cache.Flush", "", err)
		}
		return nil
	}

	iter := r.client.Scan(ctx, 0, globEscaper.Replace(r.prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errs.Wrap(errs.Cache, "cache.Flush", r.prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errs.Wrap(errs.Cache, "cache.Flush", r.prefix, err)
	}
	return nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errs.Wrap(errs.Cache, "cache.Ping", "", err)
	}
	return nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

// globEscaper quotes the SCAN MATCH metacharacters so a prefix matches
// literally.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
