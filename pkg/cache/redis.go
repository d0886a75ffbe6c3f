package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by Redis. Values are encoded with the configured
// Marshaler (JSON by default).
type Redis[V any] struct {
	client    redis.UniversalClient
	opts      *options
	marshaler Marshaler[V]
}

// NewRedis creates a Redis-backed cache. A nil Marshaler selects JSON.
//
//	client, err := redis.Open(ctx, redis.Config{URL: os.Getenv("REDIS_URL")})
//	users := cache.NewRedis[User](client, nil, cache.WithPrefix("users"))
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...Option) *Redis[V] {
	if m == nil {
		m = jsonMarshaler[V]{}
	}
	return &Redis[V]{client: client, opts: newOptions(opts), marshaler: m}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	data, err := r.client.Get(ctx, r.opts.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	return r.marshaler.Unmarshal(data)
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.opts.key(key), data, r.ttl(ttl)).Err()
}

func (r *Redis[V]) Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	data, err := r.marshaler.Marshal(value)
	if err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, r.opts.key(key), data, r.ttl(ttl)).Result()
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.opts.key(key)).Err()
}

func (r *Redis[V]) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.opts.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes the prefixed keys with SCAN, or flushes the database when
// no prefix is configured.
func (r *Redis[V]) Clear(ctx context.Context) error {
	if r.opts.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}
	return scanDelete(ctx, r.client, r.opts.prefix+":*")
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis[V]) Close() error { return nil }

// ttl maps the cache TTL semantics onto Redis, where 0 means no expiry.
func (r *Redis[V]) ttl(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}
	return max(ttl, 0)
}

func scanDelete(ctx context.Context, client redis.UniversalClient, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

var _ Cache[any] = (*Redis[any])(nil)
