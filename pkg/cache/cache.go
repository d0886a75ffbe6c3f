package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is a generic key-value store with expiration.
//
// TTL semantics for Set and Add:
//   - positive: the entry expires after ttl
//   - zero: the store's default TTL applies
//   - negative: the entry never expires
type Cache[V any] interface {
	// Get returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// Marshaler converts values for byte-oriented backends such as Redis.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// Pull returns the value for key and deletes it.
func Pull[V any](ctx context.Context, c Cache[V], key string) (V, error) {
	v, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	return v, c.Delete(ctx, key)
}

var remembering singleflight.Group

type remembered[V any] struct {
	val V
	ttl time.Duration
}

// Remember returns the cached value for key or computes it with fn.
// Concurrent misses for the same key share a single call to fn.
// Values are not cached when fn fails.
func Remember[V any](ctx context.Context, c Cache[V], key string, fn func(ctx context.Context) (V, time.Duration, error)) (V, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	res, err, _ := remembering.Do(key, func() (any, error) {
		val, ttl, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return remembered[V]{val: val, ttl: ttl}, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	r := res.(remembered[V])
	_ = c.Set(ctx, key, r.val, r.ttl)
	return r.val, nil
}

// expiry converts a TTL into an absolute deadline. Zero means never.
func expiry(ttl, def time.Duration, now time.Time) time.Time {
	if ttl == 0 {
		ttl = def
	}
	if ttl < 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
