package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter keeps integer counters that expire as a whole. The TTL passed to
// Increment only applies when the counter is created, which gives fixed
// windows for rate limiting.
type Counter interface {
	// Increment adds delta and returns the new value.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Count returns 0 for missing counters.
	Count(ctx context.Context, key string) (int64, error)
	// TTL returns the time left before the counter resets, 0 if missing.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Reset(ctx context.Context, key string) error
}

type counterEntry struct {
	expiresAt time.Time
	n         int64
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	items map[string]*counterEntry
	opts  *options
	mu    sync.Mutex
}

// NewMemoryCounter creates a Counter kept in memory. Only WithClock and
// WithDefaultTTL apply.
func NewMemoryCounter(opts ...Option) *MemoryCounter {
	return &MemoryCounter{items: make(map[string]*counterEntry), opts: newOptions(opts)}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	e, ok := c.live(key, now)
	if !ok {
		e = &counterEntry{expiresAt: expiry(ttl, c.opts.defaultTTL, now)}
		c.items[key] = e
	}
	e.n += delta
	return e.n, nil
}

func (c *MemoryCounter) Count(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.live(key, c.opts.now()); ok {
		return e.n, nil
	}
	return 0, nil
}

func (c *MemoryCounter) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	e, ok := c.live(key, now)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *MemoryCounter) live(key string, now time.Time) (*counterEntry, bool) {
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e, true
}

// incrementScript sets the expiry only when the key has none yet.
var incrementScript = redis.NewScript(`
local n = redis.call('INCRBY', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return n
`)

// RedisCounter is a Counter stored in Redis.
type RedisCounter struct {
	client redis.UniversalClient
	opts   *options
}

// NewRedisCounter creates a Redis-backed Counter.
func NewRedisCounter(client redis.UniversalClient, opts ...Option) *RedisCounter {
	return &RedisCounter{client: client, opts: newOptions(opts)}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl == 0 {
		ttl = c.opts.defaultTTL
	}
	return incrementScript.Run(ctx, c.client, []string{c.opts.key(key)}, delta, max(ttl, 0).Milliseconds()).Int64()
}

func (c *RedisCounter) Count(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, c.opts.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *RedisCounter) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.PTTL(ctx, c.opts.key(key)).Result()
	if err != nil {
		return 0, err
	}
	// -1 (no expiry) and -2 (missing) both report zero.
	return max(d, 0), nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.opts.key(key)).Err()
}

var (
	_ Counter = (*MemoryCounter)(nil)
	_ Counter = (*RedisCounter)(nil)
)
