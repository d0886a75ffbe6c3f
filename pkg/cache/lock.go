package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/keel/pkg/id"
)

// Locker is an add-if-absent lock store. A lock is held by an owner token
// until it is released by that owner or its TTL elapses.
type Locker interface {
	// Acquire reports whether owner obtained the lock.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release returns ErrLockNotHeld when the lock belongs to another owner.
	Release(ctx context.Context, key, owner string) error
	// Owner returns "" when the lock is free.
	Owner(ctx context.Context, key string) (string, error)
	ForceRelease(ctx context.Context, key string) error
}

// Lock is a single lock handle with a random owner token.
type Lock struct {
	locker Locker
	key    string
	owner  string
	ttl    time.Duration
}

// NewLock returns a handle for key. A non-positive ttl holds the lock until
// it is released.
func NewLock(l Locker, key string, ttl time.Duration) *Lock {
	return &Lock{locker: l, key: key, owner: id.Token(16), ttl: ttl}
}

// RestoreLock rebuilds a handle for an owner token obtained earlier, for
// example from another process.
func RestoreLock(l Locker, key, owner string, ttl time.Duration) *Lock {
	return &Lock{locker: l, key: key, owner: owner, ttl: ttl}
}

func (l *Lock) Key() string { return l.key }
func (l *Lock) Owner() string { return l.owner }

// Get tries to acquire the lock once.
func (l *Lock) Get(ctx context.Context) (bool, error) {
	return l.locker.Acquire(ctx, l.key, l.owner, l.ttl)
}

// Block polls for the lock until it is acquired or wait elapses.
func (l *Lock) Block(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Get(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(250*time.Millisecond, time.Until(deadline))):
		}
	}
}

// Release frees the lock if this handle owns it.
func (l *Lock) Release(ctx context.Context) error {
	return l.locker.Release(ctx, l.key, l.owner)
}

// Run acquires the lock, calls fn and releases the lock. It reports false
// without calling fn when the lock is taken.
func (l *Lock) Run(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	ok, err := l.Get(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer func() { _ = l.Release(context.WithoutCancel(ctx)) }()
	return true, fn(ctx)
}

type lockEntry struct {
	expiresAt time.Time
	owner     string
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	locks map[string]lockEntry
	now   func() time.Time
	mu    sync.Mutex
}

// NewMemoryLocker creates a Locker kept in memory. Only WithClock applies.
func NewMemoryLocker(opts ...Option) *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]lockEntry), now: newOptions(opts).now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.locks[key]; ok && (e.expiresAt.IsZero() || now.Before(e.expiresAt)) {
		return false, nil
	}
	e := lockEntry{owner: owner}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.locks[key] = e
	return true, nil
}

func (m *MemoryLocker) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[key]
	if !ok || e.owner != owner || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return ErrLockNotHeld
	}
	delete(m.locks, key)
	return nil
}

func (m *MemoryLocker) Owner(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[key]
	if !ok || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return "", nil
	}
	return e.owner, nil
}

func (m *MemoryLocker) ForceRelease(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is a Locker stored in Redis, usable across servers.
type RedisLocker struct {
	client redis.UniversalClient
	opts   *options
}

// NewRedisLocker creates a Redis-backed Locker. WithPrefix namespaces keys.
func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	return &RedisLocker{client: client, opts: newOptions(opts)}
}

func (r *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.opts.key(key), owner, max(ttl, 0)).Result()
}

func (r *RedisLocker) Release(ctx context.Context, key, owner string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{r.opts.key(key)}, owner).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (r *RedisLocker) Owner(ctx context.Context, key string) (string, error) {
	owner, err := r.client.Get(ctx, r.opts.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

func (r *RedisLocker) ForceRelease(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.opts.key(key)).Err()
}

var (
	_ Locker = (*MemoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
