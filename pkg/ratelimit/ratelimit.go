package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/keel/pkg/cache"
)

var (
	ErrUnknownLimiter = errors.New("ratelimit: unknown limiter")
	ErrStore          = errors.New("ratelimit: store failure")
)

// Limiter counts attempts per key in fixed windows. A window opens on the
// first hit and lasts for the decay passed to that hit.
type Limiter struct {
	counter cache.Counter
	named   map[string]LimitFunc
	mu      sync.RWMutex
}

// LimitFunc builds the limits that apply to a request. Returning no limits
// leaves the request unlimited.
type LimitFunc func(r *http.Request) []Limit

// New creates a Limiter over counter.
func New(counter cache.Counter) *Limiter {
	return &Limiter{counter: counter, named: make(map[string]LimitFunc)}
}

// Hit records one attempt and returns the attempt count in the current
// window.
func (l *Limiter) Hit(ctx context.Context, key string, decay time.Duration) (int64, error) {
	return l.Increment(ctx, key, decay, 1)
}

// Increment records amount attempts.
func (l *Limiter) Increment(ctx context.Context, key string, decay time.Duration, amount int64) (int64, error) {
	n, err := l.counter.Increment(ctx, hashKey(key), amount, decay)
	if err != nil {
		return 0, errors.Join(ErrStore, err)
	}
	return n, nil
}

// Attempts returns the attempts made in the current window.
func (l *Limiter) Attempts(ctx context.Context, key string) (int64, error) {
	n, err := l.counter.Count(ctx, hashKey(key))
	if err != nil {
		return 0, errors.Join(ErrStore, err)
	}
	return n, nil
}

// TooManyAttempts reports whether key reached maxAttempts.
func (l *Limiter) TooManyAttempts(ctx context.Context, key string, maxAttempts int) (bool, error) {
	n, err := l.Attempts(ctx, key)
	if err != nil {
		return false, err
	}
	return n >= int64(maxAttempts), nil
}

// Remaining returns how many attempts are left, never below zero.
func (l *Limiter) Remaining(ctx context.Context, key string, maxAttempts int) (int, error) {
	n, err := l.Attempts(ctx, key)
	if err != nil {
		return 0, err
	}
	return max(maxAttempts-int(n), 0), nil
}

// AvailableIn returns the time until the window for key resets.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.counter.TTL(ctx, hashKey(key))
	if err != nil {
		return 0, errors.Join(ErrStore, err)
	}
	return max(ttl, 0), nil
}

// Clear resets the attempts for key.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.counter.Reset(ctx, hashKey(key)); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// Attempt runs fn unless key is over the limit; it returns false without
// running fn when the limit is reached.
func (l *Limiter) Attempt(ctx context.Context, key string, maxAttempts int, decay time.Duration, fn func() error) (bool, error) {
	tooMany, err := l.TooManyAttempts(ctx, key, maxAttempts)
	if err != nil || tooMany {
		return false, err
	}
	if _, err := l.Hit(ctx, key, decay); err != nil {
		return false, err
	}
	return true, fn()
}

// For registers a named limiter, referenced as "throttle:name".
func (l *Limiter) For(name string, fn LimitFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.named[name] = fn
}

// Limiter returns the named limiter.
func (l *Limiter) Limiter(name string) (LimitFunc, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.named[name]
	if !ok {
		return nil, ErrUnknownLimiter
	}
	return fn, nil
}

func hashKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return "ratelimit:" + hex.EncodeToString(sum[:])
}
