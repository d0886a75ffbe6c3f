package cache

import "time"

// Option configures memory and Redis stores.
type Option func(*options)

type options struct {
	now             func() time.Time
	prefix          string
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxEntries      int
}

func newOptions(opts []Option) *options {
	o := &options{
		defaultTTL:      time.Hour,
		cleanupInterval: time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDefaultTTL sets the TTL used when a zero TTL is passed. Default: 1 hour.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) { o.defaultTTL = d }
}

// WithCleanupInterval sets how often the memory store sweeps expired
// entries. Zero disables the janitor. Default: 1 minute.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) { o.cleanupInterval = d }
}

// WithMaxEntries bounds the memory store; the least recently used entry is
// evicted first. Zero means unlimited.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithPrefix namespaces Redis keys as "{prefix}:{key}".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithClock overrides the time source of memory stores.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o *options) key(k string) string {
	if o.prefix == "" {
		return k
	}
	return o.prefix + ":" + k
}
