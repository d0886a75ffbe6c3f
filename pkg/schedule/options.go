package schedule

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/keel/pkg/cache"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. A no-op logger is used when unset.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocker sets the mutex store used by WithoutOverlapping and
// OnOneServer. Use a cache.RedisLocker when several servers run the
// scheduler.
func WithLocker(l cache.Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

// WithLocation evaluates cron expressions in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides time.Now; used for the single-server mutex key.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}
