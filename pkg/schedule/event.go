package schedule

import (
	"context"
	"time"
)

// Handler is the work run on each tick.
type Handler func(ctx context.Context) error

const defaultOverlapTTL = 24 * time.Hour

// Event is a scheduled task. Configure it with the fluent methods before
// the scheduler starts.
type Event struct {
	handler    Handler
	filters    []func(context.Context) bool
	rejects    []func(context.Context) bool
	name       string
	spec       string
	overlapTTL time.Duration
	noOverlap  bool
	oneServer  bool
}

func (e *Event) Name() string { return e.name }
func (e *Event) Spec() string { return e.spec }

// WithoutOverlapping skips a tick while the previous run still holds the
// task mutex. The mutex expires after ttl (24h when zero) in case a run
// dies without releasing it.
func (e *Event) WithoutOverlapping(ttl time.Duration) *Event {
	if ttl <= 0 {
		ttl = defaultOverlapTTL
	}
	e.noOverlap, e.overlapTTL = true, ttl
	return e
}

// OnOneServer lets only the first server to claim a tick run it.
func (e *Event) OnOneServer() *Event {
	e.oneServer = true
	return e
}

// When adds a condition that must hold for the task to run.
func (e *Event) When(fn func(context.Context) bool) *Event {
	e.filters = append(e.filters, fn)
	return e
}

// Skip adds a condition that prevents the task from running.
func (e *Event) Skip(fn func(context.Context) bool) *Event {
	e.rejects = append(e.rejects, fn)
	return e
}

func (e *Event) shouldRun(ctx context.Context) bool {
	for _, fn := range e.filters {
		if !fn(ctx) {
			return false
		}
	}
	for _, fn := range e.rejects {
		if fn(ctx) {
			return false
		}
	}
	return true
}

func (e *Event) mutexName() string {
	return "schedule:" + e.name
}
