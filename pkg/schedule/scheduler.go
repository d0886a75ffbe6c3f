package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/keel/pkg/cache"
	"github.com/dmitrymomot/keel/pkg/id"
	"github.com/dmitrymomot/keel/pkg/logger"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs Events on cron schedules.
type Scheduler struct {
	locker   cache.Locker
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
	cron     *cron.Cron
	events   map[string]*Event
	order    []string
	mu       sync.Mutex
	started  bool
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   logger.Nop(),
		location: time.Local,
		now:      time.Now,
		events:   make(map[string]*Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers fn under name with a 5-field cron expression or a
// descriptor such as "@hourly" or "@every 5m".
//
//	s.Add("prune-sessions", "*/15 * * * *", store.PruneTask).
//		WithoutOverlapping(0).
//		OnOneServer()
func (s *Scheduler) Add(name, spec string, fn Handler) (*Event, error) {
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSpec, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrAlreadyStarted
	}
	if _, ok := s.events[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}
	e := &Event{name: name, spec: spec, handler: fn}
	s.events[name] = e
	s.order = append(s.order, name)
	return e, nil
}

// Task is implemented by types that carry their own schedule.
type Task interface {
	Name() string
	Schedule() string
	Handle(ctx context.Context) error
}

// AddTask registers a Task.
func (s *Scheduler) AddTask(t Task) (*Event, error) {
	return s.Add(t.Name(), t.Schedule(), t.Handle)
}

// Events returns the registered events in registration order.
func (s *Scheduler) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.events[name])
	}
	return out
}

// Start begins dispatching events. The context bounds each run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	for _, e := range s.events {
		if (e.noOverlap || e.oneServer) && s.locker == nil {
			return fmt.Errorf("%w: %s", ErrLockerRequired, e.name)
		}
	}

	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	for _, name := range s.order {
		e := s.events[name]
		if _, err := s.cron.AddFunc(e.spec, func() { _, _ = s.dispatch(ctx, e) }); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidSpec, e.spec, err)
		}
	}
	s.cron.Start()
	s.started = true
	s.logger.InfoContext(ctx, "scheduler started", slog.Int("events", len(s.order)))
	return nil
}

// Stop stops dispatching and waits for running events or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	c := s.cron
	s.mu.Unlock()

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartFunc adapts Start to a startup hook.
func (s *Scheduler) StartFunc() func(context.Context) error {
	return s.Start
}

// Shutdown adapts Stop to a shutdown hook.
func (s *Scheduler) Shutdown() func(context.Context) error {
	return s.Stop
}

// Run dispatches the named event immediately, applying its filters and
// mutexes. It reports whether the handler ran.
func (s *Scheduler) Run(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	e, ok := s.events[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.dispatch(ctx, e)
}

func (s *Scheduler) dispatch(ctx context.Context, e *Event) (bool, error) {
	log := s.logger.With(slog.String("task", e.name))

	if !e.shouldRun(ctx) {
		log.DebugContext(ctx, "scheduled task skipped by filter")
		return false, nil
	}
	if (e.noOverlap || e.oneServer) && s.locker == nil {
		return false, ErrLockerRequired
	}

	if e.oneServer {
		// One claim per task and minute, shared by every server.
		key := e.mutexName() + ":" + strconv.FormatInt(s.now().Truncate(time.Minute).Unix(), 10)
		ok, err := s.locker.Acquire(ctx, key, id.NewULID(), time.Hour)
		if err != nil {
			log.ErrorContext(ctx, "scheduled task mutex failed", slog.Any("error", err))
			return false, err
		}
		if !ok {
			log.DebugContext(ctx, "scheduled task claimed by another server")
			return false, nil
		}
	}

	run := func(ctx context.Context) error { return s.execute(ctx, log, e) }

	if !e.noOverlap {
		return true, run(ctx)
	}

	ran, err := cache.NewLock(s.locker, e.mutexName(), e.overlapTTL).Run(ctx, run)
	if !ran && err == nil {
		log.DebugContext(ctx, "scheduled task still running, skipped")
	}
	return ran, err
}

func (s *Scheduler) execute(ctx context.Context, log *slog.Logger, e *Event) error {
	start := s.now()
	log.DebugContext(ctx, "scheduled task started")

	err := e.handler(ctx)
	if err != nil {
		log.ErrorContext(ctx, "scheduled task failed",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)),
		)
		return err
	}
	log.DebugContext(ctx, "scheduled task completed", slog.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, slog.Any("error", err))...)
}

var _ cron.Logger = cronLogger{}

