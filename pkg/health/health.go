package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ErrCheckTimeout is reported for checks still running when the timeout hits.
var ErrCheckTimeout = errors.New("health: check timeout")

// CheckFunc reports a dependency failure.
type CheckFunc func(ctx context.Context) error

// Checks maps check names to functions.
type Checks map[string]CheckFunc

type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Option configures Readiness.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// WithTimeout bounds the whole check run. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger logs failing checks at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes checks concurrently and aggregates the result.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	cfg := &config{timeout: 5 * time.Second, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	resp := &Response{Status: StatusHealthy}
	if len(checks) == 0 {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	resp.Checks = make(map[string]Check, len(checks))
	for name, check := range checks {
		wg.Go(func() {
			err := runOne(ctx, check)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				resp.Checks[name] = Check{Status: StatusHealthy}
				return
			}
			cfg.logger.WarnContext(ctx, "health check failed", slog.String("check", name), slog.String("error", err.Error()))
			resp.Checks[name] = Check{Status: StatusUnhealthy, Error: err.Error()}
			resp.Status = StatusUnhealthy
		})
	}
	wg.Wait()
	return resp
}

func runOne(ctx context.Context, check CheckFunc) error {
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrCheckTimeout
	}
}
