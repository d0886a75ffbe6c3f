package middlewares

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrymomot/keel/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

type timeoutContextKey struct{}

// Timeout bounds how long the rest of the chain may run. When the deadline
// passes before the handler returns, a *TimeoutError (503) is returned.
//
// The chain runs on its own goroutine with a buffered response. It keeps
// running after the deadline, but its writes fail with
// http.ErrHandlerTimeout and never reach the client. Long operations
// should watch c.Done() or GetTimeoutContext(c).Done().
//
// As a route middleware it is referenced as "timeout:<seconds>".
func Timeout(timeout time.Duration) internal.Middleware {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()

			err := internal.RunBuffered(ctx, c, func(c internal.Context) error {
				c.Set(timeoutContextKey{}, c.Context())
				return next(c)
			})
			if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				c.LogWarn("request timeout", "timeout", timeout.String())
				return &TimeoutError{Duration: timeout}
			}
			return err
		}
	}
}

// TimeoutFactory builds Timeout from "timeout:<seconds>".
func TimeoutFactory(params ...string) (internal.Middleware, error) {
	if len(params) == 0 {
		return Timeout(DefaultTimeout), nil
	}
	secs, err := strconv.Atoi(params[0])
	if err != nil || secs <= 0 {
		return nil, errors.New("middlewares: timeout expects seconds, got " + strconv.Quote(params[0]))
	}
	return Timeout(time.Duration(secs) * time.Second), nil
}

// GetTimeoutContext returns the deadline-bound context set by Timeout, or
// the request context.
func GetTimeoutContext(c internal.Context) context.Context {
	if v, ok := c.Get(timeoutContextKey{}).(context.Context); ok {
		return v
	}
	return c.Context()
}
