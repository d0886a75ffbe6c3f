package middlewares

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/internal"
)

type accessLogConfig struct {
	excludePaths    []string
	excludePrefixes []string
	slowThreshold   time.Duration
	errorsOnly      bool
}

// LoggerOption configures Logger.
type LoggerOption func(*accessLogConfig)

// WithExcludePaths skips logging for exact paths such as "/health/live".
func WithExcludePaths(paths ...string) LoggerOption {
	return func(cfg *accessLogConfig) {
		cfg.excludePaths = append(cfg.excludePaths, paths...)
	}
}

// WithExcludePrefixes skips logging for paths under the prefixes.
func WithExcludePrefixes(prefixes ...string) LoggerOption {
	return func(cfg *accessLogConfig) {
		cfg.excludePrefixes = append(cfg.excludePrefixes, prefixes...)
	}
}

// WithSlowThreshold logs requests slower than d at warn level with slow=true.
func WithSlowThreshold(d time.Duration) LoggerOption {
	return func(cfg *accessLogConfig) {
		cfg.slowThreshold = d
	}
}

// WithErrorsOnly logs only 4xx/5xx and slow requests.
func WithErrorsOnly() LoggerOption {
	return func(cfg *accessLogConfig) {
		cfg.errorsOnly = true
	}
}

// Logger writes one access log entry per request through the application
// logger: info for success, warn for client errors and slow requests, error
// for server errors. Register it globally after RequestID so entries carry
// the request id.
func Logger(opts ...LoggerOption) internal.Middleware {
	cfg := &accessLogConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			r := c.Request()
			path := r.URL.Path
			if slices.Contains(cfg.excludePaths, path) || hasAnyPrefix(path, cfg.excludePrefixes) {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			status := c.ResponseWriter().Status()
			if err != nil {
				status = internal.ToHTTPError(err).Code
			}
			if status == 0 {
				status = http.StatusOK
			}

			slow := cfg.slowThreshold > 0 && duration >= cfg.slowThreshold
			if cfg.errorsOnly && status < 400 && !slow {
				return err
			}

			attrs := []any{
				"method", r.Method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"bytes", c.ResponseWriter().Size(),
				"ip", c.IP(),
				"host", r.Host,
				"user_agent", r.UserAgent(),
			}
			if name := routeLabel(c); name != UnmatchedRoute {
				attrs = append(attrs, "route", name)
			}
			if slow {
				attrs = append(attrs, "slow", true)
			}

			switch {
			case status >= 500:
				c.LogError("access", attrs...)
			case status >= 400, slow:
				c.LogWarn("access", attrs...)
			default:
				c.LogInfo("access", attrs...)
			}
			return err
		}
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
