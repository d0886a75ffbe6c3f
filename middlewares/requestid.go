package middlewares

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/id"
	"github.com/dmitrymomot/keel/pkg/logger"
)

type requestIDKey struct{}

// maxRequestIDLength bounds IDs accepted from upstream proxies.
const maxRequestIDLength = 128

// DefaultRequestIDHeaders are the headers checked (in order) for an existing request ID.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Generator      func() string
	ResponseHeader string
	Headers        []string
	// TrustIncoming accepts IDs sent by the client. Disable it when the
	// application is not behind a proxy that sets them.
	TrustIncoming bool
}

type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders sets the headers to check for existing request IDs.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Headers = headers
	}
}

// WithRequestIDGenerator sets a custom ID generator function.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		if gen != nil {
			cfg.Generator = gen
		}
	}
}

// WithRequestIDResponseHeader sets the response header name.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.ResponseHeader = header
	}
}

// WithoutIncomingRequestID always generates a fresh ID.
func WithoutIncomingRequestID() RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.TrustIncoming = false
	}
}

// RequestID assigns an ID to each request. An upstream ID is reused when it
// looks sane, otherwise a ULID is generated. The ID is stored in the request
// context, echoed in the response header and shown on error pages.
func RequestID(opts ...RequestIDOption) internal.Middleware {
	cfg := &RequestIDConfig{
		Headers:        DefaultRequestIDHeaders,
		Generator:      id.NewULID,
		ResponseHeader: "X-Request-ID",
		TrustIncoming:  true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			var reqID string
			if cfg.TrustIncoming {
				for _, header := range cfg.Headers {
					if v := c.Header(header); validRequestID(v) {
						reqID = v
						break
					}
				}
			}
			if reqID == "" {
				reqID = cfg.Generator()
			}

			c.Set(requestIDKey{}, reqID)
			c.SetHeader(cfg.ResponseHeader, reqID)

			return next(c)
		}
	}
}

// validRequestID rejects empty, oversized, and non-printable IDs so a client
// cannot inject log lines through the header.
func validRequestID(v string) bool {
	if v == "" || len(v) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID returns the request ID or "".
func GetRequestID(c internal.Context) string {
	if v, ok := c.Get(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDExtractor adds "request_id" to every log entry.
//
//	keel.WithLogger(logger.Config{}, "api", middlewares.RequestIDExtractor())
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}
