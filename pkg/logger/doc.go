// Package logger builds the application's slog.Logger.
//
// Records are written as JSON (or text) and enriched with attributes pulled
// from the request context by [ContextExtractor] functions, which is how the
// request id ends up on every line logged while serving a request:
//
//	log := logger.New(logger.Config{Level: "debug"}, func(ctx context.Context) (slog.Attr, bool) {
//		id, ok := ctx.Value(requestIDKey{}).(string)
//		return slog.String("request_id", id), ok
//	})
//
// When Config.SentryDSN is set, warnings are also shipped to Sentry as logs
// and errors become Sentry issues.
package logger
