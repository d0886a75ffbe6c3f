package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config describes the log output.
type Config struct {
	Output      io.Writer `yaml:"-"`
	Level       string    `yaml:"level"`
	Format      string    `yaml:"format"`
	SentryDSN   string    `yaml:"sentry_dsn"`
	Environment string    `yaml:"environment"`
}

// New returns a logger for cfg. Extractors add attributes from the context
// of each record.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	if cfg.SentryDSN != "" {
		if s, err := sentryHandler(cfg); err != nil {
			slog.New(h).Error("sentry init failed", slog.String("error", err.Error()))
		} else {
			h = fanout{h, s}
		}
	}
	return slog.New(WithExtractors(h, extractors...))
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sentryHandler(cfg Config) (slog.Handler, error) {
	env := cfg.Environment
	if env == "" {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: env,
		EnableLogs:  true,
	}); err != nil {
		return nil, err
	}
	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background()), nil
}
