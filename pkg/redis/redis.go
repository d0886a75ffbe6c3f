package redis

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyURL          = errors.New("redis: empty connection URL")
	ErrInvalidURL        = errors.New("redis: invalid connection URL")
	ErrConnectionFailed  = errors.New("redis: failed to establish connection")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)

// Config holds connection settings. Zero values select the defaults noted
// on each field.
type Config struct {
	URL           string        `yaml:"url"`
	PoolSize      int           `yaml:"pool_size"`      // 10
	MinIdleConns  int           `yaml:"min_idle_conns"` // 2
	MaxIdleTime   time.Duration `yaml:"max_idle_time"`  // 10m
	ReadTimeout   time.Duration `yaml:"read_timeout"`   // 3s
	WriteTimeout  time.Duration `yaml:"write_timeout"`  // 3s
	DialTimeout   time.Duration `yaml:"dial_timeout"`   // 5s
	RetryAttempts int           `yaml:"retry_attempts"` // 3
	RetryInterval time.Duration `yaml:"retry_interval"` // 2s
}

// Open parses cfg.URL (redis:// or rediss://) and connects.
func Open(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	if !strings.HasPrefix(cfg.URL, "redis://") && !strings.HasPrefix(cfg.URL, "rediss://") {
		return nil, ErrInvalidURL
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}

	opts.PoolSize = or(cfg.PoolSize, 10)
	opts.MinIdleConns = or(cfg.MinIdleConns, 2)
	opts.ConnMaxIdleTime = or(cfg.MaxIdleTime, 10*time.Minute)
	opts.ReadTimeout = or(cfg.ReadTimeout, 3*time.Second)
	opts.WriteTimeout = or(cfg.WriteTimeout, 3*time.Second)
	opts.DialTimeout = or(cfg.DialTimeout, 5*time.Second)

	attempts := or(cfg.RetryAttempts, 3)
	interval := or(cfg.RetryInterval, 2*time.Second)

	var lastErr error
	for i := range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(i+1) * interval):
		}
	}
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

// Healthcheck pings the client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// Shutdown adapts Close to a shutdown hook.
func Shutdown(client io.Closer) func(context.Context) error {
	return func(context.Context) error { return client.Close() }
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
