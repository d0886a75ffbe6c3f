package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmptyURL          = errors.New("db: empty connection URL")
	ErrInvalidConfig     = errors.New("db: invalid connection config")
	ErrConnectionFailed  = errors.New("db: failed to open connection")
	ErrHealthcheckFailed = errors.New("db: healthcheck failed")
	ErrMigrate           = errors.New("db: migration failed")
)

// Config holds pool settings. Zero values select the defaults noted on
// each field.
type Config struct {
	URL               string        `yaml:"url"`
	MaxConns          int32         `yaml:"max_conns"`          // 10
	MinConns          int32         `yaml:"min_conns"`          // 2
	HealthCheckPeriod time.Duration `yaml:"healthcheck_period"` // 1m
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time"` // 10m
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime"`  // 30m
	RetryAttempts     int           `yaml:"retry_attempts"`     // 3
	RetryInterval     time.Duration `yaml:"retry_interval"`     // 2s
}

// Open creates a pool and pings it, retrying with a linear backoff.
func Open(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyURL
	}
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	pc.MaxConns = or(cfg.MaxConns, 10)
	pc.MinConns = or(cfg.MinConns, 2)
	pc.HealthCheckPeriod = or(cfg.HealthCheckPeriod, time.Minute)
	pc.MaxConnIdleTime = or(cfg.MaxConnIdleTime, 10*time.Minute)
	pc.MaxConnLifetime = or(cfg.MaxConnLifetime, 30*time.Minute)

	attempts := or(cfg.RetryAttempts, 3)
	interval := or(cfg.RetryInterval, 2*time.Second)

	var lastErr error
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

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

// Healthcheck pings the pool.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return ErrHealthcheckFailed
		}
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

// Shutdown adapts pool.Close to a shutdown hook.
func Shutdown(pool *pgxpool.Pool) func(context.Context) error {
	return func(context.Context) error {
		pool.Close()
		return nil
	}
}

// WithTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func or[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
