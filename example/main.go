package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dmitrymomot/keel"
	"github.com/dmitrymomot/keel/example/handlers"
	"github.com/dmitrymomot/keel/middlewares"
	"github.com/dmitrymomot/keel/pkg/cache"
	"github.com/dmitrymomot/keel/pkg/config"
	"github.com/dmitrymomot/keel/pkg/db"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/maintenance"
	"github.com/dmitrymomot/keel/pkg/ratelimit"
	"github.com/dmitrymomot/keel/pkg/redis"
	"github.com/dmitrymomot/keel/pkg/schedule"
	"github.com/dmitrymomot/keel/pkg/session"
)

func main() {
	ctx := context.Background()

	if err := config.LoadEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(getEnv("CONFIG_FILE", "example/config.yaml"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	settings, err := cfg.Settings()
	if err != nil {
		slog.Error("failed to decode config", "error", err)
		os.Exit(1)
	}

	settings.Log.Environment = settings.App.Env
	log := logger.New(settings.Log, middlewares.RequestIDExtractor())

	var (
		counter  cache.Counter = cache.NewMemoryCounter()
		locker   cache.Locker  = cache.NewMemoryLocker()
		store    session.Store = session.NewMemoryStore()
		downMode               = maintenance.New(cache.NewMemory[maintenance.State]())
		checks   []keel.HealthOption
		hooks    []keel.Option
	)

	// Redis shares rate limits, locks and sessions across instances.
	if settings.Redis.URL != "" {
		client, err := redis.Open(ctx, settings.Redis)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		counter = cache.NewRedisCounter(client)
		locker = cache.NewRedisLocker(client)
		downMode = maintenance.New(cache.NewRedis[maintenance.State](client, nil, cache.WithPrefix("maintenance")))
		if settings.Session.Driver == "redis" {
			store = session.NewRedisStore(client, "sessions:")
		}
		checks = append(checks, keel.WithReadinessCheck("redis", redis.Healthcheck(client)))
		hooks = append(hooks, keel.WithShutdownHook(redis.Shutdown(client)))
	}

	if settings.Database.URL != "" {
		pool, err := db.Open(ctx, settings.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if settings.Session.Driver == "database" {
			if err := db.Migrate(ctx, pool, session.Migrations(), "keel_migrations", log); err != nil {
				log.Error("failed to migrate sessions table", "error", err)
				os.Exit(1)
			}
			store = session.NewPostgresStore(pool)
		}
		checks = append(checks, keel.WithReadinessCheck("postgres", db.Healthcheck(pool)))
		hooks = append(hooks, keel.WithShutdownHook(db.Shutdown(pool)))
	}

	limiter := ratelimit.New(counter)
	limiter.For("api", func(r *http.Request) []ratelimit.Limit {
		return []ratelimit.Limit{ratelimit.PerMinute(120)}
	})

	scheduler := schedule.New(schedule.WithLogger(log), schedule.WithLocker(locker))
	metrics := middlewares.NewMetrics(middlewares.WithMetricsNamespace("keel_example"))
	posts := handlers.NewPostStore()

	opts := []keel.Option{
		keel.WithCustomLogger(log),
		keel.WithDebug(settings.App.Debug),
		keel.WithRootURL(settings.App.URL),
		keel.WithSigningKey(settings.App.Key, settings.App.PreviousKeys...),

		keel.WithMiddleware(
			middlewares.TrustProxies("10.0.0.0/8", "127.0.0.1"),
			middlewares.RequestID(),
			middlewares.Logger(middlewares.WithExcludePaths("/metrics")),
			middlewares.Recover(),
			middlewares.CORS(middlewares.WithCORSPaths("api/*"), middlewares.WithAllowOrigins("https://*.example.com")),
			metrics.Middleware(),
			middlewares.Maintenance(downMode, middlewares.WithMaintenanceExcept("/login")),
			middlewares.MethodOverride(),
		),
		keel.WithThrottleLimiter(limiter),
		keel.WithCSRFExcept("api/*"),

		keel.WithSession(store,
			keel.WithSessionCookieName(settings.Session.Cookie),
			keel.WithSessionLifetime(settings.Session.Lifetime),
			keel.WithSessionSecure(settings.IsProduction()),
			keel.WithSessionSameSite(keel.ParseSameSite(settings.Session.SameSite)),
		),
		keel.WithAbility("update-post", handlers.CanUpdatePost),
		keel.WithBinding("post", posts.Find),
		keel.WithPattern("post", "[0-9A-HJKMNP-TV-Z]{26}"),

		keel.WithHandlers(
			handlers.NewAuthHandler(getEnv("DEMO_EMAIL", "demo@example.com"), getEnv("DEMO_PASSWORD", "password123")),
			handlers.NewPostHandler(posts),
		),
		keel.WithRoutes(func(r keel.Router) {
			r.PermanentRedirect("/", "/posts")
			r.Mount("/metrics", metrics.Handler())
		}),

		keel.WithHealthChecks(checks...),
		keel.WithSchedule(scheduler),
	}

	if _, err := scheduler.Add("posts:report", "@every 1h", func(ctx context.Context) error {
		log.InfoContext(ctx, "scheduler heartbeat", slog.Time("at", time.Now()))
		return nil
	}); err != nil {
		log.Error("failed to schedule report", "error", err)
	}

	app := keel.New(append(opts, hooks...)...)

	if err := app.Run(settings.App.Addr,
		keel.Logger(log),
		keel.ShutdownTimeout(settings.App.ShutdownTimeout),
	); err != nil {
		log.Error("application error", "error", err)
		os.Exit(1)
	}
}

// getEnv returns environment variable value or default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
