package internal

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/pipeline"
	"github.com/dmitrymomot/keel/pkg/schedule"
	"github.com/dmitrymomot/keel/pkg/session"
	"github.com/dmitrymomot/keel/pkg/validator"
)

// Option configures the application.
type Option func(*App)

// MiddlewareFactory builds a middleware from the parameters of a reference
// such as "throttle:60,1".
type MiddlewareFactory = pipeline.Factory[Middleware]

// StaticMiddleware adapts a middleware that takes no parameters.
func StaticMiddleware(mw Middleware) MiddlewareFactory {
	return pipeline.Static(mw)
}

// WithMiddleware adds global middleware to the application.
// Global middleware runs for every request, before routing.
// Middleware is applied in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.middlewares = append(a.middlewares, mw...)
	}
}

// WithMiddlewareAlias registers a named middleware that routes reference by
// name: route.Middleware("auth", "throttle:60,1").
//
// Example:
//
//	keel.WithMiddlewareAlias("admin", keel.StaticMiddleware(requireAdmin))
func WithMiddlewareAlias(name string, factory MiddlewareFactory) Option {
	return func(a *App) {
		a.resolver.Alias(name, factory)
	}
}

// WithMiddlewareGroup defines a named list of middleware references.
// Groups may reference other groups.
//
// Example:
//
//	keel.WithMiddlewareGroup("web", "csrf", "bindings")
func WithMiddlewareGroup(name string, refs ...string) Option {
	return func(a *App) {
		a.resolver.Group(name, refs...)
	}
}

// WithMiddlewareAppend appends references to an existing group.
func WithMiddlewareAppend(group string, refs ...string) Option {
	return func(a *App) {
		a.resolver.AppendToGroup(group, refs...)
	}
}

// WithMiddlewarePrepend prepends references to an existing group.
func WithMiddlewarePrepend(group string, refs ...string) Option {
	return func(a *App) {
		a.resolver.PrependToGroup(group, refs...)
	}
}

// WithMiddlewarePriority sets the order in which listed middleware runs,
// regardless of how routes declare them. Unlisted middleware keeps its
// relative position.
func WithMiddlewarePriority(names ...string) Option {
	return func(a *App) {
		a.resolver.SetPriority(names...)
	}
}

// WithHandlers registers handlers that declare routes.
// Each handler's Routes method is called during setup.
func WithHandlers(h ...Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, h...)
	}
}

// WithRoutes registers routes with a plain function.
func WithRoutes(fn func(r Router)) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, routesFunc(fn))
	}
}

type routesFunc func(r Router)

func (f routesFunc) Routes(r Router) { f(r) }

// WithPattern sets a global constraint for a parameter name. Routes with
// their own constraint for the parameter keep it.
//
// Example:
//
//	keel.WithPattern("id", "[0-9]+")
func WithPattern(param, pattern string) Option {
	return func(a *App) {
		a.patterns[param] = pattern
	}
}

// WithBinding registers a resolver for a route parameter. Routes using the
// "bindings" middleware replace the raw value with the resolved one,
// available through c.Bound and Model.
//
// Example:
//
//	keel.WithBinding("post", func(c keel.Context, value, field string) (any, error) {
//	    post, err := repo.FindPost(c, value)
//	    if errors.Is(err, pgx.ErrNoRows) {
//	        return nil, keel.ErrModelNotFound
//	    }
//	    return post, err
//	})
func WithBinding(param string, resolver BindingResolver) Option {
	return func(a *App) {
		a.bindings.set(param, resolver)
	}
}

// WithStaticFiles mounts a static file handler at the given pattern.
// Directory listings are disabled. Files are served with default cache headers.
//
// Example:
//
//	//go:embed public
//	var assets embed.FS
//
//	keel.New(
//	    keel.WithStaticFiles("/static/", assets, "public"),
//	)
func WithStaticFiles(pattern string, fsys fs.FS, subDir string) Option {
	return func(a *App) {
		subFS, err := fs.Sub(fsys, subDir)
		if err != nil {
			panic(err)
		}

		fileServer := http.StripPrefix(strings.TrimSuffix(pattern, "/"), http.FileServerFS(subFS))

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Block directory listings
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}

			w.Header().Set("Cache-Control", "public, max-age=3600")
			w.Header().Set("X-Content-Type-Options", "nosniff")

			fileServer.ServeHTTP(w, r)
		})

		a.staticRoutes = append(a.staticRoutes, staticRoute{handler, pattern})
	}
}

// WithErrorHandler replaces the built-in exception handler.
// Called when a handler returns a non-nil error.
//
// Example:
//
//	keel.WithErrorHandler(func(c keel.Context, err error) error {
//	    he := keel.ToHTTPError(err)
//	    return c.JSON(he.Code, map[string]string{"error": he.Message})
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithReporter registers a callback for errors the exception handler
// reports (5xx and unknown errors).
func WithReporter(r Reporter) Option {
	return func(a *App) {
		if r != nil {
			a.reporters = append(a.reporters, r)
		}
	}
}

// WithDebug includes error details and the error chain in responses.
// Never enable in production.
func WithDebug(debug bool) Option {
	return func(a *App) {
		a.debug = debug
	}
}

// WithNotFoundHandler sets a custom 404 handler.
//
// Example:
//
//	keel.WithNotFoundHandler(func(c keel.Context) error {
//	    return c.String(http.StatusNotFound, "Page not found")
//	})
func WithNotFoundHandler(h HandlerFunc) Option {
	return func(a *App) {
		a.notFoundHandler = h
	}
}

// WithMethodNotAllowedHandler sets a custom 405 handler.
//
// Example:
//
//	keel.WithMethodNotAllowedHandler(func(c keel.Context) error {
//	    return c.String(http.StatusMethodNotAllowed, "Method not allowed")
//	})
func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return func(a *App) {
		a.methodNotAllowedHandler = h
	}
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	keel.WithHealthChecks(
//	    keel.WithReadinessCheck("db", db.Healthcheck(pool)),
//	    keel.WithReadinessCheck("redis", redis.Healthcheck(client)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.healthConfig = cfg
	}
}

// WithLogger creates a logger with a component name and optional extractors.
// The component name is added to every log entry for easy filtering.
// Extractors pull values from context (e.g., request_id, user_id).
//
// Example:
//
//	keel.New(
//	    keel.WithLogger(logger.Config{Level: "info"}, "api", requestIDExtractor),
//	)
func WithLogger(cfg logger.Config, component string, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		l := logger.New(cfg, extractors...)
		if component != "" {
			l = l.With("component", component)
		}
		a.logger = l
	}
}

// WithCustomLogger sets a fully custom logger.
// Use this when you need complete control over logging configuration.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRootURL sets the application URL used for absolute and signed URLs.
func WithRootURL(u string) Option {
	return func(a *App) {
		a.rootURL = u
	}
}

// WithSigningKey sets the application key. It signs URLs and cookies and
// encrypts cookies. Previous keys still verify and decrypt, so keys can be
// rotated without logging everyone out. Every key must be at least 32
// bytes; New panics otherwise.
func WithSigningKey(key string, previous ...string) Option {
	return func(a *App) {
		a.signingKey = key
		a.previousKeys = previous
	}
}

// WithCookies sets the defaults for cookies written through the context.
func WithCookies(cfg cookie.Config) Option {
	return func(a *App) {
		a.cookieConfig = cfg
	}
}

// WithSession enables server-side session management.
// Sessions are loaded lazily and saved automatically before the response is written.
// When no guard is registered, a session guard named "web" becomes the default.
//
// Example:
//
//	keel.New(
//	    keel.WithSession(session.NewPostgresStore(pool),
//	        keel.WithSessionCookieName("__sid"),
//	        keel.WithSessionLifetime(30*24*time.Hour),
//	        keel.WithSessionSecure(true),
//	    ),
//	)
func WithSession(store session.Store, opts ...SessionOption) Option {
	return func(a *App) {
		a.sessionManager = NewSessionManager(store, opts...)
	}
}

// WithGuard registers an authentication guard. The first registered guard
// is the default.
//
// Example:
//
//	keel.WithGuard("api", keel.NewTokenGuard(tokens))
func WithGuard(name string, g Guard) Option {
	return func(a *App) {
		if g != nil {
			a.addGuard(name, g)
		}
	}
}

// WithDefaultGuard selects the guard used when none is named.
func WithDefaultGuard(name string) Option {
	return func(a *App) {
		a.defaultGuard = name
	}
}

// WithAbility defines a gate ability.
//
// Example:
//
//	keel.WithAbility("update-post", func(c keel.Context, id *keel.Identity, args ...any) bool {
//	    post, ok := args[0].(*Post)
//	    return ok && post.AuthorID == id.ID
//	})
func WithAbility(ability string, fn AbilityFunc) Option {
	return func(a *App) {
		a.gate.Define(ability, fn)
	}
}

// WithGateBefore registers a gate hook run before every ability check.
func WithGateBefore(fn BeforeFunc) Option {
	return func(a *App) {
		a.gate.Before(fn)
	}
}

// WithRoles configures role-based access control for the application.
// The permissions map defines which permissions each role grants.
// The extractor function determines the current user's role from the request context.
// Roles are extracted lazily (once per request) and cached.
// A role permission allows the ability; a missing one falls through to
// abilities defined on the gate.
//
// Example:
//
//	keel.New(
//	    keel.WithRoles(
//	        keel.RolePermissions{
//	            "admin":  {"users.read", "users.write", "billing.manage"},
//	            "member": {"users.read"},
//	        },
//	        func(c keel.Context) string {
//	            return c.Get(roleKey{}).(string)
//	        },
//	    ),
//	)
func WithRoles(permissions RolePermissions, extractor RoleExtractorFunc) Option {
	return func(a *App) {
		if extractor != nil {
			a.gate.Before(roleHook(permissions, extractor))
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validator.Validator) Option {
	return func(a *App) {
		if v != nil {
			a.validator = v
		}
	}
}

// WithSchedule attaches a scheduler. It starts with App.Run and stops on
// shutdown. Session stores that need pruning get an hourly "session:prune"
// event.
func WithSchedule(s *schedule.Scheduler) Option {
	return func(a *App) {
		a.scheduler = s
	}
}

// WithStartupHook runs fn before the server starts listening.
func WithStartupHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.startupHooks = append(a.startupHooks, fn)
		}
	}
}

// WithShutdownHook runs fn after the server drained.
func WithShutdownHook(fn func(context.Context) error) Option {
	return func(a *App) {
		if fn != nil {
			a.shutdownHooks = append(a.shutdownHooks, fn)
		}
	}
}
