package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/health"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/pipeline"
	"github.com/dmitrymomot/keel/pkg/routing"
	"github.com/dmitrymomot/keel/pkg/schedule"
	"github.com/dmitrymomot/keel/pkg/session"
	"github.com/dmitrymomot/keel/pkg/validator"
)

// Default server timeouts (hardcoded, opinionated).
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// BindingsMiddleware is the alias of the route binding middleware.
const BindingsMiddleware = "bindings"

// App orchestrates the application lifecycle.
// It owns the route collection, the middleware registry, and graceful shutdown.
// App is immutable after creation - all configuration is done via New().
type App struct {
	mux                     chi.Router
	routes                  *routing.Collection
	urls                    *routing.URLGenerator
	resolver                *pipeline.Resolver[Middleware]
	kernel                  HandlerFunc
	errorHandler            ErrorHandler
	notFoundHandler         HandlerFunc
	methodNotAllowedHandler HandlerFunc
	healthConfig            *healthConfig
	logger                  *slog.Logger
	cookies                 *cookie.Jar
	sessionManager          *SessionManager
	validator               *validator.Validator
	gate                    *Gate
	bindings                *bindingRegistry
	scheduler               *schedule.Scheduler
	guards                  map[string]Guard
	patterns                map[string]string
	cookieConfig            cookie.Config
	rootURL                 string
	defaultGuard            string
	signingKey              string
	previousKeys            []string
	guardOrder              []string
	reporters               []Reporter
	middlewares             []Middleware
	handlers                []Handler
	staticRoutes            []staticRoute
	mounts                  []mount
	startupHooks            []func(context.Context) error
	shutdownHooks           []func(context.Context) error
	debug                   bool
}

// staticRoute represents a static file handler mount point.
type staticRoute struct {
	handler http.Handler
	pattern string
}

// mount is an http.Handler attached with Router.Mount.
type mount struct {
	handler http.Handler
	pattern string
}

// New creates a new application with the given options.
// The App is immutable after creation. New panics when routes fail to
// compile, reference unknown middleware, or a signing key is shorter than
// 32 bytes: all are configuration errors.
//
// Example:
//
//	app := keel.New(
//	    keel.WithMiddleware(middlewares.RequestID()),
//	    keel.WithHandlers(
//	        handlers.NewAuth(repo),
//	        handlers.NewPages(repo),
//	    ),
//	)
func New(opts ...Option) *App {
	a := &App{
		mux:       chi.NewRouter(),
		routes:    routing.NewCollection(),
		resolver:  pipeline.NewResolver[Middleware](),
		logger:    logger.Nop(),
		validator: validator.Default(),
		gate:      NewGate(),
		bindings:  newBindingRegistry(),
		guards:    make(map[string]Guard),
		patterns:  make(map[string]string),
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, key := range a.cookieSecrets() {
		if err := cookie.CheckSecret(key); err != nil {
			panic(fmt.Errorf("keel: signing key: %w", err))
		}
	}
	a.cookies = cookie.New(a.cookieConfig, a.cookieSecrets()...)
	a.urls = routing.NewURLGenerator(a.routes,
		routing.WithRootURL(a.rootURL),
		routing.WithSigningKey([]byte(a.signingKey)),
	)

	if a.sessionManager != nil {
		a.sessionManager.SetLogger(a.logger)
		if len(a.guards) == 0 {
			a.addGuard("web", SessionGuard{})
		}
		a.schedulePrune()
	}
	if !a.resolver.HasAlias(BindingsMiddleware) {
		a.resolver.Alias(BindingsMiddleware, pipeline.Static[Middleware](a.substituteBindings))
	}

	r := &registrar{app: a}
	for _, h := range a.handlers {
		h.Routes(r)
	}

	if err := a.compileRoutes(); err != nil {
		panic(err)
	}

	a.kernel = a.compose(a.middlewares, a.dispatch)
	a.setupMux()
	return a
}

// compileRoutes applies global patterns, compiles every route, and builds
// each route's middleware chain.
func (a *App) compileRoutes() error {
	a.routes.Refresh()
	for _, route := range a.routes.Routes() {
		for _, param := range route.ParameterNames() {
			if pattern, ok := a.patterns[param]; ok {
				route.WhereIfUnset(param, pattern)
			}
		}
	}
	if err := a.routes.Compile(); err != nil {
		return fmt.Errorf("keel: compile routes: %w", err)
	}

	for _, route := range a.routes.Routes() {
		action, ok := route.Action.(*routeAction)
		if !ok {
			continue
		}
		named, err := a.resolver.Resolve(route.MiddlewareNames(), route.ExcludedMiddleware())
		if err != nil {
			return fmt.Errorf("keel: route %s: %w", route.URI(), err)
		}
		chain := append(append([]Middleware{}, action.middleware...), named...)
		action.chain = a.compose(chain, action.handler)
	}
	return nil
}

// compose wraps h with mw; the first middleware is the outermost.
func (a *App) compose(mw []Middleware, h HandlerFunc) HandlerFunc {
	stages := make([]pipeline.Stage[Context], 0, len(mw))
	for _, m := range mw {
		stages = append(stages, stage(m))
	}
	return HandlerFunc(pipeline.New(stages...).Then(pipeline.Handler[Context](h)))
}

func stage(mw Middleware) pipeline.Stage[Context] {
	return func(next pipeline.Handler[Context]) pipeline.Handler[Context] {
		return pipeline.Handler[Context](mw(HandlerFunc(next)))
	}
}

// setupMux configures the chi router: static files, health checks and mounts
// are served directly, everything else goes through the kernel.
func (a *App) setupMux() {
	for _, sr := range a.staticRoutes {
		a.mux.Mount(sr.pattern, sr.handler)
	}

	if a.healthConfig != nil {
		opts := []health.Option{health.WithLogger(a.logger)}
		if a.healthConfig.timeout > 0 {
			opts = append(opts, health.WithTimeout(a.healthConfig.timeout))
		}
		a.mux.Get(a.healthConfig.livenessPath, health.Liveness())
		a.mux.Get(a.healthConfig.readinessPath, health.Readiness(a.healthConfig.checks, opts...))
	}

	for _, m := range a.mounts {
		a.mux.Mount(m.pattern, m.handler)
	}

	a.mux.Handle("/*", http.HandlerFunc(a.serve))
	a.mux.NotFound(a.serve)
	a.mux.MethodNotAllowed(a.serve)
}

// serve runs a request through the global middleware and the router.
func (a *App) serve(w http.ResponseWriter, r *http.Request) {
	c := newContext(w, r, a)
	if err := a.kernel(c); err != nil {
		a.handleError(c, err)
	}
	if !c.Written() {
		c.responseWriter.WriteHeader(http.StatusOK)
	}
	c.runAfterResponse()
}

// dispatch matches the request and runs the route's middleware chain.
// Errors are rendered here so global middleware observe the final status.
func (a *App) dispatch(c Context) error {
	if err := a.route(c); err != nil {
		a.handleError(c, err)
	}
	return nil
}

func (a *App) route(c Context) error {
	rc := c.(*requestContext)
	r := c.Request()

	m, err := a.routes.Match(r)
	if err != nil {
		if opts, ok := routing.AsOptionsResult(err); ok {
			c.SetHeader("Allow", strings.Join(opts.Allowed, ", "))
			return c.NoContent(http.StatusOK)
		}
		if mna, ok := routing.AsMethodNotAllowed(err); ok {
			if a.methodNotAllowedHandler != nil {
				return a.methodNotAllowedHandler(c)
			}
			return &MethodNotAllowedError{Method: mna.Method, Path: mna.Path, Allowed: mna.Allowed}
		}
		if errors.Is(err, routing.ErrNotFound) {
			if a.notFoundHandler != nil {
				return a.notFoundHandler(c)
			}
			return &NotFoundError{Method: r.Method, Path: r.URL.Path}
		}
		return err
	}

	rc.match = m
	action, ok := m.Route.Action.(*routeAction)
	if !ok || action.chain == nil {
		return fmt.Errorf("keel: route %s has no handler", m.Route.URI())
	}
	return action.chain(c)
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Handler returns the application as an http.Handler, for tests and custom
// servers.
func (a *App) Handler() http.Handler { return a }

// Router returns the underlying chi.Router for the App.
func (a *App) Router() chi.Router {
	return a.mux
}

// Routes returns the route collection.
func (a *App) Routes() *routing.Collection {
	return a.routes
}

// URLs returns the URL generator for named and signed routes.
func (a *App) URLs() *routing.URLGenerator {
	return a.urls
}

// URL generates the URL of a named route.
func (a *App) URL(name string, params map[string]string) (string, error) {
	return a.urls.Route(name, params)
}

// Gate returns the authorization gate.
func (a *App) Gate() *Gate {
	return a.gate
}

// Middleware returns the middleware registry.
func (a *App) Middleware() *pipeline.Resolver[Middleware] {
	return a.resolver
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Sessions returns the session manager, or nil when sessions are disabled.
func (a *App) Sessions() *SessionManager {
	return a.sessionManager
}

// Scheduler returns the scheduler, or nil.
func (a *App) Scheduler() *schedule.Scheduler {
	return a.scheduler
}

// Run starts the HTTP server and blocks until shutdown.
// A configured scheduler starts before serving requests and stops gracefully
// during shutdown.
//
// Example:
//
//	app := keel.New(
//	    keel.WithHandlers(handlers.NewLandingHandler()),
//	)
//	err := app.Run(":8080", keel.Logger(slog))
func (a *App) Run(addr string, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)

	// App-level hooks wrap the ones passed to Run; the scheduler starts last
	// and stops first.
	cfg.startupHooks = append(slices.Clip(a.startupHooks), cfg.startupHooks...)
	cfg.shutdownHooks = append(cfg.shutdownHooks, a.shutdownHooks...)
	if a.scheduler != nil {
		cfg.startupHooks = append(cfg.startupHooks, a.scheduler.StartFunc())
		cfg.shutdownHooks = append([]func(context.Context) error{a.scheduler.Shutdown()}, cfg.shutdownHooks...)
	}

	log := cfg.logger
	if log == nil {
		log = a.logger
	}
	return listenAndServe(a, addr, cfg, log)
}

func (a *App) addGuard(name string, g Guard) {
	if _, exists := a.guards[name]; !exists {
		a.guardOrder = append(a.guardOrder, name)
	}
	a.guards[name] = g
	if a.defaultGuard == "" {
		a.defaultGuard = name
	}
}

func (a *App) cookieSecrets() []string {
	if a.signingKey == "" {
		return nil
	}
	keys := []string{a.signingKey}
	for _, k := range a.previousKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// schedulePrune removes expired sessions hourly when the store needs it.
func (a *App) schedulePrune() {
	if a.scheduler == nil {
		return
	}
	if _, ok := a.sessionManager.Store().(session.Pruner); !ok {
		return
	}
	_, err := a.scheduler.Add("session:prune", "@hourly", func(ctx context.Context) error {
		n, err := a.sessionManager.Prune(ctx)
		if err == nil && n > 0 {
			a.logger.InfoContext(ctx, "pruned expired sessions", slog.Int64("count", n))
		}
		return err
	})
	if err != nil {
		a.logger.Warn("failed to schedule session pruning", slog.Any("error", err))
	}
}
