package keel

import (
	"context"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
	"github.com/dmitrymomot/keel/pkg/cache"
	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/health"
	"github.com/dmitrymomot/keel/pkg/jwt"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/ratelimit"
	"github.com/dmitrymomot/keel/pkg/routing"
	"github.com/dmitrymomot/keel/pkg/schedule"
	"github.com/dmitrymomot/keel/pkg/session"
	"github.com/dmitrymomot/keel/pkg/validator"
)

// Type aliases - public API
type (
	// App orchestrates the application lifecycle.
	// It owns the route collection, the middleware registry, and graceful shutdown.
	App = internal.App

	// Router is the interface handlers use to declare routes.
	Router = internal.Router

	// Route is a registered route. Registration methods return it for chaining.
	Route = routing.Route

	// GroupAttributes are shared by the routes of a group.
	GroupAttributes = internal.GroupAttributes

	// Context provides request/response access and helper methods.
	Context = internal.Context

	// Handler declares routes on a router.
	Handler = internal.Handler

	// HandlerFunc is the signature for route handlers.
	HandlerFunc = internal.HandlerFunc

	// Middleware wraps a HandlerFunc to add cross-cutting concerns.
	Middleware = internal.Middleware

	// MiddlewareFactory builds a middleware from reference parameters.
	MiddlewareFactory = internal.MiddlewareFactory

	// ErrorHandler replaces the built-in exception handler.
	ErrorHandler = internal.ErrorHandler

	// Reporter receives errors worth reporting (5xx and unknown).
	Reporter = internal.Reporter

	// Option configures the application.
	Option = internal.Option

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// Component is the interface for renderable templates.
	Component = internal.Component

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// ResourceOption configures resource routes.
	ResourceOption = internal.ResourceOption

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// LoggerConfig configures the application logger.
	LoggerConfig = logger.Config

	// CookieConfig holds the defaults for cookies written through the context.
	CookieConfig = cookie.Config

	// SessionOption configures the session manager.
	SessionOption = internal.SessionOption

	// Session represents a user session.
	Session = session.Session

	// SessionStore defines the interface for session persistence.
	SessionStore = session.Store

	// ResponseWriter wraps http.ResponseWriter with before-write hooks.
	ResponseWriter = internal.ResponseWriter

	// Identity is the authenticated user as resolved by a guard.
	Identity = internal.Identity

	// Guard resolves the identity of a request.
	Guard = internal.Guard

	// GuardFunc adapts a function to Guard.
	GuardFunc = internal.GuardFunc

	// SessionGuard identifies users by the user ID stored in the session.
	SessionGuard = internal.SessionGuard

	// TokenGuard identifies users by a JWT.
	TokenGuard = internal.TokenGuard

	// ExtractorSource reads a raw value, such as a token, from the request.
	ExtractorSource = internal.ExtractorSource

	// Gate holds ability definitions.
	Gate = internal.Gate

	// AbilityFunc decides one ability.
	AbilityFunc = internal.AbilityFunc

	// BeforeFunc runs before every ability check and may decide it.
	BeforeFunc = internal.BeforeFunc

	// Permission is a role permission name.
	Permission = internal.Permission

	// RolePermissions maps roles to the permissions they grant.
	RolePermissions = internal.RolePermissions

	// RoleExtractorFunc returns the role of the current user.
	RoleExtractorFunc = internal.RoleExtractorFunc

	// BindingResolver resolves a route parameter to a model.
	BindingResolver = internal.BindingResolver

	// ValidationErrors maps fields to their messages.
	ValidationErrors = validator.Errors
)

// Error types
type (
	HTTPError             = internal.HTTPError
	HTTPErrorOption       = internal.HTTPErrorOption
	HTTPErrorConverter    = internal.HTTPErrorConverter
	NotFoundError         = internal.NotFoundError
	MethodNotAllowedError = internal.MethodNotAllowedError
	AuthenticationError   = internal.AuthenticationError
	AuthorizationError    = internal.AuthorizationError
	ValidationError       = internal.ValidationError
	TokenMismatchError    = internal.TokenMismatchError
	ModelNotFoundError    = internal.ModelNotFoundError
	ThrottleError         = internal.ThrottleError
	InvalidSignatureError = internal.InvalidSignatureError
	MaintenanceError      = internal.MaintenanceError
)

const (
	// StatusPageExpired is answered for CSRF token mismatches.
	StatusPageExpired = internal.StatusPageExpired

	// BindingsMiddleware is the alias of the route binding middleware.
	BindingsMiddleware = internal.BindingsMiddleware

	ActionIndex   = internal.ActionIndex
	ActionCreate  = internal.ActionCreate
	ActionStore   = internal.ActionStore
	ActionShow    = internal.ActionShow
	ActionEdit    = internal.ActionEdit
	ActionUpdate  = internal.ActionUpdate
	ActionDestroy = internal.ActionDestroy
)

var (
	// ErrModelNotFound is returned by binding resolvers for missing records.
	ErrModelNotFound = internal.ErrModelNotFound

	// ErrUnknownGuard is returned when a guard name was never registered.
	ErrUnknownGuard = internal.ErrUnknownGuard
)

// defaultPriority orders the built-in route middleware.
var defaultPriority = []string{"auth", "guest", "throttle", "signed", BindingsMiddleware, "can"}

// Constructors

// New creates a new application with the given options.
// The App is immutable after creation.
//
// New registers the route middleware aliases auth, guest, can, throttle,
// csrf, signed and timeout, the groups "web" (csrf, bindings) and "api"
// (bindings), and their priority. Options passed to New run afterwards and
// may replace any of them.
//
// Example:
//
//	app := keel.New(
//	    keel.WithMiddleware(middlewares.RequestID()),
//	    keel.WithSession(session.NewPostgresStore(pool)),
//	    keel.WithHandlers(
//	        handlers.NewAuth(repo),
//	        handlers.NewPages(repo),
//	    ),
//	)
//
//	err := app.Run(":8080", keel.Logger(slog))
func New(opts ...Option) *App {
	defaults := []Option{
		internal.WithMiddlewareAlias("auth", middlewares.AuthenticateFactory),
		internal.WithMiddlewareAlias("guest", middlewares.GuestFactory("/")),
		internal.WithMiddlewareAlias("can", middlewares.AuthorizeFactory),
		internal.WithMiddlewareAlias("throttle", middlewares.Throttle(ratelimit.New(cache.NewMemoryCounter()))),
		internal.WithMiddlewareAlias("csrf", internal.StaticMiddleware(middlewares.VerifyCSRF())),
		internal.WithMiddlewareAlias("signed", middlewares.SignedFactory),
		internal.WithMiddlewareAlias("timeout", middlewares.TimeoutFactory),
		internal.WithMiddlewareGroup("web", "csrf", BindingsMiddleware),
		internal.WithMiddlewareGroup("api", BindingsMiddleware),
		internal.WithMiddlewarePriority(defaultPriority...),
	}
	return internal.New(append(defaults, opts...)...)
}

// App options

// WithMiddleware adds global middleware to the application.
// Global middleware runs for every request, before routing, in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithMiddlewareAlias registers a named route middleware.
//
// Example:
//
//	keel.WithMiddlewareAlias("admin", keel.StaticMiddleware(requireAdmin))
func WithMiddlewareAlias(name string, factory MiddlewareFactory) Option {
	return internal.WithMiddlewareAlias(name, factory)
}

// StaticMiddleware adapts a middleware that takes no parameters.
func StaticMiddleware(mw Middleware) MiddlewareFactory {
	return internal.StaticMiddleware(mw)
}

// WithMiddlewareGroup defines a named list of middleware references.
func WithMiddlewareGroup(name string, refs ...string) Option {
	return internal.WithMiddlewareGroup(name, refs...)
}

// WithMiddlewareAppend appends references to an existing group.
func WithMiddlewareAppend(group string, refs ...string) Option {
	return internal.WithMiddlewareAppend(group, refs...)
}

// WithMiddlewarePrepend prepends references to an existing group.
func WithMiddlewarePrepend(group string, refs ...string) Option {
	return internal.WithMiddlewarePrepend(group, refs...)
}

// WithMiddlewarePriority replaces the order in which listed middleware runs.
func WithMiddlewarePriority(names ...string) Option {
	return internal.WithMiddlewarePriority(names...)
}

// WithThrottleLimiter replaces the in-memory limiter behind "throttle",
// e.g. with one backed by Redis so instances share counters.
//
// Example:
//
//	limiter := ratelimit.New(cache.NewRedisCounter(client))
//	limiter.For("uploads", func(r *http.Request) []ratelimit.Limit {
//	    return []ratelimit.Limit{ratelimit.PerMinute(10)}
//	})
//	keel.WithThrottleLimiter(limiter)
func WithThrottleLimiter(l *ratelimit.Limiter) Option {
	return internal.WithMiddlewareAlias("throttle", middlewares.Throttle(l))
}

// WithCSRFExcept excludes path patterns from CSRF verification.
//
// Example:
//
//	keel.WithCSRFExcept("webhooks/*")
func WithCSRFExcept(patterns ...string) Option {
	return internal.WithMiddlewareAlias("csrf", internal.StaticMiddleware(
		middlewares.VerifyCSRF(middlewares.WithCSRFExcept(patterns...)),
	))
}

// WithGuestRedirect sets where "guest" sends authenticated users.
func WithGuestRedirect(to string) Option {
	return internal.WithMiddlewareAlias("guest", middlewares.GuestFactory(to))
}

// WithHandlers registers handlers that declare routes.
// Each handler's Routes method is called during setup.
func WithHandlers(h ...Handler) Option {
	return internal.WithHandlers(h...)
}

// WithRoutes registers routes with a plain function.
func WithRoutes(fn func(r Router)) Option {
	return internal.WithRoutes(fn)
}

// WithPattern sets a global constraint for a route parameter.
func WithPattern(param, pattern string) Option {
	return internal.WithPattern(param, pattern)
}

// WithBinding registers a resolver for a route parameter.
func WithBinding(param string, resolver BindingResolver) Option {
	return internal.WithBinding(param, resolver)
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
	return internal.WithStaticFiles(pattern, fsys, subDir)
}

// WithErrorHandler replaces the built-in exception handler.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithReporter registers a callback for reported errors.
func WithReporter(r Reporter) Option {
	return internal.WithReporter(r)
}

// WithDebug includes error details in responses. Never enable in production.
func WithDebug(debug bool) Option {
	return internal.WithDebug(debug)
}

// WithNotFoundHandler sets a custom 404 handler.
func WithNotFoundHandler(h HandlerFunc) Option {
	return internal.WithNotFoundHandler(h)
}

// WithMethodNotAllowedHandler sets a custom 405 handler.
func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return internal.WithMethodNotAllowedHandler(h)
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	keel.WithHealthChecks(
//	    keel.WithReadinessCheck("db", db.Healthcheck(pool)),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// WithLivenessPath overrides the liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath overrides the readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// WithHealthTimeout bounds how long readiness checks may take.
func WithHealthTimeout(d time.Duration) HealthOption {
	return internal.WithHealthTimeout(d)
}

// WithLogger creates a logger with a component name and optional extractors.
//
// Example:
//
//	keel.WithLogger(keel.LoggerConfig{Level: "info"}, "api", middlewares.RequestIDExtractor())
func WithLogger(cfg LoggerConfig, component string, extractors ...ContextExtractor) Option {
	return internal.WithLogger(cfg, component, extractors...)
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithRootURL sets the application URL used for absolute and signed URLs.
func WithRootURL(u string) Option {
	return internal.WithRootURL(u)
}

// WithSigningKey sets the application key and the keys it replaced.
func WithSigningKey(key string, previous ...string) Option {
	return internal.WithSigningKey(key, previous...)
}

// WithCookies sets the defaults for cookies written through the context.
func WithCookies(cfg CookieConfig) Option {
	return internal.WithCookies(cfg)
}

// Session options

// WithSession enables server-side session management.
//
// Example:
//
//	keel.New(
//	    keel.WithSession(session.NewRedisStore(client, "sessions:"),
//	        keel.WithSessionLifetime(30*24*time.Hour),
//	        keel.WithSessionSecure(true),
//	    ),
//	)
func WithSession(store SessionStore, opts ...SessionOption) Option {
	return internal.WithSession(store, opts...)
}

func WithSessionCookieName(name string) SessionOption {
	return internal.WithSessionCookieName(name)
}

func WithSessionLifetime(d time.Duration) SessionOption {
	return internal.WithSessionLifetime(d)
}

func WithSessionDomain(domain string) SessionOption {
	return internal.WithSessionDomain(domain)
}

func WithSessionPath(path string) SessionOption {
	return internal.WithSessionPath(path)
}

func WithSessionSecure(secure bool) SessionOption {
	return internal.WithSessionSecure(secure)
}

func WithSessionHTTPOnly(httpOnly bool) SessionOption {
	return internal.WithSessionHTTPOnly(httpOnly)
}

func WithSessionSameSite(sameSite http.SameSite) SessionOption {
	return internal.WithSessionSameSite(sameSite)
}

// WithSessionExpireOnClose makes the session cookie a browser-session cookie.
func WithSessionExpireOnClose() SessionOption {
	return internal.WithSessionExpireOnClose()
}

// ParseSameSite converts "lax", "strict" or "none" to http.SameSite.
func ParseSameSite(s string) http.SameSite {
	return internal.ParseSameSite(s)
}

// Authentication and authorization

// WithGuard registers an authentication guard. The first one is the default.
func WithGuard(name string, g Guard) Option {
	return internal.WithGuard(name, g)
}

// WithDefaultGuard selects the guard used when none is named.
func WithDefaultGuard(name string) Option {
	return internal.WithDefaultGuard(name)
}

// NewTokenGuard creates a guard that verifies JWTs read from sources,
// the bearer token by default.
func NewTokenGuard(svc *jwt.Service, sources ...ExtractorSource) *TokenGuard {
	return internal.NewTokenGuard(svc, sources...)
}

// WithAbility defines a gate ability.
func WithAbility(ability string, fn AbilityFunc) Option {
	return internal.WithAbility(ability, fn)
}

// WithGateBefore registers a hook run before every ability check.
func WithGateBefore(fn BeforeFunc) Option {
	return internal.WithGateBefore(fn)
}

// WithRoles grants abilities to roles.
//
// Example:
//
//	keel.WithRoles(
//	    keel.RolePermissions{"admin": {"users.write"}},
//	    func(c keel.Context) string { return keel.ContextValue[string](c, roleKey{}) },
//	)
func WithRoles(permissions RolePermissions, extractor RoleExtractorFunc) Option {
	return internal.WithRoles(permissions, extractor)
}

// WithValidator replaces the default validator.
func WithValidator(v *validator.Validator) Option {
	return internal.WithValidator(v)
}

// WithSchedule attaches a scheduler that runs alongside the server.
func WithSchedule(s *schedule.Scheduler) Option {
	return internal.WithSchedule(s)
}

// WithStartupHook runs fn before the server starts listening.
func WithStartupHook(fn func(context.Context) error) Option {
	return internal.WithStartupHook(fn)
}

// WithShutdownHook runs fn after the server drained.
func WithShutdownHook(fn func(context.Context) error) Option {
	return internal.WithShutdownHook(fn)
}

// Resource options

func ResourceOnly(actions ...string) ResourceOption { return internal.ResourceOnly(actions...) }

func ResourceExcept(actions ...string) ResourceOption { return internal.ResourceExcept(actions...) }

func ResourceParameter(resource, param string) ResourceOption {
	return internal.ResourceParameter(resource, param)
}

func ResourceNames(names map[string]string) ResourceOption { return internal.ResourceNames(names) }

func ResourceMiddleware(refs ...string) ResourceOption { return internal.ResourceMiddleware(refs...) }

// Run options

// Logger sets the logger for server lifecycle events.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout sets the maximum time to wait for graceful shutdown.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// StartupHook registers a function to run before the server starts.
func StartupHook(fn func(context.Context) error) RunOption {
	return internal.StartupHook(fn)
}

// ShutdownHook registers a function to run during graceful shutdown.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithListener serves on ln instead of listening on the Run address.
func WithListener(ln net.Listener) RunOption {
	return internal.WithListener(ln)
}

// WithContext sets the base context; cancelling it stops the server.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// Token extractors

func FromHeader(name string) ExtractorSource { return internal.FromHeader(name) }
func FromQuery(name string) ExtractorSource { return internal.FromQuery(name) }
func FromCookie(name string) ExtractorSource { return internal.FromCookie(name) }
func FromCookieSigned(name string) ExtractorSource { return internal.FromCookieSigned(name) }
func FromCookieEncrypted(name string) ExtractorSource { return internal.FromCookieEncrypted(name) }
func FromParam(name string) ExtractorSource { return internal.FromParam(name) }
func FromForm(name string) ExtractorSource { return internal.FromForm(name) }
func FromSession(key string) ExtractorSource { return internal.FromSession(key) }
func FromBearerToken() ExtractorSource { return internal.FromBearerToken() }

// Errors

func NewHTTPError(code int, message string) *HTTPError { return internal.NewHTTPError(code, message) }

func NewValidationError(errs ValidationErrors) *ValidationError {
	return internal.NewValidationError(errs)
}

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrBadRequest(message, opts...)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrUnauthorized(message, opts...)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrForbidden(message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrNotFound(message, opts...)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrConflict(message, opts...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrUnprocessable(message, opts...)
}

func ErrTooManyRequests(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrTooManyRequests(message, opts...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrInternal(message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.ErrServiceUnavailable(message, opts...)
}

func WithTitle(title string) HTTPErrorOption { return internal.WithTitle(title) }
func WithDetail(detail string) HTTPErrorOption { return internal.WithDetail(detail) }
func WithErrorCode(code string) HTTPErrorOption { return internal.WithErrorCode(code) }
func WithRequestID(id string) HTTPErrorOption { return internal.WithRequestID(id) }
func WithError(err error) HTTPErrorOption { return internal.WithError(err) }
func WithHeader(name, value string) HTTPErrorOption { return internal.WithHeader(name, value) }
func WithFieldErrors(errs ValidationErrors) HTTPErrorOption { return internal.WithFieldErrors(errs) }

// IsHTTPError reports whether err carries an HTTP status.
func IsHTTPError(err error) bool { return internal.IsHTTPError(err) }

// AsHTTPError extracts the *HTTPError from err, or nil.
func AsHTTPError(err error) *HTTPError { return internal.AsHTTPError(err) }

// ToHTTPError converts any error into an *HTTPError; unknown errors are 500.
func ToHTTPError(err error) *HTTPError { return internal.ToHTTPError(err) }

func IsValidationError(err error) bool { return internal.IsValidationError(err) }

func AsValidationError(err error) (*ValidationError, bool) { return internal.AsValidationError(err) }

// Generic helpers

// ContextValue returns the context value stored under key, or T's zero value.
func ContextValue[T any](c Context, key any) T {
	return internal.ContextValue[T](c, key)
}

// Model returns the value a route binding resolved for param.
//
//	post, ok := keel.Model[*Post](c, "post")
func Model[T any](c Context, param string) (T, bool) {
	return internal.Model[T](c, param)
}

// Param returns a route parameter converted to T, or T's zero value.
//
//	id := keel.Param[int64](c, "id")
func Param[T ~string | ~int | ~int64 | ~uint | ~float64 | ~bool](c Context, name string) T {
	return internal.Param[T](c, name)
}

// Query returns a query parameter converted to T, or T's zero value.
func Query[T ~string | ~int | ~int64 | ~uint | ~float64 | ~bool](c Context, name string) T {
	return internal.Query[T](c, name)
}

// QueryDefault returns a query parameter converted to T, or defaultValue.
func QueryDefault[T ~string | ~int | ~int64 | ~uint | ~float64 | ~bool](c Context, name string, defaultValue T) T {
	return internal.QueryDefault(c, name, defaultValue)
}

// SessionValue is a typed helper to retrieve session values with type safety.
// Returns an error if the key doesn't exist or type assertion fails.
//
// Example:
//
//	theme, err := keel.SessionValue[string](sess, "theme")
func SessionValue[T any](sess *Session, key string) (T, error) {
	return session.Value[T](sess, key)
}

// SessionValueOr returns a default value if the key doesn't exist or type
// assertion fails.
//
// Example:
//
//	theme := keel.SessionValueOr(sess, "theme", "light")
func SessionValueOr[T any](sess *Session, key string, defaultVal T) T {
	return session.ValueOr(sess, key, defaultVal)
}
