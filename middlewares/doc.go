// Package middlewares provides the built-in HTTP middleware for Keel
// applications.
//
// Global middleware wraps routing and runs for every request, matched or
// not:
//
//	app := keel.New(
//	    keel.WithMiddleware(
//	        middlewares.TrustProxies("10.0.0.0/8"),
//	        middlewares.RequestID(),
//	        middlewares.Logger(middlewares.WithExcludePaths("/health/live")),
//	        middlewares.Recover(),
//	        middlewares.MethodOverride(),
//	        middlewares.Maintenance(mode),
//	        metrics.Middleware(),
//	    ),
//	)
//
// Route middleware is referenced by name. keel.New registers these aliases:
//
//	auth[:guard,...]          Authenticate
//	guest[:guard,...]         RedirectIfAuthenticated
//	can:ability[,param,...]   Authorize
//	throttle:max[,minutes]    Throttle, or throttle:<named limiter>
//	csrf                      VerifyCSRF
//	signed[:relative]         ValidateSignature
//	timeout:seconds           Timeout
//
// and the groups "web" (csrf, bindings) and "api" (bindings).
//
//	r.Group(keel.GroupAttributes{Middleware: []string{"web", "auth"}}, func(r keel.Router) {
//	    r.PUT("/posts/{post}", h.update).Middleware("can:update,post", "throttle:10,1")
//	})
//
// # Errors
//
// Middleware never writes error responses. Each failure is a typed error
// rendered by the exception handler: AuthenticationError redirects HTML
// clients to the "login" route, ThrottleError adds Retry-After and
// X-RateLimit-* headers, TokenMismatchError answers 419. Recover returns
// *PanicError (500) and Timeout returns *TimeoutError (503).
//
// # Request ID
//
// Use RequestIDExtractor with keel.WithLogger so every entry carries the id:
//
//	keel.WithLogger(logger.Config{}, "api", middlewares.RequestIDExtractor())
package middlewares
