// Package internal provides the core types and implementation for the Keel framework.
//
// This package is internal and should not be used directly. Import "github.com/dmitrymomot/keel"
// instead, which re-exports the public API.
//
// # Core Types
//
//   - App: Owns the route collection, middleware registry, and graceful shutdown
//   - Context: Request/response access, sessions, cookies, identity, and authorization
//   - Router: Interface handlers use to declare routes, groups, and resources
//   - Handler: Interface implemented by types that declare routes on a router
//   - HandlerFunc: Signature for route handlers that return errors
//   - Middleware: Wraps handlers to add cross-cutting concerns
//   - Guard: Resolves the identity of a request (session, token)
//   - Gate: Ability definitions checked with Can and Authorize
//
// # Request Lifecycle
//
// Every request that is not a static file, health check, or mounted handler
// goes through the same steps:
//
//  1. A Context is created around a ResponseWriter with before-write hooks.
//  2. Global middleware (WithMiddleware) runs in registration order.
//  3. The route collection matches method, scheme, host, and path.
//     OPTIONS requests without a route answer with the Allow header,
//     other verb mismatches become 405, misses become 404.
//  4. Route middleware runs: inline middleware first, then named references
//     expanded from aliases and groups and sorted by priority.
//  5. The handler runs. A returned error goes to the exception handler,
//     which reports, redirects, or renders it.
//  6. The session is saved right before the first byte is written.
//  7. AfterResponse callbacks run.
//
// # Routes
//
//	func (h *PostHandler) Routes(r internal.Router) {
//	    r.Group(internal.GroupAttributes{
//	        Prefix:     "/admin",
//	        Name:       "admin.",
//	        Middleware: []string{"web", "auth"},
//	    }, func(r internal.Router) {
//	        r.GET("/posts/{post:slug}", h.show).SetName("posts.show")
//	        r.Resource("photos.comments", h.comments, internal.ResourceExcept("edit"))
//	    })
//	}
//
// Parameters may be optional ("{page?}"), constrained with Where helpers or
// global patterns, and bound to models with WithBinding.
//
// # Context as context.Context
//
// Context embeds context.Context, so it can be passed directly to any function
// that expects a standard library context:
//
//	func (h *Handler) getUser(c internal.Context) error {
//	    user, err := h.repo.GetUser(c, c.UserID())
//	    if err != nil {
//	        return err
//	    }
//	    return c.JSON(200, user)
//	}
//
// # Errors
//
// Handlers return errors instead of writing error responses. Typed errors
// (ValidationError, AuthenticationError, AuthorizationError, ThrottleError,
// and others) carry their status; anything unknown is a 500 and gets
// reported. HTML clients are redirected for authentication and validation
// failures, JSON clients get {"message": ..., "errors": ...}.
//
// # Design Principles
//
//   - Explicit wiring: all dependencies visible in main.go
//   - Constructor injection for handlers, no service containers
//   - Routes and middleware are resolved once at startup
package internal
