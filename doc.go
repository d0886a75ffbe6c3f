// Package keel is a web framework built around a compiled route collection,
// named route middleware, and a context that carries sessions, cookies,
// identity, and authorization.
//
// Handlers return errors. The exception handler turns them into responses:
// redirects for browsers, JSON for API clients.
//
// # Quick Start
//
//	app := keel.New(
//	    keel.WithSigningKey(os.Getenv("APP_KEY")),
//	    keel.WithSession(session.NewMemoryStore()),
//	    keel.WithHandlers(handlers.NewPosts(repo)),
//	)
//
//	if err := app.Run(":8080"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Handlers
//
// Handlers implement the [Handler] interface to declare routes:
//
//	func (h *PostHandler) Routes(r keel.Router) {
//	    r.Group(keel.GroupAttributes{Middleware: []string{"web"}}, func(r keel.Router) {
//	        r.GET("/posts/{post}", h.show).SetName("posts.show")
//	        r.PUT("/posts/{post}", h.update).Middleware("auth", "can:update,post")
//	    })
//	}
//
// Parameters can be optional ("{page?}"), constrained ("WhereNumber"),
// restricted to a domain, and bound to models with [WithBinding].
//
// # Middleware
//
// Global middleware, added with [WithMiddleware], runs for every request
// before routing. Route middleware is referenced by name and may take
// parameters after a colon:
//
//	r.POST("/comments", h.store).Middleware("auth", "throttle:10,1")
//
// [New] registers these aliases:
//
//   - auth[:guard,...]: require an authenticated user
//   - guest[:guard,...]: redirect authenticated users away
//   - can:ability[,param...]: authorize through the gate
//   - throttle[:max,minutes[,prefix]] or throttle:name: rate limiting
//   - csrf: verify the CSRF token on state-changing requests
//   - signed[:relative]: require a valid URL signature
//   - timeout:seconds: bound handler run time
//
// and the groups "web" (csrf, bindings) and "api" (bindings). Every one of
// them can be replaced with [WithMiddlewareAlias] or [WithMiddlewareGroup].
//
// # Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests and runs
// shutdown hooks. A scheduler attached with [WithSchedule] stops with it.
//
// # Escape Hatch
//
// Use Router.Mount for http.Handler values that should bypass the framework,
// or App.Router for direct access to the underlying chi router.
package keel
