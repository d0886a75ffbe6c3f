// Package routing compiles route patterns and matches requests against them.
//
// A route pattern is a URI with named parameters in braces, optionally
// paired with a domain pattern:
//
//	r := routing.NewRoute([]string{"GET"}, "/posts/{post}/comments/{comment?}", handler).
//	    SetDomain("{account}.example.com").
//	    WhereNumber("post").
//	    SetName("posts.comments")
//
// Compilation produces an anchored path regex, an optional case-insensitive
// host regex and the static prefix used to reject requests quickly. Optional
// parameters must be trailing; they compile into nested optional groups so
// "/posts/1/comments" and "/posts/1/comments/7" both match.
//
// # Matching
//
// A Collection evaluates Validators in order (method, scheme, host, URI) and
// returns the first route that passes all of them. Fallback routes are tried
// last. When no route matches the request method but routes for other
// methods do, Match returns *MethodNotAllowedError, or *OptionsResult for
// OPTIONS requests. Otherwise it returns ErrNotFound.
//
// Routes are shared across requests; parameters of a single request are
// returned on the Match value.
//
// # URL generation
//
// URLGenerator builds URLs for named routes, appends leftover parameters as a
// query string and signs URLs with HMAC-SHA256:
//
//	gen := routing.NewURLGenerator(routes, routing.WithRootURL("https://example.com"), routing.WithSigningKey(key))
//	link, err := gen.TemporarySignedRoute("unsubscribe", map[string]string{"user": "42"}, time.Hour)
package routing
