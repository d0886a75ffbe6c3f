package internal

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrymomot/keel/pkg/routing"
)

// Router is the interface handlers use to declare routes.
// Every registration returns the route so it can be named, constrained and
// given middleware fluently:
//
//	r.GET("/users/{user}", h.show).SetName("users.show").WhereNumber("user")
type Router interface {
	// GET registers a handler for GET and HEAD requests.
	GET(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// POST registers a handler for POST requests.
	POST(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// PUT registers a handler for PUT requests.
	PUT(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// PATCH registers a handler for PATCH requests.
	PATCH(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// DELETE registers a handler for DELETE requests.
	DELETE(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// HEAD registers a handler for HEAD requests.
	HEAD(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// OPTIONS registers a handler for OPTIONS requests.
	OPTIONS(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// Any registers a handler for every method.
	Any(path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// Match registers a handler for the given methods.
	Match(methods []string, path string, h HandlerFunc, mw ...Middleware) *routing.Route

	// Group creates a route group sharing the given attributes.
	// Attributes nest: prefixes and name prefixes concatenate, middleware
	// accumulates, the innermost domain wins.
	Group(attrs GroupAttributes, fn func(r Router))

	// Route creates a route group with a path prefix.
	Route(prefix string, fn func(r Router))

	// Use adds inline middleware to routes registered after the call in
	// this group.
	Use(mw ...Middleware)

	// Redirect registers a route that redirects to another URI.
	Redirect(from, to string, code int) *routing.Route

	// PermanentRedirect registers a 301 redirect.
	PermanentRedirect(from, to string) *routing.Route

	// View registers a GET route that renders a component.
	View(path string, component Component) *routing.Route

	// Fallback registers the handler used when no other route matches.
	Fallback(h HandlerFunc, mw ...Middleware) *routing.Route

	// Resource registers the seven conventional routes for a controller.
	Resource(name string, controller any, opts ...ResourceOption) []*routing.Route

	// APIResource registers a resource without the create and edit routes.
	APIResource(name string, controller any, opts ...ResourceOption) []*routing.Route

	// Mount attaches an http.Handler at the given pattern.
	// Use this for legacy handlers or third-party routers.
	Mount(pattern string, h http.Handler)
}

// GroupAttributes are shared by every route in a group.
type GroupAttributes struct {
	// Where holds parameter constraints applied to the group's routes.
	Where map[string]string
	// Prefix is prepended to route URIs.
	Prefix string
	// Name is prepended to route names, e.g. "admin.".
	Name string
	// Domain restricts routes to a host pattern such as "{account}.example.com".
	Domain string
	// Middleware lists middleware references: aliases, groups or "name:params".
	Middleware []string
	// WithoutMiddleware excludes references inherited from outer groups.
	WithoutMiddleware []string
}

// routeAction is stored on routing.Route.Action.
type routeAction struct {
	handler    HandlerFunc
	middleware []Middleware
	// chain is the handler composed with every middleware, set by App.
	chain HandlerFunc
}

// registrar implements Router on top of the app's route collection.
type registrar struct {
	app    *App
	attrs  GroupAttributes
	inline []Middleware
}

func (r *registrar) GET(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodGet}, path, h, mw)
}

func (r *registrar) POST(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodPost}, path, h, mw)
}

func (r *registrar) PUT(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodPut}, path, h, mw)
}

func (r *registrar) PATCH(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodPatch}, path, h, mw)
}

func (r *registrar) DELETE(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodDelete}, path, h, mw)
}

func (r *registrar) HEAD(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodHead}, path, h, mw)
}

func (r *registrar) OPTIONS(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add([]string{http.MethodOptions}, path, h, mw)
}

func (r *registrar) Any(path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add(routing.AnyMethods, path, h, mw)
}

func (r *registrar) Match(methods []string, path string, h HandlerFunc, mw ...Middleware) *routing.Route {
	return r.add(methods, path, h, mw)
}

func (r *registrar) Group(attrs GroupAttributes, fn func(Router)) {
	fn(r.nest(attrs))
}

func (r *registrar) Route(prefix string, fn func(Router)) {
	fn(r.nest(GroupAttributes{Prefix: prefix}))
}

func (r *registrar) Use(mw ...Middleware) {
	r.inline = append(r.inline, mw...)
}

func (r *registrar) Redirect(from, to string, code int) *routing.Route {
	if code == 0 {
		code = http.StatusFound
	}
	return r.add(routing.AnyMethods, from, func(c Context) error {
		return c.Redirect(code, to)
	}, nil)
}

func (r *registrar) PermanentRedirect(from, to string) *routing.Route {
	return r.Redirect(from, to, http.StatusMovedPermanently)
}

func (r *registrar) View(path string, component Component) *routing.Route {
	return r.GET(path, func(c Context) error {
		return c.Render(http.StatusOK, component)
	})
}

func (r *registrar) Fallback(h HandlerFunc, mw ...Middleware) *routing.Route {
	route := r.add([]string{http.MethodGet}, "{fallbackPlaceholder}", h, mw)
	return route.Where("fallbackPlaceholder", ".*").MarkFallback()
}

func (r *registrar) Mount(pattern string, h http.Handler) {
	r.app.mounts = append(r.app.mounts, mount{pattern: joinPath(r.attrs.Prefix, pattern), handler: h})
}

// nest returns a registrar for a child group.
func (r *registrar) nest(attrs GroupAttributes) *registrar {
	merged := GroupAttributes{
		Prefix:            joinPath(r.attrs.Prefix, attrs.Prefix),
		Name:              r.attrs.Name + attrs.Name,
		Domain:            r.attrs.Domain,
		Middleware:        append(slices.Clone(r.attrs.Middleware), attrs.Middleware...),
		WithoutMiddleware: append(slices.Clone(r.attrs.WithoutMiddleware), attrs.WithoutMiddleware...),
		Where:             maps.Clone(r.attrs.Where),
	}
	if attrs.Domain != "" {
		merged.Domain = attrs.Domain
	}
	if len(attrs.Where) > 0 {
		if merged.Where == nil {
			merged.Where = make(map[string]string, len(attrs.Where))
		}
		maps.Copy(merged.Where, attrs.Where)
	}
	return &registrar{app: r.app, attrs: merged, inline: slices.Clone(r.inline)}
}

func (r *registrar) add(methods []string, path string, h HandlerFunc, mw []Middleware) *routing.Route {
	uri := joinPath(r.attrs.Prefix, path)
	action := &routeAction{
		handler:    h,
		middleware: append(slices.Clone(r.inline), mw...),
	}

	route := routing.NewRoute(methods, uri, action)
	if r.attrs.Name != "" {
		route.SetNamePrefix(r.attrs.Name)
	}
	if r.attrs.Domain != "" {
		route.SetDomain(r.attrs.Domain)
	}
	if len(r.attrs.Where) > 0 {
		route.WhereMap(r.attrs.Where)
	}
	if len(r.attrs.Middleware) > 0 {
		route.Middleware(r.attrs.Middleware...)
	}
	if len(r.attrs.WithoutMiddleware) > 0 {
		route.WithoutMiddleware(r.attrs.WithoutMiddleware...)
	}

	if _, err := r.app.routes.Add(route); err != nil {
		panic(fmt.Sprintf("keel: register %s %s: %v", strings.Join(methods, "|"), uri, err))
	}
	return route
}

// joinPath joins URI fragments with single slashes.
func joinPath(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	path = strings.Trim(path, "/")
	switch {
	case prefix == "" && path == "":
		return "/"
	case prefix == "":
		return "/" + path
	case path == "":
		return "/" + prefix
	default:
		return "/" + prefix + "/" + path
	}
}
