package internal

import (
	"slices"
	"strings"

	"github.com/dmitrymomot/keel/pkg/routing"
)

// Resource controllers implement any subset of these interfaces. Only the
// actions a controller implements are registered.
type (
	ResourceIndexer   interface{ Index(c Context) error }
	ResourceCreator   interface{ Create(c Context) error }
	ResourceStorer    interface{ Store(c Context) error }
	ResourceShower    interface{ Show(c Context) error }
	ResourceEditor    interface{ Edit(c Context) error }
	ResourceUpdater   interface{ Update(c Context) error }
	ResourceDestroyer interface{ Destroy(c Context) error }
)

// Resource action names.
const (
	ActionIndex   = "index"
	ActionCreate  = "create"
	ActionStore   = "store"
	ActionShow    = "show"
	ActionEdit    = "edit"
	ActionUpdate  = "update"
	ActionDestroy = "destroy"
)

var resourceActions = []string{
	ActionIndex, ActionCreate, ActionStore, ActionShow, ActionEdit, ActionUpdate, ActionDestroy,
}

type resourceConfig struct {
	only       []string
	except     []string
	parameters map[string]string
	names      map[string]string
	middleware []string
}

// ResourceOption configures resource registration.
type ResourceOption func(*resourceConfig)

// ResourceOnly registers only the listed actions.
func ResourceOnly(actions ...string) ResourceOption {
	return func(c *resourceConfig) { c.only = append(c.only, actions...) }
}

// ResourceExcept skips the listed actions.
func ResourceExcept(actions ...string) ResourceOption {
	return func(c *resourceConfig) { c.except = append(c.except, actions...) }
}

// ResourceParameter renames the route parameter of a resource segment:
// ResourceParameter("users", "admin_user") yields "/users/{admin_user}".
func ResourceParameter(resource, param string) ResourceOption {
	return func(c *resourceConfig) {
		if c.parameters == nil {
			c.parameters = make(map[string]string)
		}
		c.parameters[resource] = param
	}
}

// ResourceNames overrides route names per action.
func ResourceNames(names map[string]string) ResourceOption {
	return func(c *resourceConfig) {
		if c.names == nil {
			c.names = make(map[string]string)
		}
		for k, v := range names {
			c.names[k] = v
		}
	}
}

// ResourceMiddleware attaches middleware references to every resource route.
func ResourceMiddleware(refs ...string) ResourceOption {
	return func(c *resourceConfig) { c.middleware = append(c.middleware, refs...) }
}

func (r *registrar) Resource(name string, controller any, opts ...ResourceOption) []*routing.Route {
	return r.resource(name, controller, resourceActions, opts)
}

func (r *registrar) APIResource(name string, controller any, opts ...ResourceOption) []*routing.Route {
	actions := slices.DeleteFunc(slices.Clone(resourceActions), func(a string) bool {
		return a == ActionCreate || a == ActionEdit
	})
	return r.resource(name, controller, actions, opts)
}

// resource registers routes for name, which may be nested with dots:
// "photos.comments" yields "/photos/{photo}/comments/{comment}".
func (r *registrar) resource(name string, controller any, actions []string, opts []ResourceOption) []*routing.Route {
	cfg := &resourceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	segments := strings.Split(strings.Trim(name, "/."), ".")
	last := segments[len(segments)-1]

	var base strings.Builder
	for _, seg := range segments[:len(segments)-1] {
		base.WriteString("/" + seg + "/{" + cfg.param(seg) + "}")
	}
	base.WriteString("/" + last)
	collection := base.String()
	member := collection + "/{" + cfg.param(last) + "}"

	var routes []*routing.Route
	for _, action := range actions {
		if !cfg.includes(action) {
			continue
		}
		h, ok := resourceHandler(controller, action)
		if !ok {
			continue
		}

		var route *routing.Route
		switch action {
		case ActionIndex:
			route = r.GET(collection, h)
		case ActionCreate:
			route = r.GET(collection+"/create", h)
		case ActionStore:
			route = r.POST(collection, h)
		case ActionShow:
			route = r.GET(member, h)
		case ActionEdit:
			route = r.GET(member+"/edit", h)
		case ActionUpdate:
			route = r.Match([]string{"PUT", "PATCH"}, member, h)
		case ActionDestroy:
			route = r.DELETE(member, h)
		}

		routeName := name + "." + action
		if custom, ok := cfg.names[action]; ok {
			routeName = custom
		}
		route.SetName(routeName)
		if len(cfg.middleware) > 0 {
			route.Middleware(cfg.middleware...)
		}
		routes = append(routes, route)
	}
	return routes
}

func (c *resourceConfig) includes(action string) bool {
	if len(c.only) > 0 && !slices.Contains(c.only, action) {
		return false
	}
	return !slices.Contains(c.except, action)
}

func (c *resourceConfig) param(segment string) string {
	if p, ok := c.parameters[segment]; ok {
		return p
	}
	return strings.ReplaceAll(singular(segment), "-", "_")
}

func resourceHandler(controller any, action string) (HandlerFunc, bool) {
	switch action {
	case ActionIndex:
		if c, ok := controller.(ResourceIndexer); ok {
			return c.Index, true
		}
	case ActionCreate:
		if c, ok := controller.(ResourceCreator); ok {
			return c.Create, true
		}
	case ActionStore:
		if c, ok := controller.(ResourceStorer); ok {
			return c.Store, true
		}
	case ActionShow:
		if c, ok := controller.(ResourceShower); ok {
			return c.Show, true
		}
	case ActionEdit:
		if c, ok := controller.(ResourceEditor); ok {
			return c.Edit, true
		}
	case ActionUpdate:
		if c, ok := controller.(ResourceUpdater); ok {
			return c.Update, true
		}
	case ActionDestroy:
		if c, ok := controller.(ResourceDestroyer); ok {
			return c.Destroy, true
		}
	}
	return nil, false
}

// singular covers the regular English plurals resource names use.
func singular(word string) string {
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "ies") && len(word) > 3:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(lower, "sses"),
		strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zzes"):
		return word[:len(word)-2]
	case strings.HasSuffix(lower, "ss"), strings.HasSuffix(lower, "us"):
		return word
	case strings.HasSuffix(lower, "s") && len(word) > 1:
		return word[:len(word)-1]
	}
	return word
}
