package routing

import (
	"net/http"
	"slices"
	"sync"
)

// Match is the result of routing a request.
type Match struct {
	Route  *Route
	Params map[string]string
}

// Param returns the value of a bound parameter or an empty string.
func (m *Match) Param(name string) string {
	if m == nil {
		return ""
	}
	return m.Params[name]
}

// Collection stores routes and matches requests against them.
//
// Routes are added during application setup. Match and ByName are safe for
// concurrent use once setup is complete.
type Collection struct {
	validators []Validator
	registered []*Route
	routes     []*Route
	byMethod   map[string][]*Route
	names      map[string]*Route
	mu         sync.RWMutex
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithValidators replaces the default validator chain.
func WithValidators(v ...Validator) CollectionOption {
	return func(c *Collection) {
		if len(v) > 0 {
			c.validators = v
		}
	}
}

// NewCollection creates an empty route collection.
func NewCollection(opts ...CollectionOption) *Collection {
	c := &Collection{
		validators: DefaultValidators(),
		byMethod:   make(map[string][]*Route),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add compiles and registers a route. A route with the same method, domain
// and URI as an existing one replaces it. Routes changed after Add (a domain
// set fluently, for instance) are re-keyed by Refresh and Compile.
func (c *Collection) Add(r *Route) (*Route, error) {
	if _, err := r.Compiled(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.registered, r) {
		c.registered = append(c.registered, r)
	}
	c.reindex()
	return r, nil
}

// Refresh rebuilds the method index from every route's current methods,
// domain and URI.
func (c *Collection) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reindex()
}

// reindex keeps, for every method+domain+URI key, the last route registered
// under it. Routes left without any key are not matched or listed.
func (c *Collection) reindex() {
	owner := make(map[string]*Route)
	for _, r := range c.registered {
		for _, m := range r.methods {
			owner[m+" "+r.domain+r.uri] = r
		}
	}

	c.byMethod = make(map[string][]*Route)
	c.routes = make([]*Route, 0, len(c.registered))
	for _, r := range c.registered {
		live := false
		for _, m := range r.methods {
			if owner[m+" "+r.domain+r.uri] == r {
				c.byMethod[m] = append(c.byMethod[m], r)
				live = true
			}
		}
		if live {
			c.routes = append(c.routes, r)
		}
	}
	c.names = nil
}

// Routes returns every registered route in registration order.
func (c *Collection) Routes() []*Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.routes)
}

// Len returns the number of registered routes.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// Validators returns the configured validator chain.
func (c *Collection) Validators() []Validator {
	return c.validators
}

// Compile re-keys and compiles every route and rebuilds the name index.
// Returns the first compilation error.
func (c *Collection) Compile() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reindex()
	for _, r := range c.routes {
		if _, err := r.Compiled(); err != nil {
			return err
		}
	}
	c.refreshNames()
	return nil
}

// refreshNames rebuilds the name index. Later registrations win.
func (c *Collection) refreshNames() {
	c.names = make(map[string]*Route, len(c.routes))
	for _, r := range c.routes {
		if r.name != "" {
			c.names[r.name] = r
		}
	}
}

// ByName returns the route registered under name.
func (c *Collection) ByName(name string) (*Route, bool) {
	c.mu.RLock()
	if c.names != nil {
		r, ok := c.names[name]
		c.mu.RUnlock()
		return r, ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.names == nil {
		c.refreshNames()
	}
	r, ok := c.names[name]
	return r, ok
}

// HasName reports whether every given name is registered.
func (c *Collection) HasName(names ...string) bool {
	for _, n := range names {
		if _, ok := c.ByName(n); !ok {
			return false
		}
	}
	return len(names) > 0
}

// Match finds the route for the request.
//
// Errors: ErrNotFound when nothing matches, *MethodNotAllowedError when only
// other verbs match, *OptionsResult for OPTIONS requests answered implicitly.
func (c *Collection) Match(req *http.Request) (*Match, error) {
	c.mu.RLock()
	candidates := c.byMethod[req.Method]
	c.mu.RUnlock()

	if r := c.first(candidates, req, true, true); r != nil {
		return &Match{Route: r, Params: r.bind(req)}, nil
	}

	allowed := c.alternateMethods(req)
	if len(allowed) == 0 {
		return nil, ErrNotFound
	}
	if req.Method == http.MethodOptions {
		return nil, &OptionsResult{Allowed: allowed}
	}
	return nil, &MethodNotAllowedError{Method: req.Method, Path: requestPath(req), Allowed: allowed}
}

// first returns the first matching non-fallback route, then fallback routes
// when withFallback is set.
func (c *Collection) first(routes []*Route, req *http.Request, includingMethod, withFallback bool) *Route {
	passes := []bool{false}
	if withFallback {
		passes = append(passes, true)
	}
	for _, fallback := range passes {
		for _, r := range routes {
			if r.fallback != fallback {
				continue
			}
			if r.Matches(req, includingMethod, c.validators) {
				return r
			}
		}
	}
	return nil
}

// alternateMethods lists the verbs of other routes that match ignoring method.
// Fallback routes never turn a miss into a 405.
func (c *Collection) alternateMethods(req *http.Request) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var allowed []string
	for _, m := range methodOrder(c.byMethod) {
		if m == req.Method {
			continue
		}
		if c.first(c.byMethod[m], req, false, false) != nil {
			allowed = append(allowed, m)
		}
	}
	return allowed
}

// methodOrder returns the indexed verbs in a stable, conventional order.
func methodOrder(index map[string][]*Route) []string {
	order := make([]string, 0, len(index))
	for _, m := range AnyMethods {
		if _, ok := index[m]; ok {
			order = append(order, m)
		}
	}
	var extra []string
	for m := range index {
		if !slices.Contains(AnyMethods, m) {
			extra = append(extra, m)
		}
	}
	slices.Sort(extra)
	return append(order, extra...)
}
