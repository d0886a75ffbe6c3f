package routing

import (
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Common parameter patterns used by the Where* helpers.
const (
	PatternNumber       = `[0-9]+`
	PatternAlpha        = `[a-zA-Z]+`
	PatternAlphaNumeric = `[a-zA-Z0-9]+`
	PatternUUID         = `[\da-fA-F]{8}-[\da-fA-F]{4}-[\da-fA-F]{4}-[\da-fA-F]{4}-[\da-fA-F]{12}`
	PatternULID         = `[0-7][0-9a-hjkmnp-tv-zA-HJKMNP-TV-Z]{25}`
)

// AnyMethods is the verb list registered by Router.Any.
var AnyMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

// Route binds a URI pattern (and optionally a domain pattern) to an action.
//
// A Route is configured at registration time and must not be modified once
// the collection serves requests. Per-request parameters are carried by Match.
type Route struct {
	// Action is the opaque handler the route dispatches to.
	Action any

	wheres     map[string]string
	defaults   map[string]string
	compiled   *CompiledRoute
	uri        string
	domain     string
	name       string
	namePrefix string
	methods    []string
	middleware []string
	excluded   []string
	mu         sync.Mutex
	httpOnly   bool
	httpsOnly  bool
	fallback   bool
}

// NewRoute creates a route for the given methods and URI.
// Methods are upper-cased; GET implies HEAD.
func NewRoute(methods []string, uri string, action any) *Route {
	r := &Route{
		Action:   action,
		uri:      normalizeURI(uri),
		wheres:   make(map[string]string),
		defaults: make(map[string]string),
	}
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !slices.Contains(r.methods, m) {
			r.methods = append(r.methods, m)
		}
	}
	if slices.Contains(r.methods, http.MethodGet) && !slices.Contains(r.methods, http.MethodHead) {
		r.methods = append(r.methods, http.MethodHead)
	}
	return r
}

// normalizeURI returns the URI with exactly one leading slash and no trailing slash.
func normalizeURI(uri string) string {
	return "/" + strings.Trim(uri, "/")
}

// Methods returns the HTTP verbs the route responds to.
func (r *Route) Methods() []string { return slices.Clone(r.methods) }

// URI returns the normalised URI pattern.
func (r *Route) URI() string { return r.uri }

// Domain returns the domain pattern or an empty string.
func (r *Route) Domain() string { return r.domain }

// Name returns the route name including any group prefix.
func (r *Route) Name() string { return r.name }

// IsFallback reports whether the route is matched only after all others.
func (r *Route) IsFallback() bool { return r.fallback }

// IsHTTPSOnly reports whether the route only matches secure requests.
func (r *Route) IsHTTPSOnly() bool { return r.httpsOnly }

// IsHTTPOnly reports whether the route only matches plain-text requests.
func (r *Route) IsHTTPOnly() bool { return r.httpOnly }

// Wheres returns a copy of the parameter constraints.
func (r *Route) Wheres() map[string]string { return maps.Clone(r.wheres) }

// Defaults returns a copy of the parameter defaults.
func (r *Route) Defaults() map[string]string { return maps.Clone(r.defaults) }

// MiddlewareNames returns the middleware references attached to the route.
func (r *Route) MiddlewareNames() []string { return slices.Clone(r.middleware) }

// ExcludedMiddleware returns the middleware references the route opts out of.
func (r *Route) ExcludedMiddleware() []string { return slices.Clone(r.excluded) }

// HasMethod reports whether the route responds to method.
func (r *Route) HasMethod(method string) bool {
	return slices.Contains(r.methods, strings.ToUpper(method))
}

// SetName appends name to the route name. Group name prefixes set through
// SetNamePrefix are applied to the first call.
//
//	r.GET("/users/{user}", h.show).SetName("users.show")
func (r *Route) SetName(name string) *Route {
	if r.name == "" {
		r.name = r.namePrefix + name
	} else {
		r.name += name
	}
	return r
}

// SetNamePrefix sets the prefix applied by SetName. Used by group registrars.
func (r *Route) SetNamePrefix(prefix string) *Route {
	r.namePrefix = prefix
	return r
}

// SetDomain restricts the route to hosts matching the pattern.
// Patterns may contain parameters: "{account}.example.com".
func (r *Route) SetDomain(domain string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domain = strings.ToLower(strings.TrimSuffix(domain, "/"))
	r.compiled = nil
	return r
}

// Where constrains a parameter with a regular expression.
// Leading "^" and trailing "$" anchors are stripped; the whole segment must match.
//
//	r.GET("/users/{id}", h.show).Where("id", `[0-9]+`)
func (r *Route) Where(param, pattern string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wheres[param] = trimAnchors(pattern)
	r.compiled = nil
	return r
}

// WhereMap applies several constraints at once. Existing keys are overwritten.
func (r *Route) WhereMap(wheres map[string]string) *Route {
	for k, v := range wheres {
		r.Where(k, v)
	}
	return r
}

// WhereIfUnset applies a constraint only when the route has none for param.
// Global patterns are applied this way.
func (r *Route) WhereIfUnset(param, pattern string) *Route {
	r.mu.Lock()
	_, ok := r.wheres[param]
	r.mu.Unlock()
	if !ok {
		r.Where(param, pattern)
	}
	return r
}

// WhereNumber constrains parameters to digits.
func (r *Route) WhereNumber(params ...string) *Route {
	return r.whereAll(PatternNumber, params)
}

// WhereAlpha constrains parameters to ASCII letters.
func (r *Route) WhereAlpha(params ...string) *Route {
	return r.whereAll(PatternAlpha, params)
}

// WhereAlphaNumeric constrains parameters to ASCII letters and digits.
func (r *Route) WhereAlphaNumeric(params ...string) *Route {
	return r.whereAll(PatternAlphaNumeric, params)
}

// WhereUUID constrains parameters to UUID strings.
func (r *Route) WhereUUID(params ...string) *Route {
	return r.whereAll(PatternUUID, params)
}

// WhereULID constrains parameters to ULID strings.
func (r *Route) WhereULID(params ...string) *Route {
	return r.whereAll(PatternULID, params)
}

// WhereIn constrains a parameter to one of the given literal values.
//
//	r.GET("/posts/{state}", h.list).WhereIn("state", "draft", "published")
func (r *Route) WhereIn(param string, values ...string) *Route {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	return r.Where(param, "(?:"+strings.Join(quoted, "|")+")")
}

func (r *Route) whereAll(pattern string, params []string) *Route {
	for _, p := range params {
		r.Where(p, pattern)
	}
	return r
}

// Default sets the value used for a parameter that is absent from the request.
func (r *Route) Default(param, value string) *Route {
	r.defaults[param] = value
	return r
}

// Middleware appends named middleware references ("auth", "throttle:60,1").
func (r *Route) Middleware(refs ...string) *Route {
	r.middleware = append(r.middleware, refs...)
	return r
}

// WithoutMiddleware excludes middleware references that would otherwise
// be applied through groups.
func (r *Route) WithoutMiddleware(refs ...string) *Route {
	r.excluded = append(r.excluded, refs...)
	return r
}

// HTTPSOnly restricts the route to secure requests.
func (r *Route) HTTPSOnly() *Route {
	r.httpsOnly = true
	r.httpOnly = false
	return r
}

// HTTPOnly restricts the route to plain-text requests.
func (r *Route) HTTPOnly() *Route {
	r.httpOnly = true
	r.httpsOnly = false
	return r
}

// MarkFallback flags the route to be matched after every other route.
func (r *Route) MarkFallback() *Route {
	r.fallback = true
	return r
}

// Compiled returns the compiled form of the route, compiling it if needed.
func (r *Route) Compiled() (*CompiledRoute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.compiled != nil {
		return r.compiled, nil
	}
	cr, err := compile(r.uri, r.domain, r.wheres)
	if err != nil {
		return nil, err
	}
	r.compiled = cr
	return cr, nil
}

// ParameterNames returns host and path parameter names in declaration order.
func (r *Route) ParameterNames() []string {
	cr, err := r.Compiled()
	if err != nil {
		return nil
	}
	return append(slices.Clone(cr.HostVariables), cr.PathVariables...)
}

// Matches runs validators against the request. When includingMethod is false
// the MethodValidator is skipped.
func (r *Route) Matches(req *http.Request, includingMethod bool, validators []Validator) bool {
	if _, err := r.Compiled(); err != nil {
		return false
	}
	for _, v := range validators {
		if !includingMethod {
			if _, ok := v.(MethodValidator); ok {
				continue
			}
		}
		if !v.Matches(r, req) {
			return false
		}
	}
	return true
}

// bind extracts host and path parameters for a request the route matched.
// Missing optional parameters are filled from defaults.
func (r *Route) bind(req *http.Request) map[string]string {
	cr, _ := r.Compiled()
	params := make(map[string]string, len(cr.HostVariables)+len(cr.PathVariables))

	if cr.HostRegex != nil {
		collect(cr.HostRegex, hostWithoutPort(req.Host), params)
	}
	path, encoded := matchPath(req)
	collect(cr.PathRegex, path, params)
	if encoded {
		for _, name := range cr.PathVariables {
			if v, ok := params[name]; ok {
				params[name] = pathParamDecoder.Replace(v)
			}
		}
	}

	for _, name := range cr.Variables() {
		if _, ok := params[name]; ok {
			continue
		}
		if v, ok := r.defaults[name]; ok {
			params[name] = v
		}
	}
	return params
}

func collect(re *regexp.Regexp, subject string, into map[string]string) {
	m := re.FindStringSubmatch(subject)
	if m == nil {
		return
	}
	for i, name := range re.SubexpNames() {
		if name == "" || i >= len(m) || m[i] == "" {
			continue
		}
		into[name] = m[i]
	}
}

func trimAnchors(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "^")
	if strings.HasSuffix(pattern, "$") && !strings.HasSuffix(pattern, `\$`) {
		pattern = strings.TrimSuffix(pattern, "$")
	}
	return pattern
}
