package routing

import (
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Validator decides whether a route applies to a request.
type Validator interface {
	Matches(route *Route, r *http.Request) bool
}

// DefaultValidators returns the validators in evaluation order:
// method, scheme, host, URI.
func DefaultValidators() []Validator {
	return []Validator{
		MethodValidator{},
		SchemeValidator{},
		HostValidator{},
		URIValidator{},
	}
}

// MethodValidator matches the request verb against the route's methods.
type MethodValidator struct{}

func (MethodValidator) Matches(route *Route, r *http.Request) bool {
	return route.HasMethod(r.Method)
}

// SchemeValidator enforces HTTPOnly and HTTPSOnly routes.
type SchemeValidator struct{}

func (SchemeValidator) Matches(route *Route, r *http.Request) bool {
	switch {
	case route.httpsOnly:
		return IsSecure(r)
	case route.httpOnly:
		return !IsSecure(r)
	default:
		return true
	}
}

// HostValidator matches the request host against the route's domain pattern.
// Routes without a domain match every host.
type HostValidator struct{}

func (HostValidator) Matches(route *Route, r *http.Request) bool {
	cr, err := route.Compiled()
	if err != nil {
		return false
	}
	if cr.HostRegex == nil {
		return true
	}
	return cr.HostRegex.MatchString(hostWithoutPort(r.Host))
}

// URIValidator matches the request path against the compiled path regex.
type URIValidator struct{}

func (URIValidator) Matches(route *Route, r *http.Request) bool {
	cr, err := route.Compiled()
	if err != nil {
		return false
	}
	path, _ := matchPath(r)
	if !strings.HasPrefix(path, cr.StaticPrefix) {
		return false
	}
	return cr.PathRegex.MatchString(path)
}

// IsSecure reports whether the request arrived over TLS. Proxies are expected
// to rewrite r.URL.Scheme before routing.
func IsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.URL.Scheme, "https")
}

// requestPath returns the decoded request path without a trailing slash.
func requestPath(r *http.Request) string {
	return trimPath(r.URL.Path)
}

var encodedSlash = regexp.MustCompile(`(?i)%2F`)

// pathParamDecoder undoes the escaping matchPath leaves in parameter values.
var pathParamDecoder = strings.NewReplacer("%2F", "/", "%25", "%")

// matchPath returns the path routes are matched against. Escaped slashes
// stay escaped (with literal "%" re-escaped) so a parameter value holding a
// "/" cannot be mistaken for a separator; encoded reports that case.
func matchPath(r *http.Request) (path string, encoded bool) {
	raw := r.URL.RawPath
	if raw == "" || !encodedSlash.MatchString(raw) {
		return requestPath(r), false
	}
	parts := encodedSlash.Split(raw, -1)
	for i, part := range parts {
		if decoded, err := url.PathUnescape(part); err == nil {
			part = decoded
		}
		parts[i] = strings.ReplaceAll(part, "%", "%25")
	}
	return trimPath(strings.Join(parts, "%2F")), true
}

func trimPath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}

func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}
