package routing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Query parameter names used by signed URLs.
const (
	SignatureParam = "signature"
	ExpiresParam   = "expires"
)

// URLGenerator builds URLs for named routes.
type URLGenerator struct {
	routes     *Collection
	root       *url.URL
	now        func() time.Time
	signingKey []byte
}

// URLOption configures a URLGenerator.
type URLOption func(*URLGenerator)

// WithRootURL sets the application URL used for absolute URLs, e.g. "https://example.com".
func WithRootURL(root string) URLOption {
	return func(g *URLGenerator) {
		if u, err := url.Parse(strings.TrimRight(root, "/")); err == nil && u.Host != "" {
			g.root = u
		}
	}
}

// WithSigningKey sets the HMAC key used for signed URLs.
func WithSigningKey(key []byte) URLOption {
	return func(g *URLGenerator) {
		g.signingKey = key
	}
}

// WithClock overrides the time source used for signature expiry.
func WithClock(now func() time.Time) URLOption {
	return func(g *URLGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewURLGenerator creates a generator over the given collection.
func NewURLGenerator(routes *Collection, opts ...URLOption) *URLGenerator {
	g := &URLGenerator{
		routes: routes,
		root:   &url.URL{Scheme: "http", Host: "localhost"},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Route returns the URL of a named route. Parameters not consumed by the
// pattern are appended as a query string. Domain routes yield absolute URLs,
// all others are root-relative.
//
//	u, err := gen.Route("users.show", map[string]string{"user": "42", "tab": "posts"})
//	// "/users/42?tab=posts"
func (g *URLGenerator) Route(name string, params map[string]string) (string, error) {
	r, ok := g.routes.ByName(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteNameNotFound, name)
	}
	return g.ToRoute(r, params, false)
}

// AbsoluteRoute is like Route but always includes scheme and host.
func (g *URLGenerator) AbsoluteRoute(name string, params map[string]string) (string, error) {
	r, ok := g.routes.ByName(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteNameNotFound, name)
	}
	return g.ToRoute(r, params, true)
}

// ToRoute builds the URL of a route instance.
func (g *URLGenerator) ToRoute(r *Route, params map[string]string, absolute bool) (string, error) {
	cr, err := r.Compiled()
	if err != nil {
		return "", err
	}

	used := make(map[string]struct{})
	var missing []string
	value := func(name string) (string, bool) {
		if v, ok := params[name]; ok && v != "" {
			used[name] = struct{}{}
			return v, true
		}
		if v, ok := r.defaults[name]; ok && v != "" {
			return v, true
		}
		return "", false
	}

	host := ""
	if cr.HostRegex != nil {
		var b strings.Builder
		for _, t := range cr.hostTokens {
			if !t.isVariable() {
				b.WriteString(t.text)
				continue
			}
			v, ok := value(t.name)
			if !ok {
				missing = append(missing, t.name)
				continue
			}
			b.WriteString(t.sep + v)
		}
		host = b.String()
	}

	// Trailing optional parameters without a value are dropped.
	tokens := cr.pathTokens
	end := len(tokens)
	for end > 0 && tokens[end-1].isVariable() && tokens[end-1].optional {
		if _, ok := value(tokens[end-1].name); ok {
			break
		}
		end--
	}

	var path strings.Builder
	for _, t := range tokens[:end] {
		if !t.isVariable() {
			path.WriteString(t.text)
			continue
		}
		v, ok := value(t.name)
		if !ok {
			missing = append(missing, t.name)
			continue
		}
		path.WriteString(t.sep + escapeSegment(t, v))
	}
	if len(missing) > 0 {
		return "", &MissingParametersError{Route: routeLabel(r), Missing: missing}
	}

	p := path.String()
	if p == "" {
		p = "/"
	}

	query := url.Values{}
	for k, v := range params {
		if _, ok := used[k]; ok || slices.Contains(cr.Variables(), k) {
			continue
		}
		query.Set(k, v)
	}

	out := p
	switch {
	case host != "":
		if port := g.root.Port(); port != "" {
			host += ":" + port
		}
		out = g.scheme(r) + "://" + host + p
	case absolute:
		out = g.scheme(r) + "://" + g.root.Host + g.root.EscapedPath() + p
	}
	if q := query.Encode(); q != "" {
		out += "?" + q
	}
	return out, nil
}

func (g *URLGenerator) scheme(r *Route) string {
	switch {
	case r.httpsOnly:
		return "https"
	case r.httpOnly:
		return "http"
	default:
		return g.root.Scheme
	}
}

// To returns an absolute URL for a path on the application root.
func (g *URLGenerator) To(path string, query url.Values) string {
	u := *g.root
	u.Path = g.root.Path + normalizeURI(path)
	if path == "" || path == "/" {
		u.Path = g.root.Path + "/"
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// Absolute resolves a path, optionally with a query string, against the
// application root. Absolute URLs are returned unchanged.
func (g *URLGenerator) Absolute(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	p, rawQuery, _ := strings.Cut(path, "?")
	u := *g.root
	u.Path = g.root.Path + normalizeURI(p)
	u.RawQuery = rawQuery
	return u.String()
}

// SignedRoute returns an absolute URL for a named route carrying an HMAC
// signature. A zero expiresAt produces a URL that never expires.
func (g *URLGenerator) SignedRoute(name string, params map[string]string, expiresAt time.Time) (string, error) {
	if len(g.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	p := make(map[string]string, len(params)+1)
	for k, v := range params {
		if k == SignatureParam || k == ExpiresParam {
			continue
		}
		p[k] = v
	}
	if !expiresAt.IsZero() {
		p[ExpiresParam] = strconv.FormatInt(expiresAt.Unix(), 10)
	}

	raw, err := g.AbsoluteRoute(name, p)
	if err != nil {
		return "", err
	}
	return appendQuery(raw, SignatureParam+"="+g.sign(raw)), nil
}

// TemporarySignedRoute is SignedRoute with an expiry relative to now.
func (g *URLGenerator) TemporarySignedRoute(name string, params map[string]string, ttl time.Duration) (string, error) {
	return g.SignedRoute(name, params, g.now().Add(ttl))
}

// VerifySignature checks the signature of an incoming request. When
// absolute is false only the path and query are signed.
func (g *URLGenerator) VerifySignature(r *http.Request, absolute bool) error {
	if len(g.signingKey) == 0 {
		return ErrNoSigningKey
	}
	q := r.URL.Query()
	given := q.Get(SignatureParam)
	if given == "" {
		return ErrInvalidSignature
	}

	base := r.URL.EscapedPath()
	if absolute {
		scheme := "http"
		if IsSecure(r) {
			scheme = "https"
		}
		base = scheme + "://" + r.Host + base
	}
	if rest := stripQueryParam(r.URL.RawQuery, SignatureParam); rest != "" {
		base += "?" + rest
	}

	if !hmac.Equal([]byte(given), []byte(g.sign(base))) {
		return ErrInvalidSignature
	}
	if exp := q.Get(ExpiresParam); exp != "" {
		ts, err := strconv.ParseInt(exp, 10, 64)
		if err != nil || g.now().Unix() > ts {
			return ErrSignatureExpired
		}
	}
	return nil
}

// SignedRelativeRoute signs a root-relative URL, covering only path and query.
func (g *URLGenerator) SignedRelativeRoute(name string, params map[string]string, expiresAt time.Time) (string, error) {
	if len(g.signingKey) == 0 {
		return "", ErrNoSigningKey
	}
	p := make(map[string]string, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if !expiresAt.IsZero() {
		p[ExpiresParam] = strconv.FormatInt(expiresAt.Unix(), 10)
	}
	r, ok := g.routes.ByName(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteNameNotFound, name)
	}
	raw, err := g.ToRoute(r, p, false)
	if err != nil {
		return "", err
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		raw = u.RequestURI()
	}
	return appendQuery(raw, SignatureParam+"="+g.sign(raw)), nil
}

func (g *URLGenerator) sign(s string) string {
	mac := hmac.New(sha256.New, g.signingKey)
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

func appendQuery(raw, pair string) string {
	if strings.Contains(raw, "?") {
		return raw + "&" + pair
	}
	return raw + "?" + pair
}

// stripQueryParam removes every occurrence of key from a raw query string,
// keeping the remaining pairs in their original order.
func stripQueryParam(rawQuery, key string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		k, _, _ := strings.Cut(p, "=")
		if k == key {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

// escapeSegment path-escapes a parameter value. Slashes are kept only when
// the parameter's pattern accepts them, so catch-all parameters round-trip.
func escapeSegment(t token, v string) string {
	escaped := url.PathEscape(v)
	if strings.Contains(v, "/") && t.value != nil && t.value.MatchString(v) {
		return strings.ReplaceAll(escaped, "%2F", "/")
	}
	return escaped
}

func routeLabel(r *Route) string {
	if r.name != "" {
		return r.name
	}
	return r.uri
}
