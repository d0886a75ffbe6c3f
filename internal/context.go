package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/routing"
	"github.com/dmitrymomot/keel/pkg/session"
)

// Permission represents a named permission string.
type Permission string

// RolePermissions maps role names to their granted permissions.
type RolePermissions = map[string][]Permission

// RoleExtractorFunc extracts the current user's role from the request context.
type RoleExtractorFunc = func(Context) string

// Component is the interface for renderable templates.
// This is compatible with templ.Component.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

// Context provides request/response access and helper methods.
// It also implements context.Context by delegating to the underlying request context.
type Context interface {
	context.Context

	// Request returns the underlying *http.Request.
	Request() *http.Request

	// Response returns the underlying http.ResponseWriter.
	Response() http.ResponseWriter

	// ResponseWriter returns the wrapped writer for status and size inspection.
	ResponseWriter() *ResponseWriter

	// Context returns the request's context.Context.
	Context() context.Context

	// Param returns the route parameter value by name.
	// Returns empty string if the parameter doesn't exist.
	Param(name string) string

	// Params returns a copy of all route parameters, host parameters included.
	Params() map[string]string

	// Route returns the matched route, or nil before routing or when nothing matched.
	Route() *routing.Route

	// RouteName returns the matched route's name.
	RouteName() string

	// RouteIs reports whether the route name matches one of the patterns.
	// Patterns may contain "*" wildcards: c.RouteIs("admin.*").
	RouteIs(patterns ...string) bool

	// Bound returns the value a route binding resolved for the parameter.
	Bound(name string) any

	// URL generates the URL of a named route.
	URL(name string, params map[string]string) (string, error)

	// SignedURL generates a signed URL of a named route.
	// A zero ttl produces a signature that never expires.
	SignedURL(name string, params map[string]string, ttl time.Duration) (string, error)

	// HasValidSignature verifies the signature of a signed URL request.
	// With absolute false only the path and query are checked.
	HasValidSignature(absolute bool) error

	// Query returns the query parameter value by name.
	Query(name string) string

	// QueryDefault returns the query parameter value or a default.
	QueryDefault(name, defaultValue string) string

	// Form returns the form value by name.
	Form(name string) string

	// FormFile returns the first file for the given form key.
	FormFile(name string) (multipart.File, *multipart.FileHeader, error)

	// Header returns the request header value by name.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// Domain returns the request host without port, lower-cased.
	Domain() string

	// IP returns the client address. TrustProxies rewrites it for proxied requests.
	IP() string

	// IsSecure reports whether the request came over HTTPS.
	IsSecure() bool

	// WantsJSON reports whether the client expects a JSON response.
	WantsJSON() bool

	// JSON writes a JSON response with the given status code.
	JSON(code int, v any) error

	// String writes a plain text response with the given status code.
	String(code int, s string) error

	// NoContent writes a response with no body.
	NoContent(code int) error

	// Redirect redirects to the given URL with the given status code.
	Redirect(code int, url string) error

	// RedirectRoute redirects to a named route with 302.
	RedirectRoute(name string, params map[string]string) error

	// Back redirects to the previous URL (Referer, then session), or fallback.
	Back(fallback string) error

	// RedirectIntended redirects to the URL stored before an authentication
	// redirect, or fallback.
	RedirectIntended(fallback string) error

	// Render renders a component with the given status code.
	// Compatible with templ.Component.
	Render(code int, component Component) error

	// Error creates and returns an HTTPError without writing a response.
	// The error should be returned from the handler to trigger the exception handler.
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError

	// Bind decodes the request body (JSON or form) into v and validates it.
	// Validation failures are returned as *ValidationError.
	Bind(v any) error

	// BindQuery decodes query parameters into v and validates it.
	BindQuery(v any) error

	// BindJSON decodes a JSON body into v and validates it.
	BindJSON(v any) error

	// Validate runs struct validation on v.
	Validate(v any) error

	// Written returns true if a response has already been written.
	Written() bool

	// Logger returns the logger for advanced usage.
	Logger() *slog.Logger

	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a value in the request context.
	// The value can be retrieved using Get or from c.Context().Value(key).
	Set(key any, value any)

	// Get retrieves a value from the request context.
	// Returns nil if the key is not found.
	Get(key any) any

	// Cookie returns a plain cookie value.
	Cookie(name string) (string, error)

	// SetCookie sets a plain cookie using the application defaults.
	SetCookie(name, value string, attrs ...cookie.Attr)

	// DeleteCookie expires a cookie.
	DeleteCookie(name string, attrs ...cookie.Attr)

	// CookieSigned returns a signed cookie value.
	// Returns cookie.ErrNoSecret if no secret is configured.
	CookieSigned(name string) (string, error)

	// SetCookieSigned sets a signed cookie.
	SetCookieSigned(name, value string, attrs ...cookie.Attr) error

	// Cookies returns the application cookie jar.
	Cookies() *cookie.Jar

	// CookieEncrypted returns an encrypted cookie value.
	CookieEncrypted(name string) (string, error)

	// SetCookieEncrypted sets an encrypted cookie.
	SetCookieEncrypted(name, value string, attrs ...cookie.Attr) error

	// Session returns the current session, loading or starting it as needed.
	// Returns session.ErrNotConfigured if WithSession was not used.
	Session() (*session.Session, error)

	// RegenerateSession rotates the session token and CSRF token.
	RegenerateSession() error

	// SessionValue returns a session value or nil.
	SessionValue(key string) (any, error)

	SetSessionValue(key string, val any) error
	DeleteSessionValue(key string) error

	// DestroySession removes the session and clears the cookie.
	DestroySession() error

	// Flash stores a value in the session for the next request.
	Flash(key string, val any) error

	// Old returns flashed input from the previous request.
	Old(key string) any

	// CSRFToken returns the session CSRF token, or "" without sessions.
	CSRFToken() string

	// Authenticate resolves the identity with the named guards (the default
	// guard when none are given). Returns *AuthenticationError when no guard
	// identifies the request.
	Authenticate(guards ...string) (*Identity, error)

	// Identity returns the identity resolved for this request, trying the
	// default guard once when nothing was resolved yet.
	Identity() *Identity

	// UserID returns the authenticated user's ID or "".
	UserID() string

	// IsAuthenticated returns true if the request has an identity.
	IsAuthenticated() bool

	// IsCurrentUser returns true if the authenticated user's ID matches the given id.
	IsCurrentUser(id string) bool

	// Login binds userID to the session and rotates the session token.
	Login(userID string) error

	// Logout clears the session user and rotates the session token.
	Logout() error

	// Can reports whether the gate allows the ability for the current identity.
	Can(ability string, args ...any) bool

	// Authorize returns *AuthorizationError when the gate denies the ability.
	Authorize(ability string, args ...any) error

	// AfterResponse registers fn to run after the response is sent.
	AfterResponse(fn func())
}

// requestContext implements the Context interface.
type requestContext struct {
	app            *App
	request        *http.Request
	response       http.ResponseWriter
	responseWriter *ResponseWriter
	match          *routing.Match
	bound          map[string]any

	session               *session.Session
	sessionLoaded         bool
	sessionHookRegistered bool
	sessionDestroyed      bool

	identity         *Identity
	identityResolved bool

	cachedRole *string

	afterResponse []func()
}

func newContext(w http.ResponseWriter, r *http.Request, app *App) *requestContext {
	rw := NewResponseWriter(w)

	return &requestContext{
		app:            app,
		request:        r,
		response:       rw,
		responseWriter: rw,
	}
}

// fork returns a copy of c for a handler running on another goroutine. The
// copy writes to w, carries ctx as its request context, and owns its own
// bindings and session.
func (c *requestContext) fork(ctx context.Context, w http.ResponseWriter) *requestContext {
	f := *c
	rw := NewResponseWriter(w)
	f.request = c.request.WithContext(ctx)
	f.response = rw
	f.responseWriter = rw
	f.bound = maps.Clone(c.bound)
	f.afterResponse = nil
	if c.session != nil {
		f.session = c.session.Clone()
	}
	return &f
}

// adopt takes over the state a finished fork accumulated. c keeps its own
// request and writer.
func (c *requestContext) adopt(f *requestContext) {
	request, response, rw := c.request, c.response, c.responseWriter
	after, hooked := c.afterResponse, c.sessionHookRegistered

	*c = *f
	c.request, c.response, c.responseWriter = request, response, rw
	c.afterResponse = append(after, f.afterResponse...)
	c.sessionHookRegistered = hooked
	if !hooked && c.session != nil {
		if f.responseWriter.Written() {
			// The fork's hook already saved the session.
			c.sessionHookRegistered = true
		} else {
			c.registerSessionHook()
		}
	}
}

func (c *requestContext) Request() *http.Request {
	return c.request
}

func (c *requestContext) Response() http.ResponseWriter {
	return c.response
}

func (c *requestContext) ResponseWriter() *ResponseWriter {
	return c.responseWriter
}

func (c *requestContext) Context() context.Context {
	return c.request.Context()
}

func (c *requestContext) Deadline() (time.Time, bool) {
	return c.request.Context().Deadline()
}

func (c *requestContext) Done() <-chan struct{} {
	return c.request.Context().Done()
}

func (c *requestContext) Err() error {
	return c.request.Context().Err()
}

func (c *requestContext) Value(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Param(name string) string {
	return c.match.Param(name)
}

func (c *requestContext) Params() map[string]string {
	out := make(map[string]string)
	if c.match != nil {
		for k, v := range c.match.Params {
			out[k] = v
		}
	}
	return out
}

func (c *requestContext) Route() *routing.Route {
	if c.match == nil {
		return nil
	}
	return c.match.Route
}

func (c *requestContext) RouteName() string {
	if r := c.Route(); r != nil {
		return r.Name()
	}
	return ""
}

func (c *requestContext) RouteIs(patterns ...string) bool {
	name := c.RouteName()
	if name == "" {
		return false
	}
	for _, p := range patterns {
		if wildcardMatch(p, name) {
			return true
		}
	}
	return false
}

func (c *requestContext) Bound(name string) any {
	return c.bound[name]
}

func (c *requestContext) setBound(name string, v any) {
	if c.bound == nil {
		c.bound = make(map[string]any)
	}
	c.bound[name] = v
}

func (c *requestContext) URL(name string, params map[string]string) (string, error) {
	return c.app.urls.Route(name, params)
}

func (c *requestContext) SignedURL(name string, params map[string]string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return c.app.urls.SignedRoute(name, params, time.Time{})
	}
	return c.app.urls.TemporarySignedRoute(name, params, ttl)
}

func (c *requestContext) HasValidSignature(absolute bool) error {
	return c.app.urls.VerifySignature(c.request, absolute)
}

func (c *requestContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *requestContext) QueryDefault(name, defaultValue string) string {
	v := c.request.URL.Query().Get(name)
	if v == "" {
		return defaultValue
	}
	return v
}

func (c *requestContext) Form(name string) string {
	return c.request.FormValue(name)
}

func (c *requestContext) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	return c.request.FormFile(name)
}

func (c *requestContext) Header(name string) string {
	return c.request.Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) Domain() string {
	host := c.request.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

func (c *requestContext) IP() string {
	return clientIP(c.request)
}

func (c *requestContext) IsSecure() bool {
	return routing.IsSecure(c.request)
}

func (c *requestContext) WantsJSON() bool {
	return wantsJSON(c.request)
}

func (c *requestContext) JSON(code int, v any) error {
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.response.WriteHeader(code)
	return nil
}

func (c *requestContext) Redirect(code int, url string) error {
	http.Redirect(c.response, c.request, url, code)
	return nil
}

func (c *requestContext) RedirectRoute(name string, params map[string]string) error {
	u, err := c.URL(name, params)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, u)
}

func (c *requestContext) Back(fallback string) error {
	return c.Redirect(http.StatusFound, c.previousURL(fallback))
}

func (c *requestContext) previousURL(fallback string) string {
	if ref := c.request.Referer(); ref != "" {
		return ref
	}
	if c.app.sessionManager != nil {
		if sess, err := c.Session(); err == nil && sess.PreviousURL() != "" {
			return sess.PreviousURL()
		}
	}
	if fallback == "" {
		fallback = "/"
	}
	return fallback
}

func (c *requestContext) RedirectIntended(fallback string) error {
	target := fallback
	if c.app.sessionManager != nil {
		if sess, err := c.Session(); err == nil {
			if v, ok := sess.Pull(session.KeyIntendedURL); ok {
				if s, _ := v.(string); s != "" {
					target = s
				}
			}
		}
	}
	if target == "" {
		target = "/"
	}
	return c.Redirect(http.StatusFound, target)
}

func (c *requestContext) Render(code int, component Component) error {
	c.response.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.response.WriteHeader(code)
	return component.Render(c.request.Context(), c.response)
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(code, message, opts)
}

func (c *requestContext) Bind(v any) error {
	if isJSONRequest(c.request) {
		return c.BindJSON(v)
	}
	if err := bindForm(c.request, v); err != nil {
		return ErrBadRequest("Malformed form data.", WithError(err))
	}
	return c.Validate(v)
}

func (c *requestContext) BindQuery(v any) error {
	if err := bindValues(c.request.URL.Query(), v); err != nil {
		return ErrBadRequest("Malformed query string.", WithError(err))
	}
	return c.Validate(v)
}

func (c *requestContext) BindJSON(v any) error {
	if err := bindJSON(c.request, v); err != nil {
		return ErrBadRequest("Malformed JSON body.", WithError(err))
	}
	return c.Validate(v)
}

func (c *requestContext) Validate(v any) error {
	return c.app.validate(v)
}

func (c *requestContext) Written() bool {
	return c.responseWriter.Written()
}

func (c *requestContext) Logger() *slog.Logger {
	return c.app.logger
}

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.app.logger.DebugContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.app.logger.InfoContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.app.logger.WarnContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.app.logger.ErrorContext(c.request.Context(), msg, attrs...)
}

func (c *requestContext) Set(key, value any) {
	ctx := context.WithValue(c.request.Context(), key, value)
	c.request = c.request.WithContext(ctx)
}

func (c *requestContext) Get(key any) any {
	return c.request.Context().Value(key)
}

func (c *requestContext) Cookie(name string) (string, error) {
	return c.app.cookies.Get(c.request, name)
}

func (c *requestContext) SetCookie(name, value string, attrs ...cookie.Attr) {
	c.app.cookies.Set(c.response, name, value, attrs...)
}

func (c *requestContext) DeleteCookie(name string, attrs ...cookie.Attr) {
	c.app.cookies.Forget(c.response, name, attrs...)
}

func (c *requestContext) CookieSigned(name string) (string, error) {
	return c.app.cookies.GetSigned(c.request, name)
}

func (c *requestContext) SetCookieSigned(name, value string, attrs ...cookie.Attr) error {
	return c.app.cookies.SetSigned(c.response, name, value, attrs...)
}

func (c *requestContext) Cookies() *cookie.Jar {
	return c.app.cookies
}

func (c *requestContext) CookieEncrypted(name string) (string, error) {
	return c.app.cookies.GetEncrypted(c.request, name)
}

func (c *requestContext) SetCookieEncrypted(name, value string, attrs ...cookie.Attr) error {
	return c.app.cookies.SetEncrypted(c.response, name, value, attrs...)
}

// registerSessionHook persists the session right before the response
// headers go out, so the cookie can still be set.
func (c *requestContext) registerSessionHook() {
	if c.sessionHookRegistered {
		return
	}
	c.sessionHookRegistered = true
	c.responseWriter.OnBeforeWrite(func() {
		sess := c.session
		if sess == nil || c.sessionDestroyed {
			return
		}
		if c.request.Method == http.MethodGet && c.match != nil && !isAjax(c.request) {
			sess.SetPreviousURL(c.request.URL.RequestURI())
		}
		sess.AgeFlash()
		if err := c.app.sessionManager.Persist(c.Context(), sess); err != nil {
			c.LogError("failed to save session", slog.Any("error", err))
			return
		}
		c.app.sessionManager.SaveSession(c.response, sess)
	})
}

func (c *requestContext) Session() (*session.Session, error) {
	sm := c.app.sessionManager
	if sm == nil {
		return nil, session.ErrNotConfigured
	}
	if c.session != nil {
		return c.session, nil
	}

	// After DestroySession the request cookie is stale: start over.
	var sess *session.Session
	if !c.sessionLoaded {
		loaded, err := sm.LoadSession(c.Context(), c.request)
		if err != nil {
			return nil, err
		}
		sess = loaded
	}
	if sess == nil {
		sess = sm.NewSession(c.request)
	}

	c.session = sess
	c.sessionLoaded = true
	c.sessionDestroyed = false
	c.registerSessionHook()
	return sess, nil
}

func (c *requestContext) RegenerateSession() error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	c.app.sessionManager.RotateToken(sess)
	sess.RegenerateCSRFToken()
	return nil
}

func (c *requestContext) SessionValue(key string) (any, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	val, _ := sess.Get(key)
	return val, nil
}

func (c *requestContext) SetSessionValue(key string, val any) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sess.Set(key, val)
	return nil
}

func (c *requestContext) DeleteSessionValue(key string) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sess.Delete(key)
	return nil
}

func (c *requestContext) DestroySession() error {
	sm := c.app.sessionManager
	if sm == nil {
		return session.ErrNotConfigured
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	c.sessionDestroyed = true
	c.session = nil
	c.identity, c.identityResolved = nil, true
	c.cachedRole = nil
	return sm.Destroy(c.Context(), c.response, sess)
}

func (c *requestContext) Flash(key string, val any) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sess.Flash(key, val)
	return nil
}

func (c *requestContext) Old(key string) any {
	if c.app.sessionManager == nil {
		return nil
	}
	sess, err := c.Session()
	if err != nil {
		return nil
	}
	return sess.OldInput(key)
}

func (c *requestContext) CSRFToken() string {
	if c.app.sessionManager == nil {
		return ""
	}
	sess, err := c.Session()
	if err != nil {
		return ""
	}
	return sess.CSRFToken()
}

func (c *requestContext) Authenticate(guards ...string) (*Identity, error) {
	if len(guards) == 0 {
		guards = []string{c.app.defaultGuard}
	}
	for _, name := range guards {
		g, ok := c.app.guards[name]
		if !ok {
			return nil, ErrUnknownGuard
		}
		id, err := g.Authenticate(c)
		if err != nil {
			return nil, err
		}
		if id != nil {
			if id.Guard == "" {
				id.Guard = name
			}
			c.identity, c.identityResolved = id, true
			return id, nil
		}
	}
	return nil, &AuthenticationError{Guards: guards}
}

func (c *requestContext) Identity() *Identity {
	if c.identityResolved {
		return c.identity
	}
	c.identityResolved = true
	if c.app.defaultGuard == "" {
		return nil
	}
	id, err := c.Authenticate()
	if err != nil {
		return nil
	}
	return id
}

func (c *requestContext) UserID() string {
	if id := c.Identity(); id != nil {
		return id.ID
	}
	return ""
}

func (c *requestContext) IsAuthenticated() bool {
	return c.UserID() != ""
}

func (c *requestContext) IsCurrentUser(id string) bool {
	uid := c.UserID()
	return uid != "" && uid == id
}

func (c *requestContext) Login(userID string) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sess.SetUserID(userID)
	c.app.sessionManager.RotateToken(sess)
	sess.RegenerateCSRFToken()

	c.identity = &Identity{ID: userID, Guard: sessionGuardName(c.app)}
	c.identityResolved = true
	c.cachedRole = nil
	return nil
}

func (c *requestContext) Logout() error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sess.SetUserID("")
	c.app.sessionManager.RotateToken(sess)
	sess.RegenerateCSRFToken()

	c.identity, c.identityResolved = nil, true
	c.cachedRole = nil
	return nil
}

func (c *requestContext) Can(ability string, args ...any) bool {
	return c.app.gate.Allows(c, ability, args...)
}

func (c *requestContext) Authorize(ability string, args ...any) error {
	return c.app.gate.Authorize(c, ability, args...)
}

// role returns the role extracted for this request, computing it once.
func (c *requestContext) role(extract RoleExtractorFunc) string {
	if c.cachedRole == nil {
		empty := ""
		c.cachedRole = &empty // guards against re-entry from the extractor
		role := extract(c)
		c.cachedRole = &role
	}
	return *c.cachedRole
}

func (c *requestContext) AfterResponse(fn func()) {
	if fn != nil {
		c.afterResponse = append(c.afterResponse, fn)
	}
}

func (c *requestContext) runAfterResponse() {
	for _, fn := range c.afterResponse {
		func() {
			defer func() {
				if v := recover(); v != nil {
					c.LogError("after response callback panicked", slog.Any("panic", v))
				}
			}()
			fn()
		}()
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "/json") || strings.Contains(accept, "+json") || isAjax(r)
}

func isAjax(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func isJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "/json") || strings.Contains(ct, "+json")
}

// wildcardMatch matches s against a pattern where "*" matches any run of
// characters, dots included.
func wildcardMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(s, mid)
		if i < 0 {
			return false
		}
		s = s[i+len(mid):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

// formInput returns the submitted fields for flashing, without passwords.
func formInput(r *http.Request) map[string]any {
	_ = r.ParseForm()
	values := r.PostForm
	if len(values) == 0 {
		values = r.Form
	}
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if isSecretField(k) || len(vs) == 0 {
			continue
		}
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = vs
		}
	}
	return out
}

func isSecretField(name string) bool {
	switch name {
	case "password", "password_confirmation", "current_password", "_token":
		return true
	}
	return false
}
