package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/pkg/id"
	"github.com/dmitrymomot/keel/pkg/logger"
	"github.com/dmitrymomot/keel/pkg/session"
)

// Default session configuration.
const (
	defaultSessionCookieName = "keel_session"
	defaultSessionLifetime   = 2 * time.Hour

	// sessionTokenBytes of randomness encode to 40 base64url characters.
	sessionTokenBytes = 30

	// touchInterval bounds how often an unchanged session is written just
	// to slide its expiry.
	touchInterval = time.Minute
)

// SessionManager handles session lifecycle and cookie management.
type SessionManager struct {
	store         session.Store
	logger        *slog.Logger
	now           func() time.Time
	cookieName    string
	domain        string
	path          string
	lifetime      time.Duration
	sameSite      http.SameSite
	secure        bool
	httpOnly      bool
	expireOnClose bool
}

// SessionOption configures the SessionManager.
type SessionOption func(*SessionManager)

// NewSessionManager creates a new SessionManager with the given store and options.
func NewSessionManager(store session.Store, opts ...SessionOption) *SessionManager {
	sm := &SessionManager{
		store:      store,
		logger:     logger.Nop(),
		now:        time.Now,
		cookieName: defaultSessionCookieName,
		lifetime:   defaultSessionLifetime,
		path:       "/",
		httpOnly:   true,
		sameSite:   http.SameSiteLaxMode,
	}

	for _, opt := range opts {
		opt(sm)
	}

	return sm
}

// WithSessionCookieName sets the session cookie name.
func WithSessionCookieName(name string) SessionOption {
	return func(sm *SessionManager) {
		if name != "" {
			sm.cookieName = name
		}
	}
}

// WithSessionLifetime sets how long an idle session stays valid.
func WithSessionLifetime(d time.Duration) SessionOption {
	return func(sm *SessionManager) {
		if d > 0 {
			sm.lifetime = d
		}
	}
}

// WithSessionDomain sets the session cookie domain.
func WithSessionDomain(domain string) SessionOption {
	return func(sm *SessionManager) {
		sm.domain = domain
	}
}

// WithSessionPath sets the session cookie path.
func WithSessionPath(path string) SessionOption {
	return func(sm *SessionManager) {
		if path != "" {
			sm.path = path
		}
	}
}

// WithSessionSecure sets the session cookie Secure flag.
func WithSessionSecure(secure bool) SessionOption {
	return func(sm *SessionManager) {
		sm.secure = secure
	}
}

// WithSessionHTTPOnly sets the session cookie HttpOnly flag.
func WithSessionHTTPOnly(httpOnly bool) SessionOption {
	return func(sm *SessionManager) {
		sm.httpOnly = httpOnly
	}
}

// WithSessionSameSite sets the session cookie SameSite attribute.
func WithSessionSameSite(sameSite http.SameSite) SessionOption {
	return func(sm *SessionManager) {
		sm.sameSite = sameSite
	}
}

// WithSessionExpireOnClose makes the cookie a browser-session cookie.
// The server side still expires after the lifetime.
func WithSessionExpireOnClose() SessionOption {
	return func(sm *SessionManager) {
		sm.expireOnClose = true
	}
}

// ParseSameSite maps "lax", "strict" and "none" to http.SameSite.
// Anything else is lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SetLogger sets the logger for session events. Called by App after initialization.
func (sm *SessionManager) SetLogger(l *slog.Logger) {
	if l != nil {
		sm.logger = l
	}
}

// CookieName returns the name of the session cookie.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// LoadSession loads an existing session from the request cookie.
// Returns nil, nil if no session cookie exists or the stored session is gone
// or expired: the caller starts a fresh one in that case.
func (sm *SessionManager) LoadSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	sess, err := sm.store.Get(ctx, cookie.Value)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return nil, nil
	default:
		return nil, err
	}
}

// NewSession starts a session for the request. It is persisted by Persist
// when the response is written.
func (sm *SessionManager) NewSession(r *http.Request) *session.Session {
	sess := session.New(id.NewULID(), id.Token(sessionTokenBytes), sm.now().Add(sm.lifetime))
	sess.IP = clientIP(r)
	sess.UserAgent = r.UserAgent()
	return sess
}

// Persist writes the session to the store. New sessions are created, dirty
// ones updated, and clean ones touched at most once per touchInterval to
// slide their expiry.
func (sm *SessionManager) Persist(ctx context.Context, sess *session.Session) error {
	now := sm.now()

	switch {
	case sess.IsNew():
		sess.LastActiveAt = now
		sess.ExpiresAt = now.Add(sm.lifetime)
		if err := sm.store.Create(ctx, sess); err != nil {
			return err
		}
		sess.ClearNew()
	case sess.IsDirty() || now.Sub(sess.LastActiveAt) >= touchInterval:
		sess.LastActiveAt = now
		sess.ExpiresAt = now.Add(sm.lifetime)
		if err := sm.store.Update(ctx, sess); err != nil {
			return err
		}
	default:
		return nil
	}

	sess.ClearDirty()
	return nil
}

// SaveSession writes the session cookie to the response.
func (sm *SessionManager) SaveSession(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, sm.cookie(sess.Token, sm.maxAge()))
}

// RotateToken gives the session a new token. The store drops the old token
// on the next Persist, so a token captured before login stops working.
func (sm *SessionManager) RotateToken(sess *session.Session) {
	sess.Token = id.Token(sessionTokenBytes)
	sess.MarkDirty()
}

// Destroy removes the session from the store and clears the cookie.
func (sm *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, sess *session.Session) error {
	sm.DeleteSession(w)
	if sess == nil || sess.IsNew() {
		return nil
	}
	return sm.store.Delete(ctx, sess.ID)
}

// DeleteSession clears the session cookie.
func (sm *SessionManager) DeleteSession(w http.ResponseWriter) {
	http.SetCookie(w, sm.cookie("", -1))
}

// Prune removes expired sessions when the store needs explicit collection.
func (sm *SessionManager) Prune(ctx context.Context) (int64, error) {
	p, ok := sm.store.(session.Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx)
}

// Store returns the underlying session store.
func (sm *SessionManager) Store() session.Store {
	return sm.store
}

func (sm *SessionManager) maxAge() int {
	if sm.expireOnClose {
		return 0
	}
	return int(sm.lifetime / time.Second)
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     sm.path,
		Domain:   sm.domain,
		MaxAge:   maxAge,
		Secure:   sm.secure,
		HttpOnly: sm.httpOnly,
		SameSite: sm.sameSite,
	}
}
