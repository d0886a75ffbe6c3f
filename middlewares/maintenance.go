package middlewares

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/maintenance"
)

const (
	// MaintenanceCookie holds the bypass granted by visiting /<secret>.
	MaintenanceCookie = "keel_maintenance"
	// MaintenanceBypassTTL is how long a bypass cookie stays valid.
	MaintenanceBypassTTL = 12 * time.Hour
)

type maintenanceConfig struct {
	except []string
	now    func() time.Time
}

// MaintenanceOption configures Maintenance.
type MaintenanceOption func(*maintenanceConfig)

// WithMaintenanceExcept keeps matching paths reachable in every maintenance
// window, in addition to the window's own except list.
func WithMaintenanceExcept(patterns ...string) MaintenanceOption {
	return func(cfg *maintenanceConfig) {
		cfg.except = append(cfg.except, patterns...)
	}
}

// WithMaintenanceClock replaces time.Now for bypass cookie expiry.
func WithMaintenanceClock(now func() time.Time) MaintenanceOption {
	return func(cfg *maintenanceConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Maintenance answers 503 while mode is down. Register it globally.
//
// A window with a secret lets operators in: visiting "/<secret>" sets a
// bypass cookie and redirects home. A window with a redirect sends every
// other path there.
func Maintenance(mode *maintenance.Mode, opts ...MaintenanceOption) internal.Middleware {
	cfg := &maintenanceConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			state, down, err := mode.State(c.Context())
			if err != nil {
				return err
			}
			if !down {
				return next(c)
			}

			path := "/" + strings.Trim(c.Request().URL.Path, "/")
			if state.Secret != "" {
				if path == "/"+state.Secret {
					expires := cfg.now().Add(MaintenanceBypassTTL)
					c.SetCookie(MaintenanceCookie, bypassToken(state.Secret, expires),
						cookie.MaxAge(int(MaintenanceBypassTTL.Seconds())))
					return c.Redirect(http.StatusFound, "/")
				}
				if validBypass(c, state.Secret, cfg.now()) {
					return next(c)
				}
			}

			if state.Redirect != "" && path != "/"+strings.Trim(state.Redirect, "/") {
				return c.Redirect(http.StatusFound, state.Redirect)
			}
			if state.Excepts(path) || matchPath(cfg.except, path) {
				return next(c)
			}

			return &internal.MaintenanceError{
				Retry:   state.Retry,
				Refresh: state.Refresh,
				Status:  state.StatusCode(),
			}
		}
	}
}

// bypassToken is "<unix expiry>.<hmac>" keyed by the window secret, so a
// new secret invalidates earlier cookies.
func bypassToken(secret string, expires time.Time) string {
	ts := strconv.FormatInt(expires.Unix(), 10)
	return ts + "." + bypassMAC(secret, ts)
}

func bypassMAC(secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

func validBypass(c internal.Context, secret string, now time.Time) bool {
	raw, err := c.Cookie(MaintenanceCookie)
	if err != nil || raw == "" {
		return false
	}
	ts, sig, ok := strings.Cut(raw, ".")
	if !ok {
		return false
	}
	if !hmac.Equal([]byte(sig), []byte(bypassMAC(secret, ts))) {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	return now.Before(time.Unix(unix, 0))
}
