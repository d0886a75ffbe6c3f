// Package maintenance stores the application's maintenance ("down") state
// in a cache so every instance behind a load balancer sees the same mode.
package maintenance

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/pkg/cache"
)

// DefaultKey is the cache key holding the state.
const DefaultKey = "framework:maintenance"

var ErrStore = errors.New("maintenance: store failure")

// State describes an active maintenance window.
type State struct {
	Time     time.Time `json:"time"`
	Secret   string    `json:"secret,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
	Except   []string  `json:"except,omitempty"`
	Retry    int       `json:"retry,omitempty"`   // seconds, sent as Retry-After
	Refresh  int       `json:"refresh,omitempty"` // seconds, sent as Refresh
	Status   int       `json:"status,omitempty"`
}

// StatusCode returns Status or 503.
func (s State) StatusCode() int {
	if s.Status == 0 {
		return http.StatusServiceUnavailable
	}
	return s.Status
}

// Excepts reports whether path matches one of the Except patterns. A
// pattern may end with "*" to match a prefix.
func (s State) Excepts(p string) bool {
	p = "/" + strings.Trim(p, "/")
	for _, pattern := range s.Except {
		pattern = "/" + strings.Trim(pattern, "/")
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(p, prefix) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Mode is a cache-backed maintenance switch.
type Mode struct {
	store cache.Cache[State]
	key   string
	now   func() time.Time
}

// Option configures a Mode.
type Option func(*Mode)

func WithKey(key string) Option {
	return func(m *Mode) { m.key = key }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mode) { m.now = now }
}

// New creates a Mode over store.
func New(store cache.Cache[State], opts ...Option) *Mode {
	m := &Mode{store: store, key: DefaultKey, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Down activates maintenance mode. The state is kept until Up is called.
func (m *Mode) Down(ctx context.Context, s State) error {
	if s.Time.IsZero() {
		s.Time = m.now()
	}
	if err := m.store.Set(ctx, m.key, s, -1); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// Up deactivates maintenance mode.
func (m *Mode) Up(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.key); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

// Active reports whether maintenance mode is on.
func (m *Mode) Active(ctx context.Context) (bool, error) {
	_, ok, err := m.State(ctx)
	return ok, err
}

// State returns the current state and whether maintenance mode is on.
func (m *Mode) State(ctx context.Context) (State, bool, error) {
	s, err := m.store.Get(ctx, m.key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return State{}, false, nil
	case err != nil:
		return State{}, false, errors.Join(ErrStore, err)
	}
	return s, true, nil
}
