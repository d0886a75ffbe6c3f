package session

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/keel/pkg/id"
)

// Reserved keys.
const (
	KeyCSRFToken   = "_token"
	KeyFlashNew    = "_flash.new"
	KeyFlashOld    = "_flash.old"
	KeyOldInput    = "_old_input"
	KeyErrors      = "errors"
	KeyPreviousURL = "_previous.url"
	KeyIntendedURL = "url.intended"
)

// Session is the server-side state tied to a session cookie.
// Values must survive a JSON round trip: stores persist them as JSON.
type Session struct {
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	UserID       *string        `json:"user_id,omitempty"`
	Values       map[string]any `json:"values"`
	ID           string         `json:"id"`
	Token        string         `json:"token"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`

	dirty bool
	isNew bool
}

// New creates a session. It starts dirty so the first save persists it.
func New(id, token string, expiresAt time.Time) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Token:        token,
		Values:       make(map[string]any),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		isNew:        true,
		dirty:        true,
	}
}

// Clone returns a copy that can be changed without affecting s. List
// values are copied; other values are shared.
func (s *Session) Clone() *Session {
	c := *s
	c.Values = make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		switch v := v.(type) {
		case []string:
			c.Values[k] = slices.Clone(v)
		case []any:
			c.Values[k] = slices.Clone(v)
		default:
			c.Values[k] = v
		}
	}
	if s.UserID != nil {
		uid := *s.UserID
		c.UserID = &uid
	}
	return &c
}

func (s *Session) IsAuthenticated() bool {
	return s.UserID != nil && *s.UserID != ""
}

// SetUserID binds the session to a user. An empty id logs the user out.
func (s *Session) SetUserID(userID string) {
	if userID == "" {
		s.UserID = nil
	} else {
		s.UserID = &userID
	}
	s.dirty = true
}

func (s *Session) Set(key string, val any) {
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	s.Values[key] = val
	s.dirty = true
}

func (s *Session) Get(key string) (any, bool) {
	val, ok := s.Values[key]
	return val, ok
}

func (s *Session) Has(key string) bool {
	_, ok := s.Values[key]
	return ok
}

// Delete removes key, marking the session dirty only if it existed.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; ok {
		delete(s.Values, key)
		s.dirty = true
	}
}

// Pull returns the value for key and removes it.
func (s *Session) Pull(key string) (any, bool) {
	val, ok := s.Get(key)
	s.Delete(key)
	return val, ok
}

// Flush removes every value, the CSRF token included.
func (s *Session) Flush() {
	if len(s.Values) > 0 {
		s.Values = make(map[string]any)
		s.dirty = true
	}
}

func (s *Session) IsDirty() bool { return s.dirty }
func (s *Session) MarkDirty() { s.dirty = true }
func (s *Session) ClearDirty() { s.dirty = false }
func (s *Session) IsNew() bool { return s.isNew }
func (s *Session) ClearNew() { s.isNew = false }

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// CSRFToken returns the session's CSRF token, creating it on first use.
func (s *Session) CSRFToken() string {
	if tok, ok := s.Values[KeyCSRFToken].(string); ok && tok != "" {
		return tok
	}
	return s.RegenerateCSRFToken()
}

// RegenerateCSRFToken replaces the CSRF token with a fresh 40-character one.
func (s *Session) RegenerateCSRFToken() string {
	tok := id.Token(30)
	s.Set(KeyCSRFToken, tok)
	return tok
}

// PreviousURL returns the last URL recorded by the session middleware.
func (s *Session) PreviousURL() string {
	u, _ := s.Values[KeyPreviousURL].(string)
	return u
}

func (s *Session) SetPreviousURL(u string) {
	if s.PreviousURL() != u {
		s.Set(KeyPreviousURL, u)
	}
}

// Value returns the value for key converted to T. Values decoded from a
// store (float64 numbers, map[string]any objects) are converted through
// JSON when a direct assertion fails.
func Value[T any](s *Session, key string) (T, error) {
	var zero T
	if s == nil {
		return zero, ErrNotFound
	}
	raw, ok := s.Get(key)
	if !ok {
		return zero, ErrNotFound
	}
	if typed, ok := raw.(T); ok {
		return typed, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("%w: %s", ErrTypeMismatch, key)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("%w: %s", ErrTypeMismatch, key)
	}
	return out, nil
}

// ValueOr is Value with a fallback.
func ValueOr[T any](s *Session, key string, def T) T {
	v, err := Value[T](s, key)
	if err != nil {
		return def
	}
	return v
}

// keys reads a string list value that may have been decoded as []any.
func (s *Session) keys(key string) []string {
	switch v := s.Values[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
