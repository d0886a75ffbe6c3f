package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	// Get looks a session up by cookie token. It returns ErrNotFound or
	// ErrExpired.
	Get(ctx context.Context, token string) (*Session, error)
	// Update saves s, including a rotated token.
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// DeleteByUserID logs a user out everywhere.
	DeleteByUserID(ctx context.Context, userID string) error
}

// Pruner is implemented by stores that need explicit garbage collection of
// expired sessions.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

func encode(s *Session) ([]byte, error) { return json.Marshal(s) }

func decode(data []byte) (*Session, error) {
	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.Values == nil {
		s.Values = make(map[string]any)
	}
	return s, nil
}

// MemoryStore keeps sessions in process memory. Sessions are stored
// encoded, so values behave as they would with a remote store.
type MemoryStore struct {
	data   map[string][]byte // id -> encoded session
	tokens map[string]string // token -> id
	now    func() time.Time
	mu     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string][]byte),
		tokens: make(map[string]string),
		now:    time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = data
	m.tokens[s.Token] = s.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	id, ok := m.tokens[token]
	data := m.data[id]
	m.mu.RUnlock()
	if !ok || data == nil {
		return nil, ErrNotFound
	}

	s, err := decode(data)
	if err != nil {
		return nil, err
	}
	if m.now().After(s.ExpiresAt) {
		return nil, ErrExpired
	}
	return s, nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.data[s.ID]
	if !ok {
		return ErrNotFound
	}
	if old, err := decode(prev); err == nil && old.Token != s.Token {
		delete(m.tokens, old.Token)
	}
	m.data[s.ID] = data
	m.tokens[s.Token] = s.ID
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemoryStore) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, data := range m.data {
		if s, err := decode(data); err == nil && s.UserID != nil && *s.UserID == userID {
			m.deleteLocked(id)
		}
	}
	return nil
}

// Prune removes expired sessions.
func (m *MemoryStore) Prune(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.now()
	for id, data := range m.data {
		if s, err := decode(data); err != nil || now.After(s.ExpiresAt) {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) deleteLocked(id string) {
	if s, err := decode(m.data[id]); err == nil {
		delete(m.tokens, s.Token)
	}
	delete(m.data, id)
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pruner = (*MemoryStore)(nil)
)
