package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	expiresAt time.Time
	value     V
	key       string
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process cache with TTL expiration and optional LRU
// eviction. The front of the eviction list holds the most recently used
// entry.
type Memory[V any] struct {
	items    map[string]*list.Element
	eviction *list.List
	opts     *options
	onEvict  func(key string, value V)
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
}

// NewMemory creates an in-memory cache.
//
//	c := cache.NewMemory[string](cache.WithDefaultTTL(5 * time.Minute))
//	defer c.Close()
func NewMemory[V any](opts ...Option) *Memory[V] {
	m := &Memory[V]{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		opts:     newOptions(opts),
		done:     make(chan struct{}),
	}
	if m.opts.cleanupInterval > 0 {
		go m.janitor()
	}
	return m
}

// OnEvict registers a callback for entries removed by eviction, expiry,
// Delete or Clear.
func (m *Memory[V]) OnEvict(fn func(key string, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	m.eviction.MoveToFront(m.items[key])
	return e.value, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.store(key, value, ttl)
	return nil
}

func (m *Memory[V]) Add(_ context.Context, key string, value V, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.store(key, value, ttl)
	return true, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	return nil
}

func (m *Memory[V]) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}

func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for elem := m.eviction.Front(); elem != nil; {
		next := elem.Next()
		m.remove(elem)
		elem = next
	}
	return nil
}

// Close stops the janitor. It is safe to call more than once.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until
// they are swept.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// lookup returns a live entry, dropping it when expired. Caller holds mu.
func (m *Memory[V]) lookup(key string) (*entry[V], bool) {
	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry[V])
	if e.expired(m.opts.now()) {
		m.remove(elem)
		return nil, false
	}
	return e, true
}

// store inserts or replaces key. Caller holds mu.
func (m *Memory[V]) store(key string, value V, ttl time.Duration) {
	expiresAt := expiry(ttl, m.opts.defaultTTL, m.opts.now())

	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value, e.expiresAt = value, expiresAt
		m.eviction.MoveToFront(elem)
		return
	}

	if m.opts.maxEntries > 0 && len(m.items) >= m.opts.maxEntries {
		if oldest := m.eviction.Back(); oldest != nil {
			m.remove(oldest)
		}
	}
	m.items[key] = m.eviction.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

func (m *Memory[V]) remove(elem *list.Element) {
	m.eviction.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(m.items, e.key)
	if m.onEvict != nil {
		m.onEvict(e.key, e.value)
	}
}

func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory[V]) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	for elem := m.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry[V]).expired(now) {
			m.remove(elem)
		}
		elem = prev
	}
}

var _ Cache[any] = (*Memory[any])(nil)
