package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    *keyedMutex
	closed   bool
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for activity stamps and expiry.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// Get returns a copy of the user's session, creating it on first contact.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return s.Clone(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[id]; !ok {
		s = New()
		s.UpdatedAt = m.now()
		m.sessions[id] = s
	}
	return s.Clone(), nil
}

// Update applies fn to the stored session under the table lock.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		s = New()
	}
	c := s.Clone()
	fn(c)
	c.UpdatedAt = m.now()
	m.sessions[id] = c
	return nil
}

// Reset clears the flow fields, keeping name and history.
func (m *MemoryStore) Reset(ctx context.Context, id string) error {
	return m.Update(ctx, id, (*Session).Reset)
}

// Clear removes the record entirely.
func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.sessions, id)
	return nil
}

// Lock serializes turns for id.
func (m *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	return m.locks.Lock(ctx, id)
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions untouched for longer than ttl and returns their
// ids. Sessions whose turn lock is currently held are skipped.
func (m *MemoryStore) Expire(_ context.Context, ttl time.Duration) ([]string, error) {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var expired []string
	for id, s := range m.sessions {
		if s.UpdatedAt.After(cutoff) || m.locks.held(id) {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, id)
	}
	return expired, nil
}

// Close drops every session. Later calls fail with ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = nil
	return nil
}
