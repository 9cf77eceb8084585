package state

import (
	"context"
	"sync"
	"time"
)

type memoryStore[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]Session[T]
	now      func() time.Time
}

// NewMemoryStore constructs an in-process Store. Sessions are lost on restart.
func NewMemoryStore[T any]() Store[T] {
	return &memoryStore[T]{
		sessions: make(map[int64]Session[T]),
		now:      time.Now,
	}
}

// Start overwrites the session for a user.
func (m *memoryStore[T]) Start(_ context.Context, userID int64, s Session[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
	return nil
}

// Get returns the session for a user if it exists.
func (m *memoryStore[T]) Get(_ context.Context, userID int64) (Session[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	return Session[T]{State: StateIdle}, ErrNoSession
}

// Save stores the session for a user.
func (m *memoryStore[T]) Save(_ context.Context, userID int64, s Session[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
	return nil
}

// Clear removes the entire session for a user.
func (m *memoryStore[T]) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
