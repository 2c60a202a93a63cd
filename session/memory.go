package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return clone(m.current), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = clone(s)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Token(ctx context.Context) (string, error) {
	return tokenFromLoad(m.Load(ctx))
}

func clone(s *Session) *Session {
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}
