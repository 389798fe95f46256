package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]Tenant)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) Insert(_ context.Context, t *Tenant) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
	}
	now := time.Now().UTC()
	stored := *t
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.tenants[t.ID] = stored
	return &stored, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, upd Update) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	upd.Apply(&t)
	t.UpdatedAt = time.Now().UTC()
	s.tenants[id] = t
	return &t, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return ErrNotFound
	}
	delete(s.tenants, id)
	return nil
}
