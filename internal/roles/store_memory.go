package roles

import (
	"context"
	"sync"

	id "safemint/pkg/domain"
)

// InMemoryStore keeps role grants in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[Role]map[id.Account]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[Role]map[id.Account]struct{})}
}

func (s *InMemoryStore) HasRole(_ context.Context, role Role, account id.Account) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[role][account]
	return ok, nil
}

func (s *InMemoryStore) GrantRole(_ context.Context, role Role, account id.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.grants[role]
	if members == nil {
		members = make(map[id.Account]struct{})
		s.grants[role] = members
	}
	members[account] = struct{}{}
	return nil
}

func (s *InMemoryStore) RevokeRole(_ context.Context, role Role, account id.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants[role], account)
	return nil
}
