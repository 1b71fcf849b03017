// Package store persists projects and their status partitions.
package store

import (
	"context"
	"fmt"
	"sync"

	"safemint/internal/registry/models"
	id "safemint/pkg/domain"
	"safemint/pkg/platform/sentinel"
)

// Identity errors distinguish which uniqueness rule a create violated. Each
// wraps sentinel.ErrAlreadyUsed so callers can also match the broader fact.
var (
	ErrOwnerTaken    = fmt.Errorf("owner: %w", sentinel.ErrAlreadyUsed)
	ErrContractTaken = fmt.Errorf("contract: %w", sentinel.ErrAlreadyUsed)
	ErrNameTaken     = fmt.Errorf("name: %w", sentinel.ErrAlreadyUsed)
)

// InMemory is the authoritative project store for the serialized core: an
// arena keyed by id plus one insertion-ordered index list per status
// partition. Partition membership changes atomically with the status write.
//
// Removal from a partition list preserves the order of the remaining entries,
// so the paginated reads always return submission order.
type InMemory struct {
	mu         sync.RWMutex
	nextID     uint64
	arena      map[uint64]*models.Project
	byName     map[string]uint64
	byOwner    map[string]uint64
	byContract map[string]uint64
	partitions map[models.Status][]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		nextID:     1,
		arena:      make(map[uint64]*models.Project),
		byName:     make(map[string]uint64),
		byOwner:    make(map[string]uint64),
		byContract: make(map[string]uint64),
		partitions: make(map[models.Status][]uint64),
	}
}

// Create assigns the next id and stores the project, enforcing the three
// uniqueness rules. Checked in owner, contract, name order so callers surface
// the same failure a sequenced duplicate submission would see first.
func (s *InMemory) Create(_ context.Context, p *models.Project) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byOwner[p.Owner.String()]; ok {
		return 0, ErrOwnerTaken
	}
	if _, ok := s.byContract[p.ProjectContract.String()]; ok {
		return 0, ErrContractTaken
	}
	if _, ok := s.byName[p.Name]; ok {
		return 0, ErrNameTaken
	}

	p.ID = s.nextID
	s.nextID++

	stored := p.Clone()
	s.arena[stored.ID] = stored
	s.byName[stored.Name] = stored.ID
	s.byOwner[stored.Owner.String()] = stored.ID
	s.byContract[stored.ProjectContract.String()] = stored.ID
	s.partitions[stored.Status] = append(s.partitions[stored.Status], stored.ID)
	return stored.ID, nil
}

// CheckAvailable reports which uniqueness rule, if any, a create with these
// identities would violate. Checked in owner, contract, name order to match
// Create.
func (s *InMemory) CheckAvailable(_ context.Context, name string, owner, contract id.Account) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byOwner[owner.String()]; ok {
		return ErrOwnerTaken
	}
	if _, ok := s.byContract[contract.String()]; ok {
		return ErrContractTaken
	}
	if _, ok := s.byName[name]; ok {
		return ErrNameTaken
	}
	return nil
}

// FindByID returns a copy of the project or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, projectID uint64) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.arena[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// FindByName returns a copy of the project or sentinel.ErrNotFound.
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projectID, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.arena[projectID].Clone(), nil
}

// IDByName resolves a project name to its id.
func (s *InMemory) IDByName(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projectID, ok := s.byName[name]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return projectID, nil
}

// Execute atomically validates and mutates a project. The lock is held across
// both callbacks, and a status change moves the project between partitions in
// the same critical section as the field write.
func (s *InMemory) Execute(_ context.Context, name string, validate func(*models.Project) error, mutate func(*models.Project)) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectID, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.arena[projectID]

	if err := validate(p); err != nil {
		return nil, err
	}

	before := p.Status
	mutate(p)
	if p.Status != before {
		s.removeFromPartition(before, projectID)
		s.partitions[p.Status] = append(s.partitions[p.Status], projectID)
	}
	return p.Clone(), nil
}

// ListByStatus returns one page of the partition in insertion order. An offset
// beyond the partition yields an empty page, not an error.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status, offset, limit int) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.partitions[status]
	if offset < 0 || offset >= len(ids) || limit <= 0 {
		return []*models.Project{}, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	page := make([]*models.Project, 0, end-offset)
	for _, projectID := range ids[offset:end] {
		page = append(page, s.arena[projectID].Clone())
	}
	return page, nil
}

// CountByStatus returns the partition size.
func (s *InMemory) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions[status]), nil
}

// removeFromPartition deletes projectID from a partition list, keeping the
// remaining entries in insertion order. Caller holds the lock.
func (s *InMemory) removeFromPartition(status models.Status, projectID uint64) {
	ids := s.partitions[status]
	for i, existing := range ids {
		if existing == projectID {
			s.partitions[status] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}
