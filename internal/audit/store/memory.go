// Package store persists dispute fee records keyed by project id.
package store

import (
	"context"
	"sync"

	"safemint/internal/audit/models"
	"safemint/pkg/platform/sentinel"
)

// InMemory is the authoritative fee-record store for the serialized core.
type InMemory struct {
	mu      sync.RWMutex
	records map[uint64]*models.FeeRecord
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uint64]*models.FeeRecord)}
}

// Save stores or overwrites the record for its project. Overwrite is the
// intended re-audit behavior, not an error.
func (s *InMemory) Save(_ context.Context, record *models.FeeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ProjectID] = record.Clone()
	return nil
}

// Find returns a copy of the record or sentinel.ErrNotFound.
func (s *InMemory) Find(_ context.Context, projectID uint64) (*models.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

// Execute atomically validates and mutates a record, holding the lock across
// both callbacks.
func (s *InMemory) Execute(_ context.Context, projectID uint64, validate func(*models.FeeRecord) error, mutate func(*models.FeeRecord)) (*models.FeeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(record); err != nil {
		return nil, err
	}
	mutate(record)
	return record.Clone(), nil
}
