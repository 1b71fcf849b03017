// Package core provides the single-writer execution model for the ledger.
package core

import "sync"

// Sequencer serializes every public ledger operation into one total order.
// Registry and audit mutations share a Sequencer so concurrent submissions for
// the same resource are resolved purely by sequence position: whichever
// operation enters first wins, and the second observes the updated state.
//
// Operations validate before they mutate, so a failed operation leaves no
// partial state behind.
type Sequencer struct {
	mu sync.Mutex
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Do runs fn while holding the ledger write lock.
func (s *Sequencer) Do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
