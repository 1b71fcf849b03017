// Package events carries the observable side effects of ledger mutations.
// Every successful registry or audit operation emits exactly one event;
// external indexers consume them to build display state.
package events

import (
	"context"
	"time"

	id "safemint/pkg/domain"
)

// Type names a ledger mutation.
type Type string

const (
	TypeProjectCreated      Type = "project.created"
	TypeProjectEdited       Type = "project.edited"
	TypeAuditDecided        Type = "audit.decided"
	TypeChallengeRaised     Type = "challenge.raised"
	TypeArbitrationResolved Type = "arbitration.resolved"
	TypeRewardPaid          Type = "reward.paid"
)

// Event is emitted from domain logic to capture a ledger mutation. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	Project   string     `json:"project"`
	ProjectID uint64     `json:"project_id,omitempty"`
	Actor     id.Account `json:"actor,omitempty"`
	// Amount is the fee or payout in base units, rendered as a decimal string.
	Amount    string    `json:"amount,omitempty"`
	Comments  string    `json:"comments,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists events for later retrieval, keyed by project name.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProject(ctx context.Context, project string) ([]Event, error)
}

// Sink receives a copy of every published event, typically a message broker.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
