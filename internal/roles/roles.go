// Package roles provides the role-grant collaborator: a mapping from role
// identifier to the set of authorized accounts, with admin-gated grant and
// revoke. The audit module reads it to gate audit and arbitrate calls.
package roles

import (
	"context"

	id "safemint/pkg/domain"
)

// Role identifies an authorization group.
type Role string

const (
	AuditorRole    Role = "AUDITOR_ROLE"
	ArbitratorRole Role = "ARBITRATOR_ROLE"
)

// Checker is the read side consumed by the audit module.
type Checker interface {
	HasRole(ctx context.Context, role Role, account id.Account) (bool, error)
}

// Store is the full collaborator surface, including the admin-only mutations.
type Store interface {
	Checker
	GrantRole(ctx context.Context, role Role, account id.Account) error
	RevokeRole(ctx context.Context, role Role, account id.Account) error
}
