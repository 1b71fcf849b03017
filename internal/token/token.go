// Package token provides the fungible-token collaborator: standard
// balance/allowance/transfer semantics over 18-decimal fixed-point amounts.
// The registry and audit modules depend on it for all fee movement and never
// touch its internal ledger directly.
package token

import (
	"context"
	"errors"
	"math/big"

	id "safemint/pkg/domain"
)

// Token-level errors are surfaced verbatim to callers of the ledger modules,
// never wrapped, so clients see the same failure the token itself reports.
var (
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
)

// Ledger is the token interface the registry and audit modules consume.
//
// TransferFrom moves amount from owner to to, spending spender's allowance;
// it is the pull-payment primitive: callers pre-approve, modules pull.
type Ledger interface {
	BalanceOf(ctx context.Context, account id.Account) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender id.Account) (*big.Int, error)
	Approve(ctx context.Context, owner, spender id.Account, amount *big.Int) error
	Transfer(ctx context.Context, from, to id.Account, amount *big.Int) error
	TransferFrom(ctx context.Context, owner, spender, to id.Account, amount *big.Int) error
}
