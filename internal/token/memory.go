package token

import (
	"context"
	"math/big"
	"sync"

	id "safemint/pkg/domain"
)

// InMemoryLedger is a mutex-guarded token ledger. It is authoritative for the
// single-process deployment; balances and allowances live in maps and every
// mutation is atomic under the lock.
type InMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[id.Account]*big.Int
	allowances map[id.Account]map[id.Account]*big.Int
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		balances:   make(map[id.Account]*big.Int),
		allowances: make(map[id.Account]map[id.Account]*big.Int),
	}
}

// Mint credits an account out of thin air. Bootstrap and test helper; there is
// no corresponding burn.
func (l *InMemoryLedger) Mint(account id.Account, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, account id.Account) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return id.CopyAmount(l.balances[account]), nil
}

func (l *InMemoryLedger) Allowance(_ context.Context, owner, spender id.Account) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return id.CopyAmount(l.allowances[owner][spender]), nil
}

func (l *InMemoryLedger) Approve(_ context.Context, owner, spender id.Account, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	grants := l.allowances[owner]
	if grants == nil {
		grants = make(map[id.Account]*big.Int)
		l.allowances[owner] = grants
	}
	grants[spender] = id.CopyAmount(amount)
	return nil
}

func (l *InMemoryLedger) Transfer(_ context.Context, from, to id.Account, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *InMemoryLedger) TransferFrom(_ context.Context, owner, spender, to id.Account, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowances[owner][spender]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// move debits from and credits to. Caller holds the lock.
func (l *InMemoryLedger) move(from, to id.Account, amount *big.Int) error {
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

// credit adds amount to an account. Caller holds the lock.
func (l *InMemoryLedger) credit(account id.Account, amount *big.Int) {
	if current := l.balances[account]; current != nil {
		current.Add(current, amount)
		return
	}
	l.balances[account] = id.CopyAmount(amount)
}
