package domain

import "math/big"

// Token amounts are 18-decimal fixed-point integers, so they are carried as
// *big.Int throughout. Helpers here keep construction and copying uniform;
// callers must treat amounts as immutable and copy before mutating.

// decimals is the fixed-point scale of the governance token.
const decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)

// Units returns n whole tokens expressed in the 18-decimal base unit.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// ZeroAmount returns a fresh zero amount.
func ZeroAmount() *big.Int { return new(big.Int) }

// CopyAmount returns a defensive copy of v, treating nil as zero.
func CopyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// ParseAmount parses a base-10 amount in base units. Returns false on malformed input.
func ParseAmount(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// AmountString renders v in base units, treating nil as zero.
func AmountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
