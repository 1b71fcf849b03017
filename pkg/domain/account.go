package domain

// Account identifies a party on the ledger: a project owner, an auditor, a
// challenger, an arbitrator, or a module custody account. Accounts are opaque
// strings; the ledger never derives meaning from their contents.
type Account string

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool { return a == "" }

func (a Account) String() string { return string(a) }
