// Package models holds the dispute records the audit module owns.
package models

import (
	"math/big"

	id "safemint/pkg/domain"
)

// FeeRecord tracks the escrowed fees of one project's dispute, keyed by
// project id. Created on the first audit and overwritten on re-audit. The
// challenge and arbitration fields accumulate as the dispute progresses;
// Claimed flips exactly once, when the reward is paid out.
type FeeRecord struct {
	ProjectID    uint64     `json:"project_id"`
	Auditor      id.Account `json:"auditor"`
	Value        *big.Int   `json:"value"`
	Challenger   id.Account `json:"challenger,omitempty"`
	ChallengeFee *big.Int   `json:"challenge_fee,omitempty"`
	Arbitrated   bool       `json:"arbitrated"`
	Claimed      bool       `json:"claimed"`
}

// NewFeeRecord starts a fresh dispute record for an audit decision.
func NewFeeRecord(projectID uint64, auditor id.Account, value *big.Int) *FeeRecord {
	return &FeeRecord{
		ProjectID: projectID,
		Auditor:   auditor,
		Value:     id.CopyAmount(value),
	}
}

// Clone returns a deep copy so store reads never alias internal state.
func (r *FeeRecord) Clone() *FeeRecord {
	cp := *r
	cp.Value = id.CopyAmount(r.Value)
	cp.ChallengeFee = id.CopyAmount(r.ChallengeFee)
	return &cp
}

// PooledReward is the total payout for a settled dispute: the project's
// escrowed submission fee plus the audit and challenge fees.
func (r *FeeRecord) PooledReward(projectFee *big.Int) *big.Int {
	total := id.CopyAmount(projectFee)
	if r.Value != nil {
		total.Add(total, r.Value)
	}
	if r.ChallengeFee != nil {
		total.Add(total, r.ChallengeFee)
	}
	return total
}
