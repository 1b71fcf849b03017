package models

import (
	"math/big"

	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
)

// Status is the lifecycle position of a project.
//
// Transitions:
//   - Pending -> Passed | Rejected   (audit decision)
//   - Rejected -> Locked             (challenge)
//   - Locked -> Passed | Rejected    (arbitration)
//
// The registry writes only Pending, at creation. All other transitions are
// driven by the audit module.
type Status uint8

const (
	StatusPending  Status = iota // 0
	StatusPassed                 // 1
	StatusRejected               // 2
	StatusLocked                 // 3
)

var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusPassed:   "passed",
	StatusRejected: "rejected",
	StatusLocked:   "locked",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsDecision reports whether s is a legal audit or arbitration outcome.
func (s Status) IsDecision() bool {
	return s == StatusPassed || s == StatusRejected
}

// CanTransitionTo reports whether the module-driven state machine permits
// moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next.IsDecision()
	case StatusRejected:
		return next == StatusLocked
	case StatusLocked:
		return next.IsDecision()
	default:
		return false
	}
}

// Project is the aggregate the registry owns.
//
// Invariants:
//   - Name, Owner, and ProjectContract are each unique across live projects
//   - an owner holds at most one project at a time
//   - Name, Owner, ProjectContract, and ProjectFee are immutable after creation
//   - StartTime, EndTime, and IPFSAddress are editable only while Pending
//   - Status moves only through the state machine above
//
// StartTime and EndTime are opaque metadata; nothing enforces them as
// scheduling gates.
type Project struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Owner           id.Account `json:"owner"`
	ProjectContract id.Account `json:"project_contract"`
	StartTime       int64      `json:"start_time"`
	EndTime         int64      `json:"end_time"`
	IPFSAddress     string     `json:"ipfs_address"`
	ProjectFee      *big.Int   `json:"project_fee"`
	Status          Status     `json:"status"`
}

// NewProject validates and constructs a Pending project. The fee is captured
// from the price in force at submission time and never changes afterwards.
func NewProject(name string, owner, contract id.Account, startTime, endTime int64, ipfsAddress string, fee *big.Int) (*Project, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project name cannot be empty")
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project owner cannot be empty")
	}
	if contract.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "project contract cannot be empty")
	}
	return &Project{
		Name:            name,
		Owner:           owner,
		ProjectContract: contract,
		StartTime:       startTime,
		EndTime:         endTime,
		IPFSAddress:     ipfsAddress,
		ProjectFee:      id.CopyAmount(fee),
		Status:          StatusPending,
	}, nil
}

// Clone returns a deep copy so store reads never alias internal state.
func (p *Project) Clone() *Project {
	cp := *p
	cp.ProjectFee = id.CopyAmount(p.ProjectFee)
	return &cp
}

// CanEdit checks the Pending-only edit rule.
func (p *Project) CanEdit() error {
	if p.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "status error")
	}
	return nil
}

// ApplyEdit overwrites the three mutable fields in place. Call CanEdit first.
func (p *Project) ApplyEdit(startTime, endTime int64, ipfsAddress string) {
	p.StartTime = startTime
	p.EndTime = endTime
	p.IPFSAddress = ipfsAddress
}
