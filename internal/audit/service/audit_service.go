// Package service implements the Audit & Arbitration module: role-gated
// decisions, fee escrow, the challenge/arbitration state machine, and reward
// settlement. The registry stays the single source of truth for project
// existence and status; this module owns the fee records and drives every
// transition past Pending.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	auditmetrics "safemint/internal/audit/metrics"
	"safemint/internal/audit/models"
	"safemint/internal/core"
	regmodels "safemint/internal/registry/models"
	"safemint/internal/roles"
	"safemint/internal/token"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/events"
	"safemint/pkg/platform/sentinel"
	"safemint/pkg/requestcontext"
)

// Registry is the slice of the registry this module calls back into. The
// callbacks run inside this module's sequenced step, so they must not take
// the sequencer themselves.
type Registry interface {
	GetProject(ctx context.Context, name string) (*regmodels.Project, error)
	Transition(ctx context.Context, name string, next regmodels.Status) (*regmodels.Project, error)
	ReleaseProjectFee(ctx context.Context, projectID uint64, to id.Account) (*big.Int, error)
}

// RecordStore is the persistence surface for dispute fee records.
type RecordStore interface {
	Save(ctx context.Context, record *models.FeeRecord) error
	Find(ctx context.Context, projectID uint64) (*models.FeeRecord, error)
	Execute(ctx context.Context, projectID uint64, validate func(*models.FeeRecord) error, mutate func(*models.FeeRecord)) (*models.FeeRecord, error)
}

// EventPublisher receives one event per successful mutation.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service orchestrates audits, challenges, arbitration, and reward claims.
// It shares the registry's sequencer so every dispute operation is one atomic
// step in the same total order as project registration.
type Service struct {
	registry Registry
	records  RecordStore
	tokens   token.Ledger
	roles    roles.Checker
	custody  id.Account
	seq      *core.Sequencer

	publisher EventPublisher
	metrics   *auditmetrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	priceMu        sync.RWMutex
	auditPrice     *big.Int
	challengePrice *big.Int
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the audit service. custody is the escrow account audit and
// challenge fees are pulled into; seq must be the sequencer shared with the
// registry so cross-module operations stay totally ordered.
func New(registry Registry, records RecordStore, tokens token.Ledger, roleChecker roles.Checker, custody id.Account, auditPrice, challengePrice *big.Int, seq *core.Sequencer, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if records == nil {
		return nil, errors.New("fee record store is required")
	}
	if tokens == nil {
		return nil, errors.New("token ledger is required")
	}
	if roleChecker == nil {
		return nil, errors.New("role checker is required")
	}
	if seq == nil {
		return nil, errors.New("shared sequencer is required")
	}

	svc := &Service{
		registry:       registry,
		records:        records,
		tokens:         tokens,
		roles:          roleChecker,
		custody:        custody,
		seq:            seq,
		tracer:         otel.Tracer("safemint/audit"),
		auditPrice:     id.CopyAmount(auditPrice),
		challengePrice: id.CopyAmount(challengePrice),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Audit records an auditor's decision on a Pending project. The audit fee is
// pulled from the caller into custody, the fee record is created or
// overwritten, and the project moves to the decided status.
func (s *Service) Audit(ctx context.Context, caller id.Account, name string, comments string, decision regmodels.Status) (*models.FeeRecord, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Audit")
	defer span.End()

	if err := s.requireRole(ctx, roles.AuditorRole, caller, "sender doesn't have auditor role"); err != nil {
		return nil, err
	}
	if !decision.IsDecision() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status error")
	}

	price := s.AuditPrice()
	var record *models.FeeRecord
	err := s.seq.Do(func() error {
		project, err := s.findProject(ctx, name)
		if err != nil {
			return err
		}
		if project.Status != regmodels.StatusPending {
			return projectStatusError(project.Status)
		}

		if err := s.tokens.TransferFrom(ctx, caller, s.custody, s.custody, price); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
		}

		record = models.NewFeeRecord(project.ID, caller, price)
		if err := s.records.Save(ctx, record); err != nil {
			_ = s.tokens.Transfer(ctx, s.custody, caller, price)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fee record")
		}

		if _, err := s.registry.Transition(ctx, name, decision); err != nil {
			_ = s.tokens.Transfer(ctx, s.custody, caller, price)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeAuditDecided,
		Project:   name,
		ProjectID: record.ProjectID,
		Actor:     caller,
		Amount:    id.AmountString(price),
		Comments:  comments,
		Decision:  decision.String(),
	})
	if s.metrics != nil {
		s.metrics.IncrementAuditsDecided(decision.String())
	}
	s.logger.InfoContext(ctx, "audit decided",
		"request_id", requestcontext.RequestID(ctx),
		"project", name,
		"auditor", caller,
		"decision", decision.String(),
		"fee", id.AmountString(price),
	)
	return record, nil
}

// Challenge escrows the challenge fee against a Rejected project and locks it
// pending arbitration. Open to any caller. A dispute is one-shot: once an
// arbitrator has ruled, the record's fees are owed to the auditor and the
// rejection can no longer be challenged.
func (s *Service) Challenge(ctx context.Context, caller id.Account, name string, comments string) (*models.FeeRecord, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Challenge")
	defer span.End()

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}

	price := s.ChallengePrice()
	var record *models.FeeRecord
	err := s.seq.Do(func() error {
		project, err := s.findProject(ctx, name)
		if err != nil {
			return err
		}
		if project.Status != regmodels.StatusRejected {
			return projectStatusError(project.Status)
		}

		// The record exists for every Rejected project: only Audit writes that
		// status, and it saves the record first. Check it before pulling the
		// fee so a settled dispute refuses the challenge with nothing escrowed.
		existing, err := s.records.Find(ctx, project.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee record")
		}
		if existing.Arbitrated {
			return dErrors.New(dErrors.CodeConflict, "project already arbitrated")
		}

		if err := s.tokens.TransferFrom(ctx, caller, s.custody, s.custody, price); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
		}

		record, err = s.records.Execute(ctx, project.ID,
			func(*models.FeeRecord) error { return nil },
			func(r *models.FeeRecord) {
				r.Challenger = caller
				r.ChallengeFee = id.CopyAmount(price)
			},
		)
		if err != nil {
			_ = s.tokens.Transfer(ctx, s.custody, caller, price)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record challenge")
		}

		if _, err := s.registry.Transition(ctx, name, regmodels.StatusLocked); err != nil {
			_ = s.tokens.Transfer(ctx, s.custody, caller, price)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeChallengeRaised,
		Project:   name,
		ProjectID: record.ProjectID,
		Actor:     caller,
		Amount:    id.AmountString(price),
		Comments:  comments,
	})
	if s.metrics != nil {
		s.metrics.IncrementChallengesRaised()
	}
	s.logger.InfoContext(ctx, "challenge raised",
		"request_id", requestcontext.RequestID(ctx),
		"project", name,
		"challenger", caller,
		"fee", id.AmountString(price),
	)
	return record, nil
}

// Arbitrate resolves a Locked project to the ruled status. This is the only
// path out of Locked.
func (s *Service) Arbitrate(ctx context.Context, caller id.Account, name string, decision regmodels.Status) (*models.FeeRecord, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Arbitrate")
	defer span.End()

	if err := s.requireRole(ctx, roles.ArbitratorRole, caller, "sender doesn't have arbitrator role"); err != nil {
		return nil, err
	}
	if !decision.IsDecision() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status error")
	}

	var record *models.FeeRecord
	err := s.seq.Do(func() error {
		project, err := s.findProject(ctx, name)
		if err != nil {
			return err
		}
		if project.Status != regmodels.StatusLocked {
			return dErrors.Newf(dErrors.CodeConflict,
				"project not under challenge (current=%d)", project.Status)
		}

		record, err = s.records.Execute(ctx, project.ID,
			func(*models.FeeRecord) error { return nil },
			func(r *models.FeeRecord) {
				r.Arbitrated = true
			},
		)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record arbitration")
		}

		_, err = s.registry.Transition(ctx, name, decision)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeArbitrationResolved,
		Project:   name,
		ProjectID: record.ProjectID,
		Actor:     caller,
		Decision:  decision.String(),
	})
	if s.metrics != nil {
		s.metrics.IncrementArbitrationsResolved(decision.String())
	}
	s.logger.InfoContext(ctx, "arbitration resolved",
		"request_id", requestcontext.RequestID(ctx),
		"project", name,
		"arbitrator", caller,
		"decision", decision.String(),
	)
	return record, nil
}

// ClaimAuditReward pays the pooled dispute fees to the recorded auditor:
// the project's escrowed submission fee, the audit fee, and the challenge
// fee. Exactly once per dispute; only after arbitration; only the auditor.
func (s *Service) ClaimAuditReward(ctx context.Context, caller id.Account, name string) (*big.Int, error) {
	ctx, span := s.tracer.Start(ctx, "audit.ClaimAuditReward")
	defer span.End()

	var (
		total     *big.Int
		projectID uint64
	)
	err := s.seq.Do(func() error {
		project, err := s.findProject(ctx, name)
		if err != nil {
			return err
		}
		projectID = project.ID

		record, err := s.records.Find(ctx, project.ID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeConflict, "project not arbitrated")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee record")
		}

		if record.Auditor != caller {
			return dErrors.New(dErrors.CodeForbidden, "caller is not record auditor")
		}
		if !record.Arbitrated {
			return dErrors.New(dErrors.CodeConflict, "project not arbitrated")
		}
		if record.Claimed {
			return dErrors.New(dErrors.CodeConflict, "reward already claimed")
		}

		// Mark the record claimed before any funds move. A failed transfer
		// then refunds and reopens the claim; it can never leave money out
		// with the claim still open, so a retry cannot pay twice.
		if _, err := s.records.Execute(ctx, project.ID,
			func(r *models.FeeRecord) error {
				if r.Claimed {
					return dErrors.New(dErrors.CodeConflict, "reward already claimed")
				}
				return nil
			},
			func(r *models.FeeRecord) {
				r.Claimed = true
			},
		); err != nil {
			return err
		}

		escrowed := new(big.Int).Add(id.CopyAmount(record.Value), id.CopyAmount(record.ChallengeFee))
		if err := s.tokens.Transfer(ctx, s.custody, caller, escrowed); err != nil {
			s.reopenClaim(ctx, project.ID)
			return err
		}

		projectFee, err := s.registry.ReleaseProjectFee(ctx, project.ID, caller)
		if err != nil {
			_ = s.tokens.Transfer(ctx, caller, s.custody, escrowed)
			s.reopenClaim(ctx, project.ID)
			return err
		}

		total = record.PooledReward(projectFee)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeRewardPaid,
		Project:   name,
		ProjectID: projectID,
		Actor:     caller,
		Amount:    id.AmountString(total),
	})
	if s.metrics != nil {
		s.metrics.IncrementRewardsPaid()
	}
	s.logger.InfoContext(ctx, "reward paid",
		"request_id", requestcontext.RequestID(ctx),
		"project", name,
		"auditor", caller,
		"amount", id.AmountString(total),
	)
	return total, nil
}

// FeeRecord returns the dispute record for a project id.
func (s *Service) FeeRecord(ctx context.Context, projectID uint64) (*models.FeeRecord, error) {
	record, err := s.records.Find(ctx, projectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "fee record not exist")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AuditPrice returns the fee charged by future Audit calls.
func (s *Service) AuditPrice() *big.Int {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	return id.CopyAmount(s.auditPrice)
}

// ChallengePrice returns the fee charged by future Challenge calls.
func (s *Service) ChallengePrice() *big.Int {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	return id.CopyAmount(s.challengePrice)
}

// SetAuditPrice updates the audit fee schedule. Privileged; future calls only.
func (s *Service) SetAuditPrice(ctx context.Context, price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "price must be a non-negative amount")
	}
	s.priceMu.Lock()
	s.auditPrice = id.CopyAmount(price)
	s.priceMu.Unlock()

	s.logger.InfoContext(ctx, "audit price updated",
		"request_id", requestcontext.RequestID(ctx),
		"price", id.AmountString(price),
	)
	return nil
}

// SetChallengePrice updates the challenge fee schedule. Privileged; future
// calls only.
func (s *Service) SetChallengePrice(ctx context.Context, price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "price must be a non-negative amount")
	}
	s.priceMu.Lock()
	s.challengePrice = id.CopyAmount(price)
	s.priceMu.Unlock()

	s.logger.InfoContext(ctx, "challenge price updated",
		"request_id", requestcontext.RequestID(ctx),
		"price", id.AmountString(price),
	)
	return nil
}

// Custody returns the audit escrow account.
func (s *Service) Custody() id.Account { return s.custody }

func (s *Service) requireRole(ctx context.Context, role roles.Role, account id.Account, denied string) error {
	ok, err := s.roles.HasRole(ctx, role, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "role check failed")
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, denied)
	}
	return nil
}

// reopenClaim clears the Claimed flag after a settlement transfer failed and
// its funds were returned. Runs inside the claim's sequenced step.
func (s *Service) reopenClaim(ctx context.Context, projectID uint64) {
	if _, err := s.records.Execute(ctx, projectID,
		func(*models.FeeRecord) error { return nil },
		func(r *models.FeeRecord) {
			r.Claimed = false
		},
	); err != nil {
		s.logger.ErrorContext(ctx, "failed to reopen claim after refund",
			"project_id", projectID,
			"error", err,
		)
	}
}

func (s *Service) findProject(ctx context.Context, name string) (*regmodels.Project, error) {
	project, err := s.registry.GetProject(ctx, name)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "project not exist")
		}
		return nil, err
	}
	return project, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit ledger event",
			"type", event.Type,
			"project", event.Project,
			"error", err,
		)
	}
}

func projectStatusError(current regmodels.Status) error {
	return dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("project status error (current=%d)", current))
}
