// Package service implements the Registry: project lifecycle, uniqueness, and
// status partitioning, with the submission fee escrowed through the token
// collaborator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"safemint/internal/core"
	registrymetrics "safemint/internal/registry/metrics"
	"safemint/internal/registry/models"
	"safemint/internal/registry/store"
	"safemint/internal/token"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/events"
	"safemint/pkg/platform/sentinel"
	"safemint/pkg/requestcontext"
)

// ProjectStore is the persistence surface the registry requires.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) (uint64, error)
	CheckAvailable(ctx context.Context, name string, owner, contract id.Account) error
	FindByID(ctx context.Context, projectID uint64) (*models.Project, error)
	FindByName(ctx context.Context, name string) (*models.Project, error)
	IDByName(ctx context.Context, name string) (uint64, error)
	Execute(ctx context.Context, name string, validate func(*models.Project) error, mutate func(*models.Project)) (*models.Project, error)
	ListByStatus(ctx context.Context, status models.Status, offset, limit int) ([]*models.Project, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)
}

// EventPublisher receives one event per successful mutation.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service orchestrates project registration and retrieval. All mutations run
// inside the shared sequencer, so each public operation is a single atomic
// step in the ledger's total order.
type Service struct {
	projects ProjectStore
	tokens   token.Ledger
	custody  id.Account
	seq      *core.Sequencer

	publisher EventPublisher
	metrics   *registrymetrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	priceMu      sync.RWMutex
	projectPrice *big.Int
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the registry service. custody is the account escrowed
// project fees are pulled into; projectPrice is the initial fee schedule.
func New(projects ProjectStore, tokens token.Ledger, custody id.Account, projectPrice *big.Int, seq *core.Sequencer, opts ...Option) (*Service, error) {
	if projects == nil {
		return nil, errors.New("project store is required")
	}
	if tokens == nil {
		return nil, errors.New("token ledger is required")
	}
	if seq == nil {
		seq = core.NewSequencer()
	}

	svc := &Service{
		projects:     projects,
		tokens:       tokens,
		custody:      custody,
		seq:          seq,
		tracer:       otel.Tracer("safemint/registry"),
		projectPrice: id.CopyAmount(projectPrice),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// SaveProjectInput carries the caller-supplied project fields.
type SaveProjectInput struct {
	Name            string
	ProjectContract id.Account
	StartTime       int64
	EndTime         int64
	IPFSAddress     string
}

// SaveProject registers a project for the calling owner. The current project
// price is pulled from the caller's pre-approved allowance into custody, and
// the project enters the Pending partition with that fee captured forever.
func (s *Service) SaveProject(ctx context.Context, caller id.Account, input SaveProjectInput) (*models.Project, error) {
	ctx, span := s.tracer.Start(ctx, "registry.SaveProject")
	defer span.End()
	start := time.Now()

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller account is required")
	}

	price := s.ProjectPrice()
	project, err := models.NewProject(input.Name, caller, input.ProjectContract, input.StartTime, input.EndTime, input.IPFSAddress, price)
	if err != nil {
		return nil, err
	}

	err = s.seq.Do(func() error {
		if err := s.projects.CheckAvailable(ctx, project.Name, project.Owner, project.ProjectContract); err != nil {
			return mapIdentityErr(err)
		}

		// Pull-payment: the owner pre-approved custody as spender, the
		// registry pulls. The token's own message surfaces verbatim.
		if err := s.tokens.TransferFrom(ctx, caller, s.custody, s.custody, price); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, err.Error())
		}

		if _, err := s.projects.Create(ctx, project); err != nil {
			// Uniqueness was pre-checked inside the same sequenced step, so
			// this is an infrastructure failure; give the fee back.
			_ = s.tokens.Transfer(ctx, s.custody, caller, price)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store project")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeProjectCreated,
		Project:   project.Name,
		ProjectID: project.ID,
		Actor:     caller,
		Amount:    id.AmountString(project.ProjectFee),
	})
	if s.metrics != nil {
		s.metrics.IncrementProjectsSaved()
		s.metrics.ObserveSaveProject(start)
	}
	s.logger.InfoContext(ctx, "project saved",
		"request_id", requestcontext.RequestID(ctx),
		"project", project.Name,
		"project_id", project.ID,
		"owner", caller,
		"fee", id.AmountString(project.ProjectFee),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return project, nil
}

// EditProjectInput carries the mutable project fields.
type EditProjectInput struct {
	Name        string
	StartTime   int64
	EndTime     int64
	IPFSAddress string
}

// EditProject overwrites the mutable fields of a Pending project owned by the
// caller. No fee is charged or refunded, and the status never changes.
func (s *Service) EditProject(ctx context.Context, caller id.Account, input EditProjectInput) (*models.Project, error) {
	ctx, span := s.tracer.Start(ctx, "registry.EditProject")
	defer span.End()

	var project *models.Project
	err := s.seq.Do(func() error {
		p, err := s.projects.Execute(ctx, input.Name,
			func(p *models.Project) error {
				if p.Owner != caller {
					return dErrors.New(dErrors.CodeForbidden, "caller is not project owner")
				}
				if err := p.CanEdit(); err != nil {
					return dErrors.New(dErrors.CodeConflict, "status error")
				}
				return nil
			},
			func(p *models.Project) {
				p.ApplyEdit(input.StartTime, input.EndTime, input.IPFSAddress)
			},
		)
		if err != nil {
			return wrapProjectErr(err)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeProjectEdited,
		Project:   project.Name,
		ProjectID: project.ID,
		Actor:     caller,
	})
	if s.metrics != nil {
		s.metrics.IncrementProjectsEdited()
	}
	s.logger.InfoContext(ctx, "project edited",
		"request_id", requestcontext.RequestID(ctx),
		"project", project.Name,
		"owner", caller,
	)
	return project, nil
}

// ProjectID resolves a project name to its id.
func (s *Service) ProjectID(ctx context.Context, name string) (uint64, error) {
	projectID, err := s.projects.IDByName(ctx, name)
	if err != nil {
		return 0, wrapProjectErr(err)
	}
	return projectID, nil
}

// GetProject retrieves a project by name.
func (s *Service) GetProject(ctx context.Context, name string) (*models.Project, error) {
	project, err := s.projects.FindByName(ctx, name)
	if err != nil {
		return nil, wrapProjectErr(err)
	}
	return project, nil
}

// GetProjectByID retrieves a project by id.
func (s *Service) GetProjectByID(ctx context.Context, projectID uint64) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, wrapProjectErr(err)
	}
	return project, nil
}

// ListByStatus returns one page of a status partition in submission order.
func (s *Service) ListByStatus(ctx context.Context, status models.Status, offset, limit int) ([]*models.Project, error) {
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status error")
	}
	return s.projects.ListByStatus(ctx, status, offset, limit)
}

// ProjectPrice returns the fee charged by future SaveProject calls.
func (s *Service) ProjectPrice() *big.Int {
	s.priceMu.RLock()
	defer s.priceMu.RUnlock()
	return id.CopyAmount(s.projectPrice)
}

// SetProjectPrice updates the fee schedule. Privileged; no retroactive effect
// on already-captured project fees.
func (s *Service) SetProjectPrice(ctx context.Context, price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "price must be a non-negative amount")
	}
	s.priceMu.Lock()
	s.projectPrice = id.CopyAmount(price)
	s.priceMu.Unlock()

	s.logger.InfoContext(ctx, "project price updated",
		"request_id", requestcontext.RequestID(ctx),
		"price", id.AmountString(price),
	)
	return nil
}

// Transition moves a project along the module-driven state machine. Only the
// audit module calls this; the registry enforces the machine itself so no
// caller can force an illegal edge. Must run inside the caller's sequenced step.
func (s *Service) Transition(ctx context.Context, name string, next models.Status) (*models.Project, error) {
	project, err := s.projects.Execute(ctx, name,
		func(p *models.Project) error {
			if !p.Status.CanTransitionTo(next) {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"illegal status transition %s -> %s", p.Status, next)
			}
			return nil
		},
		func(p *models.Project) {
			p.Status = next
		},
	)
	if err != nil {
		return nil, wrapProjectErr(err)
	}
	return project, nil
}

// ReleaseProjectFee pays a project's escrowed submission fee out of registry
// custody. The audit module calls this exactly once per settled dispute.
func (s *Service) ReleaseProjectFee(ctx context.Context, projectID uint64, to id.Account) (*big.Int, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, wrapProjectErr(err)
	}
	if err := s.tokens.Transfer(ctx, s.custody, to, project.ProjectFee); err != nil {
		return nil, err
	}
	return project.ProjectFee, nil
}

// Custody returns the registry escrow account.
func (s *Service) Custody() id.Account { return s.custody }

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

// mapIdentityErr translates store uniqueness failures into the specific
// registration errors callers distinguish.
func mapIdentityErr(err error) error {
	switch {
	case errors.Is(err, store.ErrOwnerTaken):
		return dErrors.New(dErrors.CodeConflict, "user already saved")
	case errors.Is(err, store.ErrContractTaken):
		return dErrors.New(dErrors.CodeConflict, "contract address already saved")
	case errors.Is(err, store.ErrNameTaken):
		return dErrors.New(dErrors.CodeConflict, "name already used")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "availability check failed")
	}
}

func wrapProjectErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "project not exist")
	}
	return err
}
