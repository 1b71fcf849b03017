package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"safemint/internal/core"
	"safemint/internal/registry/models"
	"safemint/internal/registry/store"
	"safemint/internal/token"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/events"
)

const (
	ownerAccount    = id.Account("0xowner")
	registryCustody = id.Account("custody:registry")
)

type RegistryServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *store.InMemory
	ledger    *token.InMemoryLedger
	publisher *events.Publisher
	service   *Service
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.ledger = token.NewInMemoryLedger()
	s.publisher = events.NewPublisher(events.NewInMemoryStore())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := New(s.store, s.ledger, registryCustody, id.Units(100), core.NewSequencer(),
		WithLogger(logger),
		WithPublisher(s.publisher),
	)
	s.Require().NoError(err)
	s.service = svc
}

// fund credits an account and approves the registry custody to pull from it.
func (s *RegistryServiceSuite) fund(account id.Account, tokens int64) {
	s.ledger.Mint(account, id.Units(tokens))
	s.Require().NoError(s.ledger.Approve(s.ctx, account, registryCustody, id.Units(tokens)))
}

func (s *RegistryServiceSuite) saveInput(name string) SaveProjectInput {
	return SaveProjectInput{
		Name:            name,
		ProjectContract: id.Account("0xcontract-" + name),
		StartTime:       1000,
		EndTime:         2000,
		IPFSAddress:     "ipfs://" + name,
	}
}

func (s *RegistryServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.ledger, registryCustody, id.Units(100), core.NewSequencer())
		s.Error(err)
		s.Contains(err.Error(), "project store is required")
	})

	s.Run("nil ledger returns error", func() {
		_, err := New(s.store, nil, registryCustody, id.Units(100), core.NewSequencer())
		s.Error(err)
		s.Contains(err.Error(), "token ledger is required")
	})
}

func (s *RegistryServiceSuite) TestSaveProject() {
	s.Run("pulls the fee and stores a pending project", func() {
		s.fund(ownerAccount, 150)

		project, err := s.service.SaveProject(s.ctx, ownerAccount, s.saveInput("alpha"))
		s.Require().NoError(err)

		s.Equal(uint64(1), project.ID)
		s.Equal(models.StatusPending, project.Status)
		s.Equal(id.Units(100).String(), project.ProjectFee.String())

		balance, _ := s.ledger.BalanceOf(s.ctx, ownerAccount)
		s.Equal(id.Units(50).String(), balance.String())
		custody, _ := s.ledger.BalanceOf(s.ctx, registryCustody)
		s.Equal(id.Units(100).String(), custody.String())

		evs, err := s.publisher.List(s.ctx, "alpha")
		s.Require().NoError(err)
		s.Require().Len(evs, 1)
		s.Equal(events.TypeProjectCreated, evs[0].Type)
		s.Equal(id.Units(100).String(), evs[0].Amount)
	})

	s.Run("insufficient allowance surfaces the token message", func() {
		caller := id.Account("0xpoor")
		s.ledger.Mint(caller, id.Units(100))
		// No approval at all.
		_, err := s.service.SaveProject(s.ctx, caller, s.saveInput("beta"))
		s.Require().Error(err)
		s.ErrorIs(err, token.ErrInsufficientAllowance)
		s.Contains(err.Error(), "insufficient allowance")
	})

	s.Run("insufficient balance surfaces the token message", func() {
		caller := id.Account("0xbroke")
		s.Require().NoError(s.ledger.Approve(s.ctx, caller, registryCustody, id.Units(100)))
		_, err := s.service.SaveProject(s.ctx, caller, s.saveInput("gamma"))
		s.ErrorIs(err, token.ErrInsufficientBalance)
	})

	s.Run("duplicate owner is rejected before the fee moves", func() {
		caller := id.Account("0xrepeat")
		s.fund(caller, 300)

		_, err := s.service.SaveProject(s.ctx, caller, s.saveInput("delta"))
		s.Require().NoError(err)

		_, err = s.service.SaveProject(s.ctx, caller, s.saveInput("epsilon"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "user already saved")

		balance, _ := s.ledger.BalanceOf(s.ctx, caller)
		s.Equal(id.Units(200).String(), balance.String())
	})

	s.Run("duplicate contract address rejected", func() {
		first := id.Account("0xfirst")
		second := id.Account("0xsecond")
		s.fund(first, 100)
		s.fund(second, 100)

		input := s.saveInput("zeta")
		_, err := s.service.SaveProject(s.ctx, first, input)
		s.Require().NoError(err)

		input2 := s.saveInput("eta")
		input2.ProjectContract = input.ProjectContract
		_, err = s.service.SaveProject(s.ctx, second, input2)
		s.Contains(err.Error(), "contract address already saved")
	})

	s.Run("duplicate name rejected", func() {
		first := id.Account("0xthird")
		second := id.Account("0xfourth")
		s.fund(first, 100)
		s.fund(second, 100)

		_, err := s.service.SaveProject(s.ctx, first, s.saveInput("theta"))
		s.Require().NoError(err)

		input := s.saveInput("theta")
		input.ProjectContract = "0xother-contract"
		_, err = s.service.SaveProject(s.ctx, second, input)
		s.Contains(err.Error(), "name already used")
	})

	s.Run("empty name rejected", func() {
		s.fund("0xblank", 100)
		_, err := s.service.SaveProject(s.ctx, "0xblank", s.saveInput(""))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistryServiceSuite) TestFeeSnapshot() {
	// The fee captured at submission survives later price changes.
	s.fund(ownerAccount, 100)
	project, err := s.service.SaveProject(s.ctx, ownerAccount, s.saveInput("alpha"))
	s.Require().NoError(err)

	s.Require().NoError(s.service.SetProjectPrice(s.ctx, id.Units(250)))
	s.Equal(id.Units(250).String(), s.service.ProjectPrice().String())

	got, err := s.service.GetProject(s.ctx, project.Name)
	s.Require().NoError(err)
	s.Equal(id.Units(100).String(), got.ProjectFee.String())

	later := id.Account("0xlater")
	s.ledger.Mint(later, id.Units(250))
	s.Require().NoError(s.ledger.Approve(s.ctx, later, registryCustody, id.Units(250)))
	next, err := s.service.SaveProject(s.ctx, later, s.saveInput("beta"))
	s.Require().NoError(err)
	s.Equal(id.Units(250).String(), next.ProjectFee.String())
}

func (s *RegistryServiceSuite) TestEditProject() {
	s.fund(ownerAccount, 100)
	project, err := s.service.SaveProject(s.ctx, ownerAccount, s.saveInput("alpha"))
	s.Require().NoError(err)

	s.Run("owner edits mutable fields without charge", func() {
		edited, err := s.service.EditProject(s.ctx, ownerAccount, EditProjectInput{
			Name:        project.Name,
			StartTime:   1500,
			EndTime:     2500,
			IPFSAddress: "ipfs://updated",
		})
		s.Require().NoError(err)
		s.Equal(int64(1500), edited.StartTime)
		s.Equal("ipfs://updated", edited.IPFSAddress)
		s.Equal(models.StatusPending, edited.Status)

		balance, _ := s.ledger.BalanceOf(s.ctx, ownerAccount)
		s.Equal(id.Units(0).String(), balance.String())
	})

	s.Run("non-owner rejected", func() {
		_, err := s.service.EditProject(s.ctx, "0xsomeone", EditProjectInput{Name: project.Name})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(err.Error(), "caller is not project owner")
	})

	s.Run("missing project rejected", func() {
		_, err := s.service.EditProject(s.ctx, ownerAccount, EditProjectInput{Name: "nope"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(err.Error(), "project not exist")
	})

	s.Run("edit outside pending rejected", func() {
		_, err := s.service.Transition(s.ctx, project.Name, models.StatusPassed)
		s.Require().NoError(err)

		_, err = s.service.EditProject(s.ctx, ownerAccount, EditProjectInput{Name: project.Name})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(err.Error(), "status error")
	})
}

func (s *RegistryServiceSuite) TestTransition() {
	s.fund(ownerAccount, 100)
	project, err := s.service.SaveProject(s.ctx, ownerAccount, s.saveInput("alpha"))
	s.Require().NoError(err)

	s.Run("legal edges move the project", func() {
		got, err := s.service.Transition(s.ctx, project.Name, models.StatusRejected)
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, got.Status)

		got, err = s.service.Transition(s.ctx, project.Name, models.StatusLocked)
		s.Require().NoError(err)
		s.Equal(models.StatusLocked, got.Status)

		got, err = s.service.Transition(s.ctx, project.Name, models.StatusPassed)
		s.Require().NoError(err)
		s.Equal(models.StatusPassed, got.Status)
	})

	s.Run("illegal edge rejected", func() {
		_, err := s.service.Transition(s.ctx, project.Name, models.StatusLocked)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistryServiceSuite) TestListByStatus() {
	names := []string{"alpha", "beta", "gamma"}
	for i, name := range names {
		caller := id.Account("0xowner-" + name)
		s.fund(caller, 100)
		project, err := s.service.SaveProject(s.ctx, caller, s.saveInput(name))
		s.Require().NoError(err)
		s.Equal(uint64(i+1), project.ID)
	}

	s.Run("returns submission order", func() {
		page, err := s.service.ListByStatus(s.ctx, models.StatusPending, 0, 100)
		s.Require().NoError(err)
		s.Require().Len(page, 3)
		s.Equal("alpha", page[0].Name)
		s.Equal("gamma", page[2].Name)
	})

	s.Run("offset beyond count yields empty page", func() {
		page, err := s.service.ListByStatus(s.ctx, models.StatusPending, 10, 100)
		s.NoError(err)
		s.Empty(page)
	})

	s.Run("invalid status rejected", func() {
		_, err := s.service.ListByStatus(s.ctx, models.Status(9), 0, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *RegistryServiceSuite) TestSetProjectPrice() {
	s.Run("rejects nil price", func() {
		s.Error(s.service.SetProjectPrice(s.ctx, nil))
	})

	s.Run("updates future fees", func() {
		s.Require().NoError(s.service.SetProjectPrice(s.ctx, id.Units(1)))
		s.Equal(id.Units(1).String(), s.service.ProjectPrice().String())
	})
}

func (s *RegistryServiceSuite) TestReleaseProjectFee() {
	s.fund(ownerAccount, 100)
	project, err := s.service.SaveProject(s.ctx, ownerAccount, s.saveInput("alpha"))
	s.Require().NoError(err)

	auditor := id.Account("0xauditor")
	released, err := s.service.ReleaseProjectFee(s.ctx, project.ID, auditor)
	s.Require().NoError(err)
	s.Equal(id.Units(100).String(), released.String())

	balance, _ := s.ledger.BalanceOf(s.ctx, auditor)
	s.Equal(id.Units(100).String(), balance.String())
	custody, _ := s.ledger.BalanceOf(s.ctx, registryCustody)
	s.Equal(id.Units(0).String(), custody.String())
}
