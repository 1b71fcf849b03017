package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"safemint/internal/registry/models"
	id "safemint/pkg/domain"
	"safemint/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newProject(n int) *models.Project {
	p, err := models.NewProject(
		fmt.Sprintf("project-%d", n),
		id.Account(fmt.Sprintf("owner-%d", n)),
		id.Account(fmt.Sprintf("contract-%d", n)),
		1000, 2000, "ipfs://meta",
		id.Units(100),
	)
	s.Require().NoError(err)
	return p
}

func (s *InMemoryStoreSuite) TestCreate() {
	s.Run("assigns monotonically increasing ids from 1", func() {
		for i := 1; i <= 3; i++ {
			projectID, err := s.store.Create(s.ctx, s.newProject(i))
			s.NoError(err)
			s.Equal(uint64(i), projectID)
		}
	})

	s.Run("duplicate owner rejected first", func() {
		p := s.newProject(10)
		_, err := s.store.Create(s.ctx, p)
		s.Require().NoError(err)

		// Same owner, contract, and name all collide; the owner check wins.
		dup := p.Clone()
		_, err = s.store.Create(s.ctx, dup)
		s.ErrorIs(err, ErrOwnerTaken)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("duplicate contract rejected", func() {
		p := s.newProject(11)
		_, err := s.store.Create(s.ctx, p)
		s.Require().NoError(err)

		dup := s.newProject(12)
		dup.ProjectContract = p.ProjectContract
		_, err = s.store.Create(s.ctx, dup)
		s.ErrorIs(err, ErrContractTaken)
	})

	s.Run("duplicate name rejected", func() {
		p := s.newProject(13)
		_, err := s.store.Create(s.ctx, p)
		s.Require().NoError(err)

		dup := s.newProject(14)
		dup.Name = p.Name
		_, err = s.store.Create(s.ctx, dup)
		s.ErrorIs(err, ErrNameTaken)
	})
}

func (s *InMemoryStoreSuite) TestCheckAvailable() {
	p := s.newProject(1)
	_, err := s.store.Create(s.ctx, p)
	s.Require().NoError(err)

	s.Run("free identities pass", func() {
		s.NoError(s.store.CheckAvailable(s.ctx, "other", "other-owner", "other-contract"))
	})

	s.Run("matches create's check order", func() {
		err := s.store.CheckAvailable(s.ctx, p.Name, p.Owner, p.ProjectContract)
		s.ErrorIs(err, ErrOwnerTaken)

		err = s.store.CheckAvailable(s.ctx, p.Name, "other-owner", p.ProjectContract)
		s.ErrorIs(err, ErrContractTaken)

		err = s.store.CheckAvailable(s.ctx, p.Name, "other-owner", "other-contract")
		s.ErrorIs(err, ErrNameTaken)
	})
}

func (s *InMemoryStoreSuite) TestLookups() {
	p := s.newProject(1)
	projectID, err := s.store.Create(s.ctx, p)
	s.Require().NoError(err)

	s.Run("find by id", func() {
		got, err := s.store.FindByID(s.ctx, projectID)
		s.NoError(err)
		s.Equal(p.Name, got.Name)
	})

	s.Run("find by name", func() {
		got, err := s.store.FindByName(s.ctx, p.Name)
		s.NoError(err)
		s.Equal(projectID, got.ID)
	})

	s.Run("id by name", func() {
		got, err := s.store.IDByName(s.ctx, p.Name)
		s.NoError(err)
		s.Equal(projectID, got)
	})

	s.Run("missing project returns not found", func() {
		_, err := s.store.FindByName(s.ctx, "nope")
		s.ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByID(s.ctx, 999)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("reads do not alias stored state", func() {
		got, err := s.store.FindByID(s.ctx, projectID)
		s.Require().NoError(err)
		got.ProjectFee.SetInt64(1)
		got.Status = models.StatusPassed

		again, err := s.store.FindByID(s.ctx, projectID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, again.Status)
		s.Equal(id.Units(100).String(), again.ProjectFee.String())
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	p := s.newProject(1)
	_, err := s.store.Create(s.ctx, p)
	s.Require().NoError(err)

	s.Run("validate failure leaves project untouched", func() {
		wantErr := fmt.Errorf("nope")
		_, err := s.store.Execute(s.ctx, p.Name,
			func(*models.Project) error { return wantErr },
			func(pr *models.Project) { pr.Status = models.StatusPassed },
		)
		s.ErrorIs(err, wantErr)

		got, err := s.store.FindByName(s.ctx, p.Name)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("status change moves partitions atomically", func() {
		_, err := s.store.Execute(s.ctx, p.Name,
			func(*models.Project) error { return nil },
			func(pr *models.Project) { pr.Status = models.StatusRejected },
		)
		s.Require().NoError(err)

		pending, _ := s.store.CountByStatus(s.ctx, models.StatusPending)
		rejected, _ := s.store.CountByStatus(s.ctx, models.StatusRejected)
		s.Equal(0, pending)
		s.Equal(1, rejected)
	})

	s.Run("missing project returns not found", func() {
		_, err := s.store.Execute(s.ctx, "nope",
			func(*models.Project) error { return nil },
			func(*models.Project) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestListByStatus() {
	for i := 1; i <= 5; i++ {
		_, err := s.store.Create(s.ctx, s.newProject(i))
		s.Require().NoError(err)
	}

	s.Run("returns submission order", func() {
		page, err := s.store.ListByStatus(s.ctx, models.StatusPending, 0, 100)
		s.Require().NoError(err)
		s.Require().Len(page, 5)
		for i, p := range page {
			s.Equal(uint64(i+1), p.ID)
		}
	})

	s.Run("paginates with offset and limit", func() {
		page, err := s.store.ListByStatus(s.ctx, models.StatusPending, 2, 2)
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(uint64(3), page[0].ID)
		s.Equal(uint64(4), page[1].ID)
	})

	s.Run("offset beyond partition yields empty page", func() {
		page, err := s.store.ListByStatus(s.ctx, models.StatusPending, 50, 100)
		s.NoError(err)
		s.Empty(page)
	})

	s.Run("order survives a removal in the middle", func() {
		_, err := s.store.Execute(s.ctx, "project-3",
			func(*models.Project) error { return nil },
			func(pr *models.Project) { pr.Status = models.StatusPassed },
		)
		s.Require().NoError(err)

		page, err := s.store.ListByStatus(s.ctx, models.StatusPending, 0, 100)
		s.Require().NoError(err)
		s.Require().Len(page, 4)
		s.Equal([]uint64{1, 2, 4, 5}, []uint64{page[0].ID, page[1].ID, page[2].ID, page[3].ID})
	})

	s.Run("re-entry appends to the partition tail", func() {
		// project-1 leaves pending and later transitions land at the end of
		// the destination partition.
		_, err := s.store.Execute(s.ctx, "project-1",
			func(*models.Project) error { return nil },
			func(pr *models.Project) { pr.Status = models.StatusPassed },
		)
		s.Require().NoError(err)

		passed, err := s.store.ListByStatus(s.ctx, models.StatusPassed, 0, 100)
		s.Require().NoError(err)
		s.Require().Len(passed, 2)
		s.Equal(uint64(3), passed[0].ID)
		s.Equal(uint64(1), passed[1].ID)
	})
}
