package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"safemint/internal/audit/models"
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

func (s *InMemoryStoreSuite) TestSave() {
	record := models.NewFeeRecord(1, "0xauditor", id.Units(10))
	s.Require().NoError(s.store.Save(s.ctx, record))

	s.Run("round trips the record", func() {
		got, err := s.store.Find(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(record.ProjectID, got.ProjectID)
		s.Equal(record.Auditor, got.Auditor)
		s.Equal(id.Units(10).String(), got.Value.String())
	})

	s.Run("overwrite replaces the whole record", func() {
		replacement := models.NewFeeRecord(1, "0xother", id.Units(5))
		s.Require().NoError(s.store.Save(s.ctx, replacement))

		got, err := s.store.Find(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(id.Account("0xother"), got.Auditor)
		s.Equal(id.Units(5).String(), got.Value.String())
		s.False(got.Claimed)
	})

	s.Run("stored state does not alias the caller's record", func() {
		record.Value.SetInt64(1)
		got, err := s.store.Find(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(id.Units(5).String(), got.Value.String())
	})
}

func (s *InMemoryStoreSuite) TestFind() {
	s.Run("missing record returns not found", func() {
		_, err := s.store.Find(s.ctx, 404)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("reads do not alias stored state", func() {
		s.Require().NoError(s.store.Save(s.ctx, models.NewFeeRecord(2, "0xauditor", id.Units(10))))

		got, err := s.store.Find(s.ctx, 2)
		s.Require().NoError(err)
		got.Claimed = true
		got.Value.SetInt64(0)

		again, err := s.store.Find(s.ctx, 2)
		s.Require().NoError(err)
		s.False(again.Claimed)
		s.Equal(id.Units(10).String(), again.Value.String())
	})
}

func (s *InMemoryStoreSuite) TestExecute() {
	s.Require().NoError(s.store.Save(s.ctx, models.NewFeeRecord(3, "0xauditor", id.Units(10))))

	s.Run("missing record returns not found", func() {
		_, err := s.store.Execute(s.ctx, 404,
			func(*models.FeeRecord) error { return nil },
			func(*models.FeeRecord) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("validate failure leaves the record untouched", func() {
		wantErr := fmt.Errorf("nope")
		_, err := s.store.Execute(s.ctx, 3,
			func(*models.FeeRecord) error { return wantErr },
			func(r *models.FeeRecord) { r.Claimed = true },
		)
		s.ErrorIs(err, wantErr)

		got, err := s.store.Find(s.ctx, 3)
		s.Require().NoError(err)
		s.False(got.Claimed)
	})

	s.Run("mutation applies and returns the updated copy", func() {
		updated, err := s.store.Execute(s.ctx, 3,
			func(*models.FeeRecord) error { return nil },
			func(r *models.FeeRecord) {
				r.Challenger = "0xchallenger"
				r.ChallengeFee = id.Units(10)
				r.Arbitrated = true
			},
		)
		s.Require().NoError(err)
		s.Equal(id.Account("0xchallenger"), updated.Challenger)
		s.True(updated.Arbitrated)

		got, err := s.store.Find(s.ctx, 3)
		s.Require().NoError(err)
		s.Equal(id.Units(10).String(), got.ChallengeFee.String())
		s.True(got.Arbitrated)
	})
}
