package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestGrantAndCheck() {
	s.Run("unknown account has no role", func() {
		ok, err := s.store.HasRole(s.ctx, AuditorRole, "0xalice")
		s.NoError(err)
		s.False(ok)
	})

	s.Run("grant is role-scoped", func() {
		s.Require().NoError(s.store.GrantRole(s.ctx, AuditorRole, "0xalice"))

		ok, err := s.store.HasRole(s.ctx, AuditorRole, "0xalice")
		s.NoError(err)
		s.True(ok)

		ok, err = s.store.HasRole(s.ctx, ArbitratorRole, "0xalice")
		s.NoError(err)
		s.False(ok)
	})

	s.Run("grant is idempotent", func() {
		s.Require().NoError(s.store.GrantRole(s.ctx, AuditorRole, "0xalice"))
		ok, err := s.store.HasRole(s.ctx, AuditorRole, "0xalice")
		s.NoError(err)
		s.True(ok)
	})
}

func (s *InMemoryStoreSuite) TestRevoke() {
	s.Require().NoError(s.store.GrantRole(s.ctx, AuditorRole, "0xalice"))
	s.Require().NoError(s.store.GrantRole(s.ctx, AuditorRole, "0xbob"))

	s.Run("removes only the named account", func() {
		s.Require().NoError(s.store.RevokeRole(s.ctx, AuditorRole, "0xalice"))

		ok, err := s.store.HasRole(s.ctx, AuditorRole, "0xalice")
		s.NoError(err)
		s.False(ok)

		ok, err = s.store.HasRole(s.ctx, AuditorRole, "0xbob")
		s.NoError(err)
		s.True(ok)
	})

	s.Run("revoking an absent grant is a no-op", func() {
		s.NoError(s.store.RevokeRole(s.ctx, ArbitratorRole, "0xalice"))
	})
}
