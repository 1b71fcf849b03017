package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "safemint/pkg/domain"
)

type InMemoryLedgerSuite struct {
	suite.Suite
	ledger *InMemoryLedger
	ctx    context.Context
}

func TestInMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, new(InMemoryLedgerSuite))
}

func (s *InMemoryLedgerSuite) SetupTest() {
	s.ledger = NewInMemoryLedger()
	s.ctx = context.Background()
}

func (s *InMemoryLedgerSuite) balance(account id.Account) string {
	b, err := s.ledger.BalanceOf(s.ctx, account)
	s.Require().NoError(err)
	return b.String()
}

func (s *InMemoryLedgerSuite) TestMintAndBalance() {
	s.Run("unknown account has zero balance", func() {
		s.Equal("0", s.balance("0xnobody"))
	})

	s.Run("mint accumulates", func() {
		s.ledger.Mint("0xalice", id.Units(100))
		s.ledger.Mint("0xalice", id.Units(50))
		s.Equal(id.Units(150).String(), s.balance("0xalice"))
	})

	s.Run("balance reads do not alias the ledger", func() {
		b, err := s.ledger.BalanceOf(s.ctx, "0xalice")
		s.Require().NoError(err)
		b.SetInt64(0)
		s.Equal(id.Units(150).String(), s.balance("0xalice"))
	})
}

func (s *InMemoryLedgerSuite) TestTransfer() {
	s.ledger.Mint("0xalice", id.Units(100))

	s.Run("moves value between accounts", func() {
		s.NoError(s.ledger.Transfer(s.ctx, "0xalice", "0xbob", id.Units(30)))
		s.Equal(id.Units(70).String(), s.balance("0xalice"))
		s.Equal(id.Units(30).String(), s.balance("0xbob"))
	})

	s.Run("insufficient balance fails and moves nothing", func() {
		err := s.ledger.Transfer(s.ctx, "0xalice", "0xbob", id.Units(1000))
		s.ErrorIs(err, ErrInsufficientBalance)
		s.Equal(id.Units(70).String(), s.balance("0xalice"))
		s.Equal(id.Units(30).String(), s.balance("0xbob"))
	})

	s.Run("unfunded sender fails", func() {
		err := s.ledger.Transfer(s.ctx, "0xghost", "0xbob", id.Units(1))
		s.ErrorIs(err, ErrInsufficientBalance)
	})
}

func (s *InMemoryLedgerSuite) TestApproveAndTransferFrom() {
	s.ledger.Mint("0xalice", id.Units(100))

	s.Run("no allowance fails before the balance check", func() {
		err := s.ledger.TransferFrom(s.ctx, "0xalice", "0xspender", "0xvault", id.Units(10))
		s.ErrorIs(err, ErrInsufficientAllowance)
	})

	s.Run("spending decrements the allowance", func() {
		s.Require().NoError(s.ledger.Approve(s.ctx, "0xalice", "0xspender", id.Units(60)))

		s.NoError(s.ledger.TransferFrom(s.ctx, "0xalice", "0xspender", "0xvault", id.Units(40)))
		s.Equal(id.Units(60).String(), s.balance("0xalice"))
		s.Equal(id.Units(40).String(), s.balance("0xvault"))

		remaining, err := s.ledger.Allowance(s.ctx, "0xalice", "0xspender")
		s.Require().NoError(err)
		s.Equal(id.Units(20).String(), remaining.String())

		err = s.ledger.TransferFrom(s.ctx, "0xalice", "0xspender", "0xvault", id.Units(30))
		s.ErrorIs(err, ErrInsufficientAllowance)
	})

	s.Run("allowance without balance fails on balance", func() {
		s.Require().NoError(s.ledger.Approve(s.ctx, "0xpoor", "0xspender", id.Units(10)))
		err := s.ledger.TransferFrom(s.ctx, "0xpoor", "0xspender", "0xvault", id.Units(10))
		s.ErrorIs(err, ErrInsufficientBalance)
	})

	s.Run("re-approve overwrites rather than adds", func() {
		s.Require().NoError(s.ledger.Approve(s.ctx, "0xalice", "0xspender", id.Units(5)))
		remaining, err := s.ledger.Allowance(s.ctx, "0xalice", "0xspender")
		s.Require().NoError(err)
		s.Equal(id.Units(5).String(), remaining.String())
	})
}
