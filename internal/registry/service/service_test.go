package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"supplyledger/internal/access"
	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/memory"
	"supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/requestcontext"
)

var (
	admin = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	alice = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob   = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

type RegistryServiceSuite struct {
	suite.Suite
	store   *memory.Store
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.store = memory.New()
	s.service = New(s.store, access.NewGate(admin))
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *RegistryServiceSuite) TestRequestRole() {
	s.Run("creates a pending record with the next id", func() {
		p, receipt, err := s.service.RequestRole(s.ctx, alice, "Producer")
		s.Require().NoError(err)
		s.Equal(domain.ParticipantID(1), p.ID)
		s.Equal(models.StatusPending, p.Status)
		s.Equal("Producer", p.Role)
		s.Equal(s.now, p.CreatedAt)
		s.Equal(uint64(1), receipt.Seq)
		s.Equal(ledger.EventParticipantRegistered, receipt.Kind)

		p2, _, err := s.service.RequestRole(s.ctx, bob, "Retailer")
		s.Require().NoError(err)
		s.Equal(domain.ParticipantID(2), p2.ID)
	})

	s.Run("second request fails and leaves the record unchanged", func() {
		_, _, err := s.service.RequestRole(s.ctx, alice, "Retailer")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))

		p, err := s.service.Get(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("Producer", p.Role)
	})

	s.Run("administrator cannot request a role", func() {
		_, _, err := s.service.RequestRole(s.ctx, admin, "Producer")
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	})

	s.Run("empty role is a validation error", func() {
		carol := domain.MustParseAddress("0x00000000000000000000000000000000000000c3")
		_, _, err := s.service.RequestRole(s.ctx, carol, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		registered, err := s.service.IsRegistered(s.ctx, carol)
		s.Require().NoError(err)
		s.False(registered)
	})
}

func (s *RegistryServiceSuite) TestSetStatus() {
	_, _, err := s.service.RequestRole(s.ctx, alice, "Producer")
	s.Require().NoError(err)

	s.Run("administrator approves a participant", func() {
		p, receipt, err := s.service.SetStatus(s.ctx, admin, alice, models.StatusApproved)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, p.Status)
		s.Equal(ledger.EventParticipantStatusChanged, receipt.Kind)

		ok, err := s.service.IsApproved(s.ctx, alice)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("non-administrator is unauthorized and nothing changes", func() {
		_, _, err := s.service.SetStatus(s.ctx, alice, alice, models.StatusRejected)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		p, err := s.service.Get(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, p.Status)
	})

	s.Run("unknown identity is not found", func() {
		_, _, err := s.service.SetStatus(s.ctx, admin, bob, models.StatusApproved)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("any status may follow any other", func() {
		for _, status := range []models.Status{models.StatusCanceled, models.StatusPending, models.StatusRejected, models.StatusRejected, models.StatusApproved} {
			p, _, err := s.service.SetStatus(s.ctx, admin, alice, status)
			s.Require().NoError(err)
			s.Equal(status, p.Status)
		}
	})

	s.Run("invalid status is refused", func() {
		_, _, err := s.service.SetStatus(s.ctx, admin, alice, models.Status(9))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("each committed change yields the next receipt", func() {
		var last uint64
		s.Require().NoError(s.store.View(s.ctx, func(r ledger.Reader) error {
			events, err := r.EventsAfter(s.ctx, 0, 0)
			s.Require().NoError(err)
			last = events[len(events)-1].Seq
			return nil
		}))
		_, receipt, err := s.service.SetStatus(s.ctx, admin, alice, models.StatusApproved)
		s.Require().NoError(err)
		s.Equal(last+1, receipt.Seq)
	})
}

func (s *RegistryServiceSuite) TestQueries() {
	_, _, err := s.service.RequestRole(s.ctx, alice, "Producer")
	s.Require().NoError(err)
	_, _, err = s.service.RequestRole(s.ctx, bob, "Retailer")
	s.Require().NoError(err)
	_, _, err = s.service.SetStatus(s.ctx, admin, bob, models.StatusApproved)
	s.Require().NoError(err)

	s.Run("administrator is implicitly approved without a record", func() {
		s.True(s.service.IsAdministrator(admin))
		ok, err := s.service.IsApproved(s.ctx, admin)
		s.Require().NoError(err)
		s.True(ok)

		_, err = s.service.Get(s.ctx, admin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("pending participant is not approved", func() {
		ok, err := s.service.IsApproved(s.ctx, alice)
		s.Require().NoError(err)
		s.False(ok)
		s.False(s.service.IsAdministrator(alice))
	})

	s.Run("list orders by id and filters by status", func() {
		all, err := s.service.List(s.ctx, models.Filter{})
		s.Require().NoError(err)
		s.Require().Len(all, 2)
		s.Equal(alice, all[0].Address)
		s.Equal(bob, all[1].Address)

		approved := models.StatusApproved
		only, err := s.service.List(s.ctx, models.Filter{Status: &approved})
		s.Require().NoError(err)
		s.Require().Len(only, 1)
		s.Equal(bob, only[0].Address)
	})

	s.Run("registered reports any status", func() {
		ok, err := s.service.IsRegistered(s.ctx, alice)
		s.Require().NoError(err)
		s.True(ok)
	})
}
