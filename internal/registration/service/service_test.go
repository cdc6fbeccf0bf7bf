package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	eventtypemodels "eventgate/internal/eventtype/models"
	eventtypestore "eventgate/internal/eventtype/store"
	"eventgate/internal/registration/models"
	"eventgate/internal/registration/store"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

type RegistrationServiceSuite struct {
	suite.Suite

	ctx     context.Context
	store   *store.InMemory
	types   *eventtypestore.InMemory
	service *Service
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.types = eventtypestore.NewInMemory()
	s.service = New(s.store, s.types, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// SetupSubTest gives each s.Run case a clean registration store while keeping
// the event type policies a test method saves before its subtests.
func (s *RegistrationServiceSuite) SetupSubTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, s.types, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *RegistrationServiceSuite) savePolicy(eventType eventtypemodels.EventType) {
	s.Require().NoError(s.types.Save(s.ctx, &eventType))
}

func (s *RegistrationServiceSuite) event() domain.EntityRef {
	return domain.EntityRef{Type: "node", ID: "42"}
}

func (s *RegistrationServiceSuite) identity(id string) *domain.EntityRef {
	return &domain.EntityRef{Type: "user", ID: id}
}

func (s *RegistrationServiceSuite) TestCreate() {
	s.Run("persists an empty registration", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 3)
		s.Require().NoError(err)
		s.Equal(3, registration.RegistrantQty)

		found, err := s.service.Find(s.ctx, registration.ID)
		s.Require().NoError(err)
		s.Equal(0, found.CountRegistrants())
	})

	s.Run("rejects a missing event reference", func() {
		_, err := s.service.Create(s.ctx, domain.EntityRef{}, 0)
		s.Require().Error(err)
	})
}

func (s *RegistrationServiceSuite) TestAddRegistrant() {
	s.savePolicy(eventtypemodels.EventType{
		EntityType:            "node",
		Bundle:                "conference",
		DefaultRegistrantKind: "person",
	})

	s.Run("adds an identity and defaults the kind", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		registrant, err := s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
		s.Equal("person", registrant.Kind)

		found, err := s.service.Find(s.ctx, registration.ID)
		s.Require().NoError(err)
		s.True(found.HasIdentity(*s.identity("alice")))
	})

	s.Run("keeps an explicit kind", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		registrant, err := s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("bob"), "speaker")
		s.Require().NoError(err)
		s.Equal("speaker", registrant.Kind)
	})
}

func (s *RegistrationServiceSuite) TestGuardOrder() {
	s.savePolicy(eventtypemodels.EventType{
		EntityType:                "node",
		Bundle:                    "conference",
		AllowAnonymousRegistrants: false,
	})

	s.Run("capacity is checked before the duplicate guard", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 1)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		// alice is both a duplicate and over capacity. Capacity wins.
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().ErrorIs(err, models.ErrMaxRegistrantsExceeded)
		s.NotErrorIs(err, ErrDuplicateRegistrant)
	})

	s.Run("anonymous rule is checked before the duplicate guard", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", nil, "")
		s.Require().ErrorIs(err, ErrAnonymousDisallowed)
	})
}

func (s *RegistrationServiceSuite) TestDuplicatePolicy() {
	s.Run("duplicates rejected within a registration", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().ErrorIs(err, ErrDuplicateRegistrant)
	})

	s.Run("duplicates rejected across registrations for the same event", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		first, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, first.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		second, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, second.ID, "conference", s.identity("alice"), "")
		s.Require().ErrorIs(err, ErrDuplicateRegistrant)
	})

	s.Run("a different event does not count", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		first, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, first.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		other, err := s.service.Create(s.ctx, domain.EntityRef{Type: "node", ID: "99"}, 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, other.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
	})

	s.Run("policy may allow duplicates", func() {
		s.savePolicy(eventtypemodels.EventType{
			EntityType:                "node",
			Bundle:                    "conference",
			AllowDuplicateRegistrants: true,
		})
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
	})
}

func (s *RegistrationServiceSuite) TestAnonymousPolicy() {
	s.Run("policy may allow anonymous registrants", func() {
		s.savePolicy(eventtypemodels.EventType{
			EntityType:                "node",
			Bundle:                    "conference",
			AllowAnonymousRegistrants: true,
		})
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		registrant, err := s.service.AddRegistrant(s.ctx, registration.ID, "conference", nil, "")
		s.Require().NoError(err)
		s.Nil(registrant.Identity)
	})

	s.Run("unknown event type falls back to the strict policy", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "nonexistent", nil, "")
		s.Require().ErrorIs(err, ErrAnonymousDisallowed)
	})
}

func (s *RegistrationServiceSuite) TestCanRegister() {
	s.Run("passes when the event has no registrations yet", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})

		err := s.service.CanRegister(s.ctx, s.event(), "conference", s.identity("alice"))
		s.Require().NoError(err)
	})

	s.Run("rejects everyone once every registration is full", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		registration, err := s.service.Create(s.ctx, s.event(), 1)
		s.Require().NoError(err)

		err = s.service.CanRegister(s.ctx, s.event(), "conference", s.identity("bob"))
		s.Require().NoError(err)

		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		err = s.service.CanRegister(s.ctx, s.event(), "conference", s.identity("bob"))
		s.Require().ErrorIs(err, models.ErrMaxRegistrantsExceeded)
	})

	s.Run("an open registration keeps the event available", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		full, err := s.service.Create(s.ctx, s.event(), 1)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, full.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
		_, err = s.service.Create(s.ctx, s.event(), 2)
		s.Require().NoError(err)

		err = s.service.CanRegister(s.ctx, s.event(), "conference", s.identity("bob"))
		s.Require().NoError(err)
	})

	s.Run("rejects an identity already registered for the event", func() {
		s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)

		err = s.service.CanRegister(s.ctx, s.event(), "conference", s.identity("alice"))
		s.Require().ErrorIs(err, ErrDuplicateRegistrant)
	})

	s.Run("rejects anonymous under the strict default", func() {
		err := s.service.CanRegister(s.ctx, s.event(), "conference", nil)
		s.Require().ErrorIs(err, ErrAnonymousDisallowed)
	})
}

func (s *RegistrationServiceSuite) TestQuantityAndConfirmation() {
	s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})

	s.Run("shrinking below occupancy leaves the stored state unchanged", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 3)
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("alice"), "")
		s.Require().NoError(err)
		_, err = s.service.AddRegistrant(s.ctx, registration.ID, "conference", s.identity("bob"), "")
		s.Require().NoError(err)

		_, err = s.service.SetRegistrantQty(s.ctx, registration.ID, 1)
		s.Require().ErrorIs(err, models.ErrMaxRegistrantsExceeded)

		found, err := s.service.Find(s.ctx, registration.ID)
		s.Require().NoError(err)
		s.Equal(3, found.RegistrantQty)
	})

	s.Run("confirmation toggles", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)

		updated, err := s.service.SetConfirmed(s.ctx, registration.ID, true)
		s.Require().NoError(err)
		s.True(updated.Confirmed)
	})
}

func (s *RegistrationServiceSuite) TestDeletion() {
	s.savePolicy(eventtypemodels.EventType{EntityType: "node", Bundle: "conference"})

	s.Run("delete removes a registration", func() {
		registration, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		s.Require().NoError(s.service.Delete(s.ctx, registration.ID))

		_, err = s.service.Find(s.ctx, registration.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("event deletion sweeps all its registrations", func() {
		_, err := s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		_, err = s.service.Create(s.ctx, s.event(), 0)
		s.Require().NoError(err)
		keep, err := s.service.Create(s.ctx, domain.EntityRef{Type: "node", ID: "99"}, 0)
		s.Require().NoError(err)

		deleted, err := s.service.DeleteEventRegistrations(s.ctx, s.event())
		s.Require().NoError(err)
		s.Equal(2, deleted)

		_, err = s.service.Find(s.ctx, keep.ID)
		s.Require().NoError(err)
	})
}
