//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"eventgate/internal/registration/models"
	"eventgate/internal/registration/store"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
	"eventgate/pkg/testutil/containers"
)

type PostgresRegistrationStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresRegistrationStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRegistrationStoreSuite))
}

func (s *PostgresRegistrationStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresRegistrationStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresRegistrationStoreSuite) newRegistration(eventID string) *models.Registration {
	registration, err := models.NewRegistration(
		domain.RegistrationID(uuid.New()),
		domain.EntityRef{Type: "node", ID: eventID},
		time.Now().UTC().Truncate(time.Millisecond),
	)
	s.Require().NoError(err)
	return registration
}

func (s *PostgresRegistrationStoreSuite) addRegistrant(registration *models.Registration, identity *domain.EntityRef) {
	registrant, err := models.NewRegistrant(
		domain.RegistrantID(uuid.New()),
		registration.ID,
		identity,
		"person",
		time.Now().UTC().Truncate(time.Millisecond),
	)
	s.Require().NoError(err)
	s.Require().NoError(registration.AddRegistrant(registrant))
}

func (s *PostgresRegistrationStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	registration := s.newRegistration("42")
	s.Require().NoError(registration.SetRegistrantQty(3))
	s.addRegistrant(registration, &domain.EntityRef{Type: "user", ID: "alice"})
	s.addRegistrant(registration, nil)

	s.Require().NoError(s.store.Create(ctx, registration))

	found, err := s.store.FindByID(ctx, registration.ID)
	s.Require().NoError(err)
	s.Equal(3, found.RegistrantQty)
	s.Require().Len(found.Registrants, 2)
	s.True(found.HasIdentity(domain.EntityRef{Type: "user", ID: "alice"}))
	s.Nil(found.Registrants[1].Identity, "anonymous registrant survives the round trip")
}

func (s *PostgresRegistrationStoreSuite) TestRegistrantOrderPreserved() {
	ctx := context.Background()
	registration := s.newRegistration("42")
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		s.addRegistrant(registration, &domain.EntityRef{Type: "user", ID: id})
	}
	s.Require().NoError(s.store.Create(ctx, registration))

	found, err := s.store.FindByID(ctx, registration.ID)
	s.Require().NoError(err)
	s.Require().Len(found.Registrants, 4)
	for i, id := range []string{"alice", "bob", "carol", "dave"} {
		s.Equal(id, found.Registrants[i].Identity.ID)
	}
}

func (s *PostgresRegistrationStoreSuite) TestUpdateReplacesRegistrants() {
	ctx := context.Background()
	registration := s.newRegistration("42")
	s.addRegistrant(registration, &domain.EntityRef{Type: "user", ID: "alice"})
	s.Require().NoError(s.store.Create(ctx, registration))

	registration.Registrants = nil
	s.addRegistrant(registration, &domain.EntityRef{Type: "user", ID: "bob"})
	registration.Confirmed = true
	s.Require().NoError(s.store.Update(ctx, registration))

	found, err := s.store.FindByID(ctx, registration.ID)
	s.Require().NoError(err)
	s.True(found.Confirmed)
	s.Require().Len(found.Registrants, 1)
	s.Equal("bob", found.Registrants[0].Identity.ID)
}

func (s *PostgresRegistrationStoreSuite) TestListByIdentity() {
	ctx := context.Background()
	alice := domain.EntityRef{Type: "user", ID: "alice"}

	first := s.newRegistration("42")
	s.addRegistrant(first, &alice)
	s.Require().NoError(s.store.Create(ctx, first))

	second := s.newRegistration("42")
	s.addRegistrant(second, &domain.EntityRef{Type: "user", ID: "bob"})
	s.Require().NoError(s.store.Create(ctx, second))

	otherEvent := s.newRegistration("99")
	s.addRegistrant(otherEvent, &alice)
	s.Require().NoError(s.store.Create(ctx, otherEvent))

	matched, err := s.store.ListByIdentity(ctx, domain.EntityRef{Type: "node", ID: "42"}, alice)
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	s.Equal(first.ID, matched[0].ID)
}

func (s *PostgresRegistrationStoreSuite) TestDeleteByEvent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRegistration("42")))
	s.Require().NoError(s.store.Create(ctx, s.newRegistration("42")))
	keep := s.newRegistration("99")
	s.Require().NoError(s.store.Create(ctx, keep))

	deleted, err := s.store.DeleteByEvent(ctx, domain.EntityRef{Type: "node", ID: "42"})
	s.Require().NoError(err)
	s.Equal(2, deleted)

	listed, err := s.store.ListByEvent(ctx, domain.EntityRef{Type: "node", ID: "42"})
	s.Require().NoError(err)
	s.Empty(listed)

	_, err = s.store.FindByID(ctx, keep.ID)
	s.Require().NoError(err)
}

func (s *PostgresRegistrationStoreSuite) TestNotFoundAndConflict() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, domain.RegistrationID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, domain.RegistrationID(uuid.New())), sentinel.ErrNotFound)

	registration := s.newRegistration("42")
	s.Require().NoError(s.store.Create(ctx, registration))
	s.Require().ErrorIs(s.store.Create(ctx, registration), sentinel.ErrConflict)
}
