//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"eventgate/internal/rules/models"
	"eventgate/internal/rules/store"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
	"eventgate/pkg/testutil/containers"
)

type PostgresRuleStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresRuleStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRuleStoreSuite))
}

func (s *PostgresRuleStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresRuleStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresRuleStoreSuite) newRule(eventID string) *models.Rule {
	rule, err := models.NewRule(
		domain.RuleID(uuid.New()),
		domain.EntityRef{Type: "node", ID: eventID},
		models.TriggerRegister,
		time.Now().UTC().Truncate(time.Millisecond),
	)
	s.Require().NoError(err)
	rule.AddCondition(domain.ComponentID(uuid.New()), "user_role", models.Configuration{
		"roles": []any{"member"},
	})
	rule.AddAction(domain.ComponentID(uuid.New()), "registration_operations", models.Configuration{
		"operations": map[string]any{"create": true},
	})
	return rule
}

func (s *PostgresRuleStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	rule := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, rule))

	found, err := s.store.FindByID(ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(rule.ID, found.ID)
	s.Equal(rule.EventRef, found.EventRef)
	s.True(found.Active)
	s.Require().Len(found.Components, 2)
	s.Equal(models.ComponentCondition, found.Components[0].Type)
	s.Equal([]string{"member"}, found.Components[0].Configuration.StringSlice("roles"))
	s.Equal(map[string]bool{"create": true}, found.Components[1].Configuration.BoolMap("operations"))
}

func (s *PostgresRuleStoreSuite) TestDuplicateCreate() {
	ctx := context.Background()
	rule := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, rule))
	s.Require().ErrorIs(s.store.Create(ctx, rule), sentinel.ErrConflict)
}

func (s *PostgresRuleStoreSuite) TestListByEventTrigger() {
	ctx := context.Background()
	active := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, active))

	inactive := s.newRule("42")
	inactive.Active = false
	s.Require().NoError(s.store.Create(ctx, inactive))

	other := s.newRule("99")
	s.Require().NoError(s.store.Create(ctx, other))

	event := domain.EntityRef{Type: "node", ID: "42"}

	all, err := s.store.ListByEventTrigger(ctx, event, models.TriggerRegister, false)
	s.Require().NoError(err)
	s.Len(all, 2)

	activeOnly, err := s.store.ListByEventTrigger(ctx, event, models.TriggerRegister, true)
	s.Require().NoError(err)
	s.Require().Len(activeOnly, 1)
	s.Equal(active.ID, activeOnly[0].ID)
}

func (s *PostgresRuleStoreSuite) TestUpdateReplacesComponents() {
	ctx := context.Background()
	rule := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, rule))

	rule.Active = false
	rule.Components = rule.Components[1:]
	s.Require().NoError(s.store.Update(ctx, rule))

	found, err := s.store.FindByID(ctx, rule.ID)
	s.Require().NoError(err)
	s.False(found.Active)
	s.Require().Len(found.Components, 1)
	s.Equal(models.ComponentAction, found.Components[0].Type)
}

func (s *PostgresRuleStoreSuite) TestComponentLifecycle() {
	ctx := context.Background()
	rule := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, rule))

	component := &models.RuleComponent{
		ID:            domain.ComponentID(uuid.New()),
		RuleID:        rule.ID,
		Type:          models.ComponentCondition,
		PluginID:      "identity_confirmed",
		Configuration: models.Configuration{},
	}
	s.Require().NoError(s.store.AddComponent(ctx, component))

	component.Configuration = models.Configuration{"require": true}
	s.Require().NoError(s.store.UpdateComponent(ctx, component))

	found, err := s.store.FindComponent(ctx, component.ID)
	s.Require().NoError(err)
	s.Equal("identity_confirmed", found.PluginID)

	s.Require().NoError(s.store.DeleteComponent(ctx, component.ID))
	_, err = s.store.FindComponent(ctx, component.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRuleStoreSuite) TestDeleteCascades() {
	ctx := context.Background()
	rule := s.newRule("42")
	s.Require().NoError(s.store.Create(ctx, rule))

	s.Require().NoError(s.store.Delete(ctx, rule.ID))
	_, err := s.store.FindByID(ctx, rule.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindComponent(ctx, rule.Components[0].ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRuleStoreSuite) TestDeleteByEvent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newRule("42")))
	s.Require().NoError(s.store.Create(ctx, s.newRule("42")))
	keep := s.newRule("99")
	s.Require().NoError(s.store.Create(ctx, keep))

	deleted, err := s.store.DeleteByEvent(ctx, domain.EntityRef{Type: "node", ID: "42"})
	s.Require().NoError(err)
	s.Equal(2, deleted)

	_, err = s.store.FindByID(ctx, keep.ID)
	s.Require().NoError(err)
}

func (s *PostgresRuleStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, domain.RuleID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, domain.RuleID(uuid.New())), sentinel.ErrNotFound)

	orphan := &models.RuleComponent{
		ID:       domain.ComponentID(uuid.New()),
		RuleID:   domain.RuleID(uuid.New()),
		Type:     models.ComponentCondition,
		PluginID: "user_role",
	}
	s.Require().Error(s.store.AddComponent(ctx, orphan))
}
