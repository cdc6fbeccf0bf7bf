package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"eventgate/internal/rules/models"
	"eventgate/internal/rules/plugin"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

type RuleStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	event domain.EntityRef
}

func (s *RuleStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.event = domain.EntityRef{Type: "node", ID: "1"}
}

func TestRuleStoreSuite(t *testing.T) {
	suite.Run(t, new(RuleStoreSuite))
}

func (s *RuleStoreSuite) newRule(event domain.EntityRef) *models.Rule {
	rule, err := models.NewRule(domain.RuleID(uuid.New()), event, models.TriggerRegister, time.Now())
	s.Require().NoError(err)
	rule.AddAction(domain.ComponentID(uuid.New()), plugin.PluginRegistrationOperations, models.Configuration{
		plugin.ConfigKeyOperations: map[string]any{models.OperationCreate: true},
	})
	return rule
}

func (s *RuleStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds a rule with components", func() {
		rule := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, rule))

		found, err := s.store.FindByID(s.ctx, rule.ID)
		s.Require().NoError(err)
		s.Equal(rule.TriggerID, found.TriggerID)
		s.Len(found.Components, 1)
	})

	s.Run("rejects duplicate rule IDs", func() {
		rule := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, rule))
		s.Require().ErrorIs(s.store.Create(s.ctx, rule), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, domain.RuleID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned rules are copies", func() {
		rule := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, rule))

		found, err := s.store.FindByID(s.ctx, rule.ID)
		s.Require().NoError(err)
		found.TriggerID = "mutated"

		again, err := s.store.FindByID(s.ctx, rule.ID)
		s.Require().NoError(err)
		s.Equal(models.TriggerRegister, again.TriggerID)
	})
}

func (s *RuleStoreSuite) TestListing() {
	s.Run("lists by event and trigger with active filter", func() {
		active := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, active))

		inactive := s.newRule(s.event)
		inactive.Active = false
		s.Require().NoError(s.store.Create(s.ctx, inactive))

		other := s.newRule(domain.EntityRef{Type: "node", ID: "2"})
		s.Require().NoError(s.store.Create(s.ctx, other))

		all, err := s.store.ListByEventTrigger(s.ctx, s.event, models.TriggerRegister, false)
		s.Require().NoError(err)
		s.Len(all, 2)

		activeOnly, err := s.store.ListByEventTrigger(s.ctx, s.event, models.TriggerRegister, true)
		s.Require().NoError(err)
		s.Require().Len(activeOnly, 1)
		s.Equal(active.ID, activeOnly[0].ID)
	})

	s.Run("ListByEvent spans triggers", func() {
		operation := s.newRule(s.event)
		operation.TriggerID = models.TriggerRegistrationOperation
		s.Require().NoError(s.store.Create(s.ctx, operation))

		rules, err := s.store.ListByEvent(s.ctx, s.event)
		s.Require().NoError(err)
		s.Len(rules, 3)
	})
}

func (s *RuleStoreSuite) TestDeletion() {
	s.Run("delete removes the rule and its components", func() {
		rule := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, rule))
		componentID := rule.Components[0].ID

		s.Require().NoError(s.store.Delete(s.ctx, rule.ID))

		_, err := s.store.FindByID(s.ctx, rule.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindComponent(s.ctx, componentID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("DeleteByEvent reports the count", func() {
		s.Require().NoError(s.store.Create(s.ctx, s.newRule(s.event)))
		s.Require().NoError(s.store.Create(s.ctx, s.newRule(s.event)))
		s.Require().NoError(s.store.Create(s.ctx, s.newRule(domain.EntityRef{Type: "node", ID: "9"})))

		deleted, err := s.store.DeleteByEvent(s.ctx, s.event)
		s.Require().NoError(err)
		s.Equal(2, deleted)

		remaining, err := s.store.ListByEvent(s.ctx, s.event)
		s.Require().NoError(err)
		s.Empty(remaining)
	})
}

func (s *RuleStoreSuite) TestComponents() {
	s.Run("adds, updates, and deletes a component", func() {
		rule := s.newRule(s.event)
		s.Require().NoError(s.store.Create(s.ctx, rule))

		component := &models.RuleComponent{
			ID:       domain.ComponentID(uuid.New()),
			RuleID:   rule.ID,
			Type:     models.ComponentCondition,
			PluginID: plugin.PluginUserRole,
			Configuration: models.Configuration{
				plugin.ConfigKeyRoles: []any{"attendee"},
			},
		}
		s.Require().NoError(s.store.AddComponent(s.ctx, component))

		found, err := s.store.FindComponent(s.ctx, component.ID)
		s.Require().NoError(err)
		s.Equal(plugin.PluginUserRole, found.PluginID)

		component.Configuration = models.Configuration{plugin.ConfigKeyRoles: []any{"organizer"}}
		s.Require().NoError(s.store.UpdateComponent(s.ctx, component))

		updated, err := s.store.FindComponent(s.ctx, component.ID)
		s.Require().NoError(err)
		s.Equal([]string{"organizer"}, updated.Configuration.StringSlice(plugin.ConfigKeyRoles))

		s.Require().NoError(s.store.DeleteComponent(s.ctx, component.ID))
		_, err = s.store.FindComponent(s.ctx, component.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		reloaded, err := s.store.FindByID(s.ctx, rule.ID)
		s.Require().NoError(err)
		s.Len(reloaded.Components, 1)
	})

	s.Run("adding to a missing rule fails", func() {
		component := &models.RuleComponent{
			ID:       domain.ComponentID(uuid.New()),
			RuleID:   domain.RuleID(uuid.New()),
			Type:     models.ComponentAction,
			PluginID: plugin.PluginRegistrationOperations,
		}
		s.Require().ErrorIs(s.store.AddComponent(s.ctx, component), sentinel.ErrNotFound)
	})
}
