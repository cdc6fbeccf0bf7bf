//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"eventgate/internal/eventtype/models"
	"eventgate/internal/eventtype/store"
	rulemodels "eventgate/internal/rules/models"
	"eventgate/pkg/platform/sentinel"
	"eventgate/pkg/testutil/containers"
)

type PostgresEventTypeStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresEventTypeStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEventTypeStoreSuite))
}

func (s *PostgresEventTypeStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresEventTypeStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresEventTypeStoreSuite) saveConferenceType() {
	s.Require().NoError(s.store.Save(context.Background(), &models.EventType{
		EntityType:            "node",
		Bundle:                "conference",
		CustomRulesAllowed:    true,
		DefaultRegistrantKind: "person",
	}))
}

func (s *PostgresEventTypeStoreSuite) newTemplate(machineName string) *models.EventTypeRule {
	template := &models.EventTypeRule{
		EventEntityType: "node",
		EventBundle:     "conference",
		MachineName:     machineName,
		TriggerID:       rulemodels.TriggerRegister,
	}
	template.SetCondition("role", "user_role", rulemodels.Configuration{"roles": []any{"member"}})
	template.SetAction("grant", "registration_operations", rulemodels.Configuration{
		"operations": map[string]any{"create": true},
	})
	return template
}

func (s *PostgresEventTypeStoreSuite) TestTypeRoundTrip() {
	ctx := context.Background()
	s.saveConferenceType()

	found, err := s.store.Find(ctx, "node", "conference")
	s.Require().NoError(err)
	s.True(found.CustomRulesAllowed)
	s.Equal("person", found.DefaultRegistrantKind)

	found.AllowAnonymousRegistrants = true
	s.Require().NoError(s.store.Save(ctx, found))

	again, err := s.store.Find(ctx, "node", "conference")
	s.Require().NoError(err)
	s.True(again.AllowAnonymousRegistrants, "save should upsert")

	listed, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *PostgresEventTypeStoreSuite) TestTemplateRoundTrip() {
	ctx := context.Background()
	s.saveConferenceType()
	s.Require().NoError(s.store.SaveRule(ctx, s.newTemplate("open_registration")))

	found, err := s.store.FindRule(ctx, "node", "conference", "open_registration")
	s.Require().NoError(err)
	s.Equal(rulemodels.TriggerRegister, found.TriggerID)
	s.Require().Contains(found.Conditions, "role")
	s.Equal([]string{"member"}, found.Conditions["role"].Configuration.StringSlice("roles"))
	s.Require().Contains(found.Actions, "grant")
	s.Equal(map[string]bool{"create": true}, found.Actions["grant"].Configuration.BoolMap("operations"))
}

func (s *PostgresEventTypeStoreSuite) TestTemplateListing() {
	ctx := context.Background()
	s.saveConferenceType()
	s.Require().NoError(s.store.SaveRule(ctx, s.newTemplate("on_register")))

	manage := s.newTemplate("on_manage")
	manage.TriggerID = rulemodels.TriggerRegistrationOperation
	s.Require().NoError(s.store.SaveRule(ctx, manage))

	matched, err := s.store.ListRulesByTrigger(ctx, "node", "conference", rulemodels.TriggerRegister)
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	s.Equal("on_register", matched[0].MachineName)

	all, err := s.store.ListRulesByType(ctx, "node", "conference")
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresEventTypeStoreSuite) TestTypeDeletionCascadesTemplates() {
	ctx := context.Background()
	s.saveConferenceType()
	s.Require().NoError(s.store.SaveRule(ctx, s.newTemplate("on_register")))

	s.Require().NoError(s.store.Delete(ctx, "node", "conference"))

	_, err := s.store.Find(ctx, "node", "conference")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindRule(ctx, "node", "conference", "on_register")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresEventTypeStoreSuite) TestNotFound() {
	ctx := context.Background()
	_, err := s.store.Find(ctx, "node", "nonexistent")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, "node", "nonexistent"), sentinel.ErrNotFound)
	s.Require().ErrorIs(s.store.DeleteRule(ctx, "node", "conference", "ghost"), sentinel.ErrNotFound)
}
