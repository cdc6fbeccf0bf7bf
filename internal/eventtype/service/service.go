// Package service manages event type policies and their default rule
// templates. Template mutations purge cached resolutions for the whole
// entity type, because every uncustomized event of that type re-reads the
// templates on its next resolution.
package service

import (
	"context"
	"log/slog"

	"eventgate/internal/eventtype/models"
	"eventgate/internal/eventtype/store"
	"eventgate/internal/rules/cache"
)

type Service struct {
	types       store.EventTypeStore
	templates   store.EventTypeRuleStore
	invalidator cache.TypeInvalidator
	logger      *slog.Logger
}

type Option func(*Service)

// WithTypeInvalidator wires cache purges into template mutations.
func WithTypeInvalidator(inv cache.TypeInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func New(types store.EventTypeStore, templates store.EventTypeRuleStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		types:       types,
		templates:   templates,
		invalidator: cache.NoopInvalidator{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveType creates or updates an event type policy. Policy flags feed the
// registration guard directly on its next check, so no cache purge is needed.
func (s *Service) SaveType(ctx context.Context, eventType *models.EventType) error {
	if err := eventType.Validate(); err != nil {
		return err
	}
	if err := s.types.Save(ctx, eventType); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "event type saved",
		"entity_type", eventType.EntityType,
		"bundle", eventType.Bundle,
		"custom_rules_allowed", eventType.CustomRulesAllowed,
	)
	return nil
}

func (s *Service) FindType(ctx context.Context, entityType, bundle string) (*models.EventType, error) {
	return s.types.Find(ctx, entityType, bundle)
}

func (s *Service) ListTypes(ctx context.Context) ([]*models.EventType, error) {
	return s.types.List(ctx)
}

// DeleteType removes an event type and its templates. Events of the deleted
// type fall back to zero defaults, so their cached resolutions are purged.
func (s *Service) DeleteType(ctx context.Context, entityType, bundle string) error {
	if err := s.types.Delete(ctx, entityType, bundle); err != nil {
		return err
	}
	s.invalidateType(ctx, entityType)
	s.logger.InfoContext(ctx, "event type deleted",
		"entity_type", entityType,
		"bundle", bundle,
	)
	return nil
}

// SaveTemplate creates or updates a default rule template.
func (s *Service) SaveTemplate(ctx context.Context, rule *models.EventTypeRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.templates.SaveRule(ctx, rule); err != nil {
		return err
	}
	s.invalidateType(ctx, rule.EventEntityType)
	s.logger.InfoContext(ctx, "default rule template saved",
		"entity_type", rule.EventEntityType,
		"bundle", rule.EventBundle,
		"machine_name", rule.MachineName,
		"trigger", rule.TriggerID,
	)
	return nil
}

func (s *Service) FindTemplate(ctx context.Context, entityType, bundle, machineName string) (*models.EventTypeRule, error) {
	return s.templates.FindRule(ctx, entityType, bundle, machineName)
}

func (s *Service) ListTemplates(ctx context.Context, entityType, bundle string) ([]*models.EventTypeRule, error) {
	return s.templates.ListRulesByType(ctx, entityType, bundle)
}

func (s *Service) DeleteTemplate(ctx context.Context, entityType, bundle, machineName string) error {
	if err := s.templates.DeleteRule(ctx, entityType, bundle, machineName); err != nil {
		return err
	}
	s.invalidateType(ctx, entityType)
	s.logger.InfoContext(ctx, "default rule template deleted",
		"entity_type", entityType,
		"bundle", bundle,
		"machine_name", machineName,
	)
	return nil
}

// invalidateType logs purge failures instead of failing the mutation. The
// cache carries a TTL so a missed purge heals on expiry.
func (s *Service) invalidateType(ctx context.Context, entityType string) {
	if err := s.invalidator.InvalidateType(ctx, entityType); err != nil {
		s.logger.WarnContext(ctx, "resolution cache purge failed",
			"entity_type", entityType,
			"error", err,
		)
	}
}
