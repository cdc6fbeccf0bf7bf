// Package service owns the rule lifecycle: creating, mutating, and deleting
// rules and components, and materializing event type defaults. Every mutation
// ends with a cache invalidation for the owning event.
package service

import (
	"context"
	"fmt"
	"log/slog"

	eventtypemodels "eventgate/internal/eventtype/models"
	"eventgate/internal/rules/cache"
	"eventgate/internal/rules/engine"
	"eventgate/internal/rules/models"
	"eventgate/internal/rules/store"
	"eventgate/pkg/domain"
	"eventgate/pkg/requestcontext"

	"github.com/google/uuid"
)

// ManageEventOperation is the permission checked against the acting account
// before any rule mutation. Rule and component access mirrors access to the
// owning event rather than carrying permissions of its own.
const ManageEventOperation = "manage event"

// ErrManageDenied is returned when the acting account may not manage the
// event's rules.
var ErrManageDenied = fmt.Errorf("event management denied")

// ErrCustomizationDisabled is returned when the event type does not allow
// per-event rule customization.
var ErrCustomizationDisabled = fmt.Errorf("rule customization disabled for event type")

// PermissionChecker is the external account permission collaborator.
type PermissionChecker interface {
	Can(ctx context.Context, account domain.EntityRef, operation string, target domain.EntityRef) (bool, error)
}

// EventTypeSource resolves the policy record for an event's type.
type EventTypeSource interface {
	Find(ctx context.Context, entityType, bundle string) (*eventtypemodels.EventType, error)
}

// Service mutates rules. Reads for evaluation go through the engine; this
// type exists so no mutation path can forget its invalidation obligation.
type Service struct {
	rules       store.RuleStore
	defaults    engine.DefaultSource
	eventTypes  EventTypeSource
	invalidator cache.Invalidator
	perms       PermissionChecker
	logger      *slog.Logger
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithPermissionChecker gates mutations on the external account permission
// check. Without it, callers are trusted to gate access themselves.
func WithPermissionChecker(p PermissionChecker) Option {
	return func(s *Service) { s.perms = p }
}

// New constructs the rule service.
func New(rules store.RuleStore, defaults engine.DefaultSource, eventTypes EventTypeSource, invalidator cache.Invalidator, logger *slog.Logger, opts ...Option) *Service {
	if invalidator == nil {
		invalidator = cache.NoopInvalidator{}
	}
	s := &Service{
		rules:       rules,
		defaults:    defaults,
		eventTypes:  eventTypes,
		invalidator: invalidator,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) authorize(ctx context.Context, event domain.EntityRef) error {
	if s.perms == nil {
		return nil
	}
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() {
		return ErrManageDenied
	}
	allowed, err := s.perms.Can(ctx, actor, ManageEventOperation, event)
	if err != nil {
		return fmt.Errorf("permission check for %s: %w", event, err)
	}
	if !allowed {
		return ErrManageDenied
	}
	return nil
}

// invalidate purges memoized resolutions for the event. Invalidation failures
// are logged, not returned: the mutation already happened and the cache TTL
// bounds the staleness window.
func (s *Service) invalidate(ctx context.Context, event domain.EntityRef) {
	if err := s.invalidator.Invalidate(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "rule cache invalidation failed",
			"event", event.String(),
			"error", err,
		)
	}
}

// CreateRule persists a new rule with its components.
func (s *Service) CreateRule(ctx context.Context, event domain.EntityRef, triggerID string, components []models.RuleComponent) (*models.Rule, error) {
	if err := s.authorize(ctx, event); err != nil {
		return nil, err
	}
	rule, err := models.NewRule(domain.RuleID(uuid.New()), event, triggerID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		if err := (&c).Validate(); err != nil {
			return nil, err
		}
		c.ID = domain.ComponentID(uuid.New())
		c.RuleID = rule.ID
		rule.Components = append(rule.Components, c)
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	s.invalidate(ctx, event)
	return rule, nil
}

// SetRuleActive flips a rule's active flag.
func (s *Service) SetRuleActive(ctx context.Context, id domain.RuleID, active bool) (*models.Rule, error) {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, rule.EventRef); err != nil {
		return nil, err
	}
	if rule.Active == active {
		return rule, nil
	}
	rule.Active = active
	rule.UpdatedAt = requestcontext.Now(ctx)
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	s.invalidate(ctx, rule.EventRef)
	return rule, nil
}

// DeleteRule removes a rule and, by cascade, its components.
func (s *Service) DeleteRule(ctx context.Context, id domain.RuleID) error {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, rule.EventRef); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	s.invalidate(ctx, rule.EventRef)
	return nil
}

// DeleteEventRules removes every rule owned by an event. Called from the
// event deletion cascade.
func (s *Service) DeleteEventRules(ctx context.Context, event domain.EntityRef) (int, error) {
	if err := s.authorize(ctx, event); err != nil {
		return 0, err
	}
	deleted, err := s.rules.DeleteByEvent(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("delete event rules: %w", err)
	}
	if deleted > 0 {
		s.invalidate(ctx, event)
	}
	return deleted, nil
}

// ListRules returns an event's persisted rules, optionally narrowed to one
// trigger. Inactive rules are included; this is the management view.
func (s *Service) ListRules(ctx context.Context, event domain.EntityRef, triggerID string) ([]*models.Rule, error) {
	if triggerID == "" {
		return s.rules.ListByEvent(ctx, event)
	}
	return s.rules.ListByEventTrigger(ctx, event, triggerID, false)
}

// AddComponent attaches a condition or action to an existing rule.
func (s *Service) AddComponent(ctx context.Context, ruleID domain.RuleID, component models.RuleComponent) (*models.RuleComponent, error) {
	if err := component.Validate(); err != nil {
		return nil, err
	}
	rule, err := s.rules.FindByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, rule.EventRef); err != nil {
		return nil, err
	}
	component.ID = domain.ComponentID(uuid.New())
	component.RuleID = ruleID
	if err := s.rules.AddComponent(ctx, &component); err != nil {
		return nil, fmt.Errorf("add component: %w", err)
	}
	s.invalidate(ctx, rule.EventRef)
	return &component, nil
}

// UpdateComponent replaces a component's plugin and configuration.
func (s *Service) UpdateComponent(ctx context.Context, component models.RuleComponent) error {
	existing, err := s.rules.FindComponent(ctx, component.ID)
	if err != nil {
		return err
	}
	rule, err := s.rules.FindByID(ctx, existing.RuleID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, rule.EventRef); err != nil {
		return err
	}
	component.RuleID = existing.RuleID
	component.Type = existing.Type
	if err := component.Validate(); err != nil {
		return err
	}
	if err := s.rules.UpdateComponent(ctx, &component); err != nil {
		return fmt.Errorf("update component: %w", err)
	}
	s.invalidate(ctx, rule.EventRef)
	return nil
}

// DeleteComponent removes a single component from its rule.
func (s *Service) DeleteComponent(ctx context.Context, id domain.ComponentID) error {
	existing, err := s.rules.FindComponent(ctx, id)
	if err != nil {
		return err
	}
	rule, err := s.rules.FindByID(ctx, existing.RuleID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, rule.EventRef); err != nil {
		return err
	}
	if err := s.rules.DeleteComponent(ctx, id); err != nil {
		return fmt.Errorf("delete component: %w", err)
	}
	s.invalidate(ctx, rule.EventRef)
	return nil
}

// Customize materializes the event type defaults for one trigger into
// persisted rules scoped to the event. From then on the event no longer
// follows default updates for that trigger. Idempotent: if the trigger is
// already customized, the existing rules are returned unchanged.
func (s *Service) Customize(ctx context.Context, event models.Event, triggerID string) ([]*models.Rule, error) {
	if err := s.authorize(ctx, event.Ref); err != nil {
		return nil, err
	}

	eventType, err := s.eventTypes.Find(ctx, event.Ref.Type, event.Bundle)
	if err != nil {
		return nil, fmt.Errorf("load event type %s.%s: %w", event.Ref.Type, event.Bundle, err)
	}
	if !eventType.CustomRulesAllowed {
		return nil, ErrCustomizationDisabled
	}

	existing, err := s.rules.ListByEventTrigger(ctx, event.Ref, triggerID, false)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	templates, err := s.defaults.ListRulesByTrigger(ctx, event.Ref.Type, event.Bundle, triggerID)
	if err != nil {
		return nil, fmt.Errorf("load default rules: %w", err)
	}

	now := requestcontext.Now(ctx)
	materialized := make([]*models.Rule, 0, len(templates))
	for _, template := range templates {
		rule := engine.SynthesizeRule(template, event.Ref)
		rule.ID = domain.RuleID(uuid.New())
		rule.Synthesized = false
		rule.CreatedAt = now
		rule.UpdatedAt = now
		for i := range rule.Components {
			rule.Components[i].ID = domain.ComponentID(uuid.New())
			rule.Components[i].RuleID = rule.ID
		}
		if err := s.rules.Create(ctx, rule); err != nil {
			return nil, fmt.Errorf("materialize rule from %s: %w", template.Key(), err)
		}
		materialized = append(materialized, rule)
	}
	if len(materialized) > 0 {
		s.invalidate(ctx, event.Ref)
	}
	s.logger.InfoContext(ctx, "event trigger customized",
		"event", event.Ref.String(),
		"trigger", triggerID,
		"rules", len(materialized),
	)
	return materialized, nil
}
