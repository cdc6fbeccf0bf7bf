// Package store persists rules and their components. Stores are pure I/O;
// invalidation and policy decisions belong to the rules service.
package store

import (
	"context"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
)

// RuleStore is the persistence contract for rules. Deleting a rule cascades
// deletion of its components; deleting an event's rules goes through
// DeleteByEvent so event removal can cascade too.
type RuleStore interface {
	Create(ctx context.Context, rule *models.Rule) error
	FindByID(ctx context.Context, id domain.RuleID) (*models.Rule, error)
	ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Rule, error)
	// ListByEventTrigger returns the event's persisted rules for a trigger.
	// With activeOnly set, inactive rules are filtered out.
	ListByEventTrigger(ctx context.Context, event domain.EntityRef, triggerID string, activeOnly bool) ([]*models.Rule, error)
	// Update replaces the rule's mutable fields and its component list.
	Update(ctx context.Context, rule *models.Rule) error
	Delete(ctx context.Context, id domain.RuleID) error
	// DeleteByEvent removes every rule owned by the event and returns how
	// many were deleted.
	DeleteByEvent(ctx context.Context, event domain.EntityRef) (int, error)

	AddComponent(ctx context.Context, component *models.RuleComponent) error
	UpdateComponent(ctx context.Context, component *models.RuleComponent) error
	DeleteComponent(ctx context.Context, id domain.ComponentID) error
	FindComponent(ctx context.Context, id domain.ComponentID) (*models.RuleComponent, error)
}
