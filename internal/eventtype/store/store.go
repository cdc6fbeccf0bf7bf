// Package store persists event type policy records and default rule
// templates.
package store

import (
	"context"

	"eventgate/internal/eventtype/models"
)

// EventTypeStore is the persistence contract for event type policy records.
type EventTypeStore interface {
	Save(ctx context.Context, eventType *models.EventType) error
	Find(ctx context.Context, entityType, bundle string) (*models.EventType, error)
	List(ctx context.Context) ([]*models.EventType, error)
	Delete(ctx context.Context, entityType, bundle string) error
}

// EventTypeRuleStore is the persistence contract for default rule templates.
// The method names carry the Rule prefix so one store type can implement both
// contracts.
type EventTypeRuleStore interface {
	SaveRule(ctx context.Context, rule *models.EventTypeRule) error
	FindRule(ctx context.Context, entityType, bundle, machineName string) (*models.EventTypeRule, error)
	ListRulesByType(ctx context.Context, entityType, bundle string) ([]*models.EventTypeRule, error)
	ListRulesByTrigger(ctx context.Context, entityType, bundle, triggerID string) ([]*models.EventTypeRule, error)
	DeleteRule(ctx context.Context, entityType, bundle, machineName string) error
}
