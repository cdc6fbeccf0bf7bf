package store

import (
	"context"
	"fmt"
	"sync"

	"eventgate/internal/eventtype/models"
	"eventgate/pkg/platform/sentinel"
)

// InMemory keeps event types and their default rule templates in process
// memory. Both are configuration-level records read far more often than
// written.
type InMemory struct {
	mu    sync.RWMutex
	types map[string]*models.EventType
	rules map[string]*models.EventTypeRule
}

// NewInMemory returns an empty in-memory event type store.
func NewInMemory() *InMemory {
	return &InMemory{
		types: make(map[string]*models.EventType),
		rules: make(map[string]*models.EventTypeRule),
	}
}

func typeKey(entityType, bundle string) string {
	return entityType + "." + bundle
}

func ruleKey(entityType, bundle, machineName string) string {
	return entityType + "." + bundle + "." + machineName
}

func (s *InMemory) Save(_ context.Context, eventType *models.EventType) error {
	if err := eventType.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *eventType
	s.types[eventType.Key()] = &copied
	return nil
}

func (s *InMemory) Find(_ context.Context, entityType, bundle string) (*models.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eventType, ok := s.types[typeKey(entityType, bundle)]
	if !ok {
		return nil, fmt.Errorf("event type %s.%s: %w", entityType, bundle, sentinel.ErrNotFound)
	}
	copied := *eventType
	return &copied, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EventType, 0, len(s.types))
	for _, eventType := range s.types {
		copied := *eventType
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, entityType, bundle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := typeKey(entityType, bundle)
	if _, ok := s.types[key]; !ok {
		return fmt.Errorf("event type %s.%s: %w", entityType, bundle, sentinel.ErrNotFound)
	}
	delete(s.types, key)
	// Templates belong to the type; removing the type removes its defaults.
	for k, rule := range s.rules {
		if rule.EventEntityType == entityType && rule.EventBundle == bundle {
			delete(s.rules, k)
		}
	}
	return nil
}

// SaveRule stores a default rule template keyed by
// (entity type, bundle, machine name).
func (s *InMemory) SaveRule(_ context.Context, rule *models.EventTypeRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.Key()] = cloneTemplate(rule)
	return nil
}

// FindRule retrieves one template.
func (s *InMemory) FindRule(_ context.Context, entityType, bundle, machineName string) (*models.EventTypeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[ruleKey(entityType, bundle, machineName)]
	if !ok {
		return nil, fmt.Errorf("event type rule %s.%s.%s: %w", entityType, bundle, machineName, sentinel.ErrNotFound)
	}
	return cloneTemplate(rule), nil
}

// ListRulesByType returns every template for an (entity type, bundle) pair.
func (s *InMemory) ListRulesByType(_ context.Context, entityType, bundle string) ([]*models.EventTypeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EventTypeRule
	for _, rule := range s.rules {
		if rule.EventEntityType == entityType && rule.EventBundle == bundle {
			out = append(out, cloneTemplate(rule))
		}
	}
	return out, nil
}

// ListRulesByTrigger narrows ListRulesByType to one trigger.
func (s *InMemory) ListRulesByTrigger(_ context.Context, entityType, bundle, triggerID string) ([]*models.EventTypeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EventTypeRule
	for _, rule := range s.rules {
		if rule.EventEntityType == entityType && rule.EventBundle == bundle && rule.TriggerID == triggerID {
			out = append(out, cloneTemplate(rule))
		}
	}
	return out, nil
}

// DeleteRule removes one template.
func (s *InMemory) DeleteRule(_ context.Context, entityType, bundle, machineName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ruleKey(entityType, bundle, machineName)
	if _, ok := s.rules[key]; !ok {
		return fmt.Errorf("event type rule %s.%s.%s: %w", entityType, bundle, machineName, sentinel.ErrNotFound)
	}
	delete(s.rules, key)
	return nil
}

func cloneTemplate(rule *models.EventTypeRule) *models.EventTypeRule {
	copied := *rule
	copied.Conditions = cloneComponents(rule.Conditions)
	copied.Actions = cloneComponents(rule.Actions)
	return &copied
}

func cloneComponents(components map[string]models.DefaultComponent) map[string]models.DefaultComponent {
	if components == nil {
		return nil
	}
	out := make(map[string]models.DefaultComponent, len(components))
	for name, component := range components {
		component.Configuration = component.Configuration.Clone()
		out[name] = component
	}
	return out
}
