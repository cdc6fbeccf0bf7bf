package store

import (
	"context"
	"fmt"
	"sync"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

// InMemory keeps rules in process memory. It favors clarity over performance
// and backs unit tests as well as single-process deployments.
type InMemory struct {
	mu    sync.RWMutex
	rules map[domain.RuleID]*models.Rule
	// componentOwner indexes component IDs back to their owning rule so
	// component operations don't scan every rule.
	componentOwner map[domain.ComponentID]domain.RuleID
}

// NewInMemory returns an empty in-memory rule store.
func NewInMemory() *InMemory {
	return &InMemory{
		rules:          make(map[domain.RuleID]*models.Rule),
		componentOwner: make(map[domain.ComponentID]domain.RuleID),
	}
}

func (s *InMemory) Create(_ context.Context, rule *models.Rule) error {
	if rule == nil || rule.ID.IsNil() {
		return fmt.Errorf("rule with id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s: %w", rule.ID, sentinel.ErrConflict)
	}
	s.rules[rule.ID] = rule.Clone()
	for _, c := range rule.Components {
		s.componentOwner[c.ID] = rule.ID
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RuleID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, sentinel.ErrNotFound)
	}
	return rule.Clone(), nil
}

func (s *InMemory) ListByEvent(_ context.Context, event domain.EntityRef) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Rule
	for _, rule := range s.rules {
		if rule.EventRef.Equal(event) {
			out = append(out, rule.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) ListByEventTrigger(_ context.Context, event domain.EntityRef, triggerID string, activeOnly bool) ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Rule
	for _, rule := range s.rules {
		if !rule.EventRef.Equal(event) || rule.TriggerID != triggerID {
			continue
		}
		if activeOnly && !rule.Active {
			continue
		}
		out = append(out, rule.Clone())
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, rule *models.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok {
		return fmt.Errorf("rule %s: %w", rule.ID, sentinel.ErrNotFound)
	}
	for _, c := range existing.Components {
		delete(s.componentOwner, c.ID)
	}
	s.rules[rule.ID] = rule.Clone()
	for _, c := range rule.Components {
		s.componentOwner[c.ID] = rule.ID
	}
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, sentinel.ErrNotFound)
	}
	for _, c := range rule.Components {
		delete(s.componentOwner, c.ID)
	}
	delete(s.rules, id)
	return nil
}

func (s *InMemory) DeleteByEvent(_ context.Context, event domain.EntityRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, rule := range s.rules {
		if !rule.EventRef.Equal(event) {
			continue
		}
		for _, c := range rule.Components {
			delete(s.componentOwner, c.ID)
		}
		delete(s.rules, id)
		deleted++
	}
	return deleted, nil
}

func (s *InMemory) AddComponent(_ context.Context, component *models.RuleComponent) error {
	if component == nil {
		return fmt.Errorf("component is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[component.RuleID]
	if !ok {
		return fmt.Errorf("rule %s: %w", component.RuleID, sentinel.ErrNotFound)
	}
	if _, exists := s.componentOwner[component.ID]; exists {
		return fmt.Errorf("component %s: %w", component.ID, sentinel.ErrConflict)
	}
	c := *component
	c.Configuration = component.Configuration.Clone()
	rule.Components = append(rule.Components, c)
	s.componentOwner[c.ID] = rule.ID
	return nil
}

func (s *InMemory) UpdateComponent(_ context.Context, component *models.RuleComponent) error {
	if component == nil {
		return fmt.Errorf("component is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ruleID, ok := s.componentOwner[component.ID]
	if !ok {
		return fmt.Errorf("component %s: %w", component.ID, sentinel.ErrNotFound)
	}
	rule := s.rules[ruleID]
	for i := range rule.Components {
		if rule.Components[i].ID == component.ID {
			c := *component
			c.RuleID = ruleID
			c.Configuration = component.Configuration.Clone()
			rule.Components[i] = c
			return nil
		}
	}
	return fmt.Errorf("component %s: %w", component.ID, sentinel.ErrNotFound)
}

func (s *InMemory) DeleteComponent(_ context.Context, id domain.ComponentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ruleID, ok := s.componentOwner[id]
	if !ok {
		return fmt.Errorf("component %s: %w", id, sentinel.ErrNotFound)
	}
	rule := s.rules[ruleID]
	for i := range rule.Components {
		if rule.Components[i].ID == id {
			rule.Components = append(rule.Components[:i], rule.Components[i+1:]...)
			break
		}
	}
	delete(s.componentOwner, id)
	return nil
}

func (s *InMemory) FindComponent(_ context.Context, id domain.ComponentID) (*models.RuleComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ruleID, ok := s.componentOwner[id]
	if !ok {
		return nil, fmt.Errorf("component %s: %w", id, sentinel.ErrNotFound)
	}
	rule := s.rules[ruleID]
	for i := range rule.Components {
		if rule.Components[i].ID == id {
			c := rule.Components[i]
			c.Configuration = c.Configuration.Clone()
			return &c, nil
		}
	}
	return nil, fmt.Errorf("component %s: %w", id, sentinel.ErrNotFound)
}
