// Package models defines the rule data model: event-scoped rules composed of
// condition and action components, evaluated per trigger.
package models

import (
	"fmt"
	"time"

	"eventgate/pkg/domain"
)

// Triggers are the named evaluation points rules attach to.
const (
	// TriggerRegister guards who may create registrations for an event.
	TriggerRegister = "event.register"
	// TriggerRegistrationOperation guards operations against existing registrations.
	TriggerRegistrationOperation = "registration.operation"
	// TriggerRegistrantOperation guards operations against registrants.
	TriggerRegistrantOperation = "registrant.operation"
)

// ComponentType partitions a rule's components into conditions and actions.
type ComponentType string

const (
	ComponentCondition ComponentType = "condition"
	ComponentAction    ComponentType = "action"
)

// ParseComponentType validates a component type string.
func ParseComponentType(s string) (ComponentType, error) {
	switch ComponentType(s) {
	case ComponentCondition, ComponentAction:
		return ComponentType(s), nil
	}
	return "", fmt.Errorf("unknown component type: %q", s)
}

// Configuration is the opaque payload handed to a plugin. The core never
// interprets it; each plugin parses the keys it cares about.
type Configuration map[string]any

// StringSlice extracts a list of strings from the configuration. Accepts both
// []string and []any (the shape surviving a JSON round trip).
func (c Configuration) StringSlice(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// BoolMap extracts a map of name to bool from the configuration. Accepts both
// map[string]bool and map[string]any.
func (c Configuration) BoolMap(key string) map[string]bool {
	switch v := c[key].(type) {
	case map[string]bool:
		return v
	case map[string]any:
		out := make(map[string]bool, len(v))
		for name, item := range v {
			if b, ok := item.(bool); ok {
				out[name] = b
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy so callers can hand configuration out without
// sharing the underlying map.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// RuleComponent is a single configured condition or action. Components are
// exclusively owned by their rule and never shared.
type RuleComponent struct {
	ID            domain.ComponentID
	RuleID        domain.RuleID
	Type          ComponentType
	PluginID      string
	Configuration Configuration
}

// Validate checks the fields a component cannot exist without.
func (c *RuleComponent) Validate() error {
	if c.PluginID == "" {
		return fmt.Errorf("component plugin id is required")
	}
	if _, err := ParseComponentType(string(c.Type)); err != nil {
		return err
	}
	return nil
}

// Rule is an event-scoped, trigger-scoped aggregate of condition and action
// components. A rule belongs to exactly one event; deleting the event cascades
// deletion of its rules.
type Rule struct {
	ID         domain.RuleID
	EventRef   domain.EntityRef
	TriggerID  string
	Active     bool
	Components []RuleComponent
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Synthesized marks a rule built on the fly from event type defaults.
	// Synthesized rules are never persisted unless customized.
	Synthesized bool
}

// NewRule constructs an active rule for an event and trigger.
func NewRule(id domain.RuleID, event domain.EntityRef, triggerID string, now time.Time) (*Rule, error) {
	if event.IsZero() {
		return nil, fmt.Errorf("rule event is required")
	}
	if triggerID == "" {
		return nil, fmt.Errorf("rule trigger is required")
	}
	return &Rule{
		ID:        id,
		EventRef:  event,
		TriggerID: triggerID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Conditions returns the condition components in declaration order.
func (r *Rule) Conditions() []RuleComponent {
	return r.componentsOfType(ComponentCondition)
}

// Actions returns the action components in declaration order.
func (r *Rule) Actions() []RuleComponent {
	return r.componentsOfType(ComponentAction)
}

func (r *Rule) componentsOfType(t ComponentType) []RuleComponent {
	var out []RuleComponent
	for _, c := range r.Components {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// AddCondition appends a condition component.
func (r *Rule) AddCondition(id domain.ComponentID, pluginID string, cfg Configuration) *Rule {
	return r.addComponent(id, ComponentCondition, pluginID, cfg)
}

// AddAction appends an action component.
func (r *Rule) AddAction(id domain.ComponentID, pluginID string, cfg Configuration) *Rule {
	return r.addComponent(id, ComponentAction, pluginID, cfg)
}

func (r *Rule) addComponent(id domain.ComponentID, t ComponentType, pluginID string, cfg Configuration) *Rule {
	r.Components = append(r.Components, RuleComponent{
		ID:            id,
		RuleID:        r.ID,
		Type:          t,
		PluginID:      pluginID,
		Configuration: cfg,
	})
	return r
}

// Clone returns a deep enough copy for handing rules across store boundaries.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	out.Components = make([]RuleComponent, len(r.Components))
	for i, c := range r.Components {
		c.Configuration = c.Configuration.Clone()
		out.Components[i] = c
	}
	return &out
}
