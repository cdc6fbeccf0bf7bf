// Package models defines event type configuration: the per-(entity type,
// bundle) policy flags and the default rule templates that seed rules for
// events without customizations.
package models

import (
	"fmt"
	"sort"

	rulemodels "eventgate/internal/rules/models"
)

// EventType carries registration policy for every event sharing an
// (entity type, bundle) pair.
type EventType struct {
	EntityType string
	Bundle     string

	// AllowDuplicateRegistrants permits the same identity to appear on more
	// than one registrant within a registration.
	AllowDuplicateRegistrants bool

	// AllowAnonymousRegistrants permits registrants without an identity.
	AllowAnonymousRegistrants bool

	// CustomRulesAllowed permits event managers to materialize and edit
	// per-event rules. When false, events always evaluate the defaults.
	CustomRulesAllowed bool

	// DefaultRegistrantKind is the registrant kind assigned to new
	// registrants for events of this type.
	DefaultRegistrantKind string
}

// Key returns the identifier event types are stored under.
func (t *EventType) Key() string {
	return t.EntityType + "." + t.Bundle
}

// Validate checks the identifying fields.
func (t *EventType) Validate() error {
	if t.EntityType == "" {
		return fmt.Errorf("event type entity type is required")
	}
	if t.Bundle == "" {
		return fmt.Errorf("event type bundle is required")
	}
	return nil
}

// DefaultComponent is one named condition or action inside a default rule
// template: the plugin to invoke and its configuration.
type DefaultComponent struct {
	PluginID      string
	Configuration rulemodels.Configuration
}

// EventTypeRule is a configuration-level rule template keyed by
// (event entity type, event bundle, machine name). It is read-only at
// evaluation time and only used to synthesize transient rules for events with
// no customized rules for its trigger.
type EventTypeRule struct {
	EventEntityType string
	EventBundle     string
	MachineName     string
	TriggerID       string
	Conditions      map[string]DefaultComponent
	Actions         map[string]DefaultComponent
}

// Key returns the three-part identifier of the template.
func (r *EventTypeRule) Key() string {
	return r.EventEntityType + "." + r.EventBundle + "." + r.MachineName
}

// Validate checks identifying fields and requires at least one action, since
// a rule that grants nothing can never contribute.
func (r *EventTypeRule) Validate() error {
	if r.EventEntityType == "" {
		return fmt.Errorf("event type rule entity type is required")
	}
	if r.EventBundle == "" {
		return fmt.Errorf("event type rule bundle is required")
	}
	if r.MachineName == "" {
		return fmt.Errorf("event type rule machine name is required")
	}
	if r.TriggerID == "" {
		return fmt.Errorf("event type rule trigger is required")
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("event type rule needs at least one action")
	}
	return nil
}

// SetCondition adds or replaces a named condition.
func (r *EventTypeRule) SetCondition(name, pluginID string, cfg rulemodels.Configuration) *EventTypeRule {
	if r.Conditions == nil {
		r.Conditions = make(map[string]DefaultComponent)
	}
	r.Conditions[name] = DefaultComponent{PluginID: pluginID, Configuration: cfg}
	return r
}

// SetAction adds or replaces a named action.
func (r *EventTypeRule) SetAction(name, pluginID string, cfg rulemodels.Configuration) *EventTypeRule {
	if r.Actions == nil {
		r.Actions = make(map[string]DefaultComponent)
	}
	r.Actions[name] = DefaultComponent{PluginID: pluginID, Configuration: cfg}
	return r
}

// ConditionNames returns condition names in sorted order, so synthesized
// component ordering is stable.
func (r *EventTypeRule) ConditionNames() []string {
	return sortedNames(r.Conditions)
}

// ActionNames returns action names in sorted order.
func (r *EventTypeRule) ActionNames() []string {
	return sortedNames(r.Actions)
}

func sortedNames(components map[string]DefaultComponent) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
