package handler

import (
	"fmt"
	"time"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
)

// EntityRefDTO is the wire form of an external entity reference.
type EntityRefDTO struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (d EntityRefDTO) Parse() (domain.EntityRef, error) {
	return domain.NewEntityRef(d.EntityType, d.EntityID)
}

// IdentityDTO carries the evaluation inputs for one identity.
type IdentityDTO struct {
	EntityRefDTO
	Roles     []string `json:"roles"`
	Confirmed bool     `json:"confirmed"`
}

// ResolveRequest asks which operations a trigger grants in a context.
// Identity is omitted for anonymous evaluation.
type ResolveRequest struct {
	Event    EntityRefDTO `json:"event"`
	Bundle   string       `json:"bundle"`
	Trigger  string       `json:"trigger"`
	Identity *IdentityDTO `json:"identity,omitempty"`
}

func (r ResolveRequest) Parse() (models.Event, models.EvalContext, string, error) {
	if r.Trigger == "" {
		return models.Event{}, models.EvalContext{}, "", fmt.Errorf("trigger is required")
	}
	ref, err := r.Event.Parse()
	if err != nil {
		return models.Event{}, models.EvalContext{}, "", err
	}
	event := models.Event{Ref: ref, Bundle: r.Bundle}
	ectx := models.EvalContext{Event: event}
	if r.Identity != nil {
		identityRef, err := r.Identity.Parse()
		if err != nil {
			return models.Event{}, models.EvalContext{}, "", fmt.Errorf("identity: %w", err)
		}
		ectx.Identity = &models.Identity{
			Ref:       identityRef,
			Roles:     r.Identity.Roles,
			Confirmed: r.Identity.Confirmed,
		}
	}
	return event, ectx, r.Trigger, nil
}

// ResolveResponse lists the granted operation names.
type ResolveResponse struct {
	Operations []string `json:"operations"`
}

// ComponentRequest is the wire form of a rule condition or action.
type ComponentRequest struct {
	Type          string         `json:"type"`
	PluginID      string         `json:"plugin_id"`
	Configuration map[string]any `json:"configuration"`
}

func (r ComponentRequest) Parse() (models.RuleComponent, error) {
	componentType, err := models.ParseComponentType(r.Type)
	if err != nil {
		return models.RuleComponent{}, err
	}
	return models.RuleComponent{
		Type:          componentType,
		PluginID:      r.PluginID,
		Configuration: models.Configuration(r.Configuration),
	}, nil
}

// CreateRuleRequest creates a rule with its initial components.
type CreateRuleRequest struct {
	Trigger    string             `json:"trigger"`
	Components []ComponentRequest `json:"components"`
}

func (r CreateRuleRequest) ParseComponents() ([]models.RuleComponent, error) {
	components := make([]models.RuleComponent, 0, len(r.Components))
	for i, c := range r.Components {
		component, err := c.Parse()
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		components = append(components, component)
	}
	return components, nil
}

// CustomizeRequest materializes an event's default rules for editing.
type CustomizeRequest struct {
	Bundle  string `json:"bundle"`
	Trigger string `json:"trigger"`
}

// SetActiveRequest flips a rule's active flag.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ComponentResponse is the wire form of a stored component.
type ComponentResponse struct {
	ID            string         `json:"id"`
	RuleID        string         `json:"rule_id"`
	Type          string         `json:"type"`
	PluginID      string         `json:"plugin_id"`
	Configuration map[string]any `json:"configuration"`
}

// RuleResponse is the wire form of a stored rule.
type RuleResponse struct {
	ID          string              `json:"id"`
	Event       EntityRefDTO        `json:"event"`
	Trigger     string              `json:"trigger"`
	Active      bool                `json:"active"`
	Synthesized bool                `json:"synthesized"`
	Components  []ComponentResponse `json:"components"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func FromComponent(c *models.RuleComponent) ComponentResponse {
	return ComponentResponse{
		ID:            c.ID.String(),
		RuleID:        c.RuleID.String(),
		Type:          string(c.Type),
		PluginID:      c.PluginID,
		Configuration: c.Configuration,
	}
}

func FromRule(rule *models.Rule) RuleResponse {
	components := make([]ComponentResponse, 0, len(rule.Components))
	for i := range rule.Components {
		components = append(components, FromComponent(&rule.Components[i]))
	}
	return RuleResponse{
		ID:          rule.ID.String(),
		Event:       EntityRefDTO{EntityType: rule.EventRef.Type, EntityID: rule.EventRef.ID},
		Trigger:     rule.TriggerID,
		Active:      rule.Active,
		Synthesized: rule.Synthesized,
		Components:  components,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

func FromRules(rules []*models.Rule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, FromRule(rule))
	}
	return out
}
