package handler

import (
	"eventgate/internal/eventtype/models"
	rulemodels "eventgate/internal/rules/models"
)

// EventTypeRequest is the wire form of an event type policy. The key comes
// from the URL.
type EventTypeRequest struct {
	AllowDuplicateRegistrants bool   `json:"allow_duplicate_registrants"`
	AllowAnonymousRegistrants bool   `json:"allow_anonymous_registrants"`
	CustomRulesAllowed        bool   `json:"custom_rules_allowed"`
	DefaultRegistrantKind     string `json:"default_registrant_kind"`
}

func (r EventTypeRequest) ToModel(entityType, bundle string) *models.EventType {
	return &models.EventType{
		EntityType:                entityType,
		Bundle:                    bundle,
		AllowDuplicateRegistrants: r.AllowDuplicateRegistrants,
		AllowAnonymousRegistrants: r.AllowAnonymousRegistrants,
		CustomRulesAllowed:        r.CustomRulesAllowed,
		DefaultRegistrantKind:     r.DefaultRegistrantKind,
	}
}

// EventTypeResponse mirrors EventTypeRequest with the key included.
type EventTypeResponse struct {
	EntityType                string `json:"entity_type"`
	Bundle                    string `json:"bundle"`
	AllowDuplicateRegistrants bool   `json:"allow_duplicate_registrants"`
	AllowAnonymousRegistrants bool   `json:"allow_anonymous_registrants"`
	CustomRulesAllowed        bool   `json:"custom_rules_allowed"`
	DefaultRegistrantKind     string `json:"default_registrant_kind"`
}

func FromEventType(eventType *models.EventType) EventTypeResponse {
	return EventTypeResponse{
		EntityType:                eventType.EntityType,
		Bundle:                    eventType.Bundle,
		AllowDuplicateRegistrants: eventType.AllowDuplicateRegistrants,
		AllowAnonymousRegistrants: eventType.AllowAnonymousRegistrants,
		CustomRulesAllowed:        eventType.CustomRulesAllowed,
		DefaultRegistrantKind:     eventType.DefaultRegistrantKind,
	}
}

// ComponentDTO is the wire form of a template condition or action.
type ComponentDTO struct {
	PluginID      string         `json:"plugin_id"`
	Configuration map[string]any `json:"configuration"`
}

// TemplateRequest is the wire form of a default rule template. The key comes
// from the URL.
type TemplateRequest struct {
	Trigger    string                  `json:"trigger"`
	Conditions map[string]ComponentDTO `json:"conditions"`
	Actions    map[string]ComponentDTO `json:"actions"`
}

func (r TemplateRequest) ToModel(entityType, bundle, machineName string) *models.EventTypeRule {
	return &models.EventTypeRule{
		EventEntityType: entityType,
		EventBundle:     bundle,
		MachineName:     machineName,
		TriggerID:       r.Trigger,
		Conditions:      toComponents(r.Conditions),
		Actions:         toComponents(r.Actions),
	}
}

// TemplateResponse mirrors TemplateRequest with the key included.
type TemplateResponse struct {
	EntityType  string                  `json:"entity_type"`
	Bundle      string                  `json:"bundle"`
	MachineName string                  `json:"machine_name"`
	Trigger     string                  `json:"trigger"`
	Conditions  map[string]ComponentDTO `json:"conditions"`
	Actions     map[string]ComponentDTO `json:"actions"`
}

func FromTemplate(template *models.EventTypeRule) TemplateResponse {
	return TemplateResponse{
		EntityType:  template.EventEntityType,
		Bundle:      template.EventBundle,
		MachineName: template.MachineName,
		Trigger:     template.TriggerID,
		Conditions:  fromComponents(template.Conditions),
		Actions:     fromComponents(template.Actions),
	}
}

func toComponents(in map[string]ComponentDTO) map[string]models.DefaultComponent {
	out := make(map[string]models.DefaultComponent, len(in))
	for name, c := range in {
		out[name] = models.DefaultComponent{
			PluginID:      c.PluginID,
			Configuration: rulemodels.Configuration(c.Configuration),
		}
	}
	return out
}

func fromComponents(in map[string]models.DefaultComponent) map[string]ComponentDTO {
	out := make(map[string]ComponentDTO, len(in))
	for name, c := range in {
		out[name] = ComponentDTO{PluginID: c.PluginID, Configuration: c.Configuration}
	}
	return out
}
