// Package engine resolves which operations an identity is granted for an
// event and trigger, by evaluating the event's rules through the plugin
// registry.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	eventtypemodels "eventgate/internal/eventtype/models"
	"eventgate/internal/rules/cache"
	"eventgate/internal/rules/metrics"
	"eventgate/internal/rules/models"
	"eventgate/internal/rules/plugin"
	"eventgate/pkg/domain"
)

// RuleSource loads an event's persisted rules.
type RuleSource interface {
	ListByEventTrigger(ctx context.Context, event domain.EntityRef, triggerID string, activeOnly bool) ([]*models.Rule, error)
}

// DefaultSource loads event type rule templates matching an event's type.
type DefaultSource interface {
	ListRulesByTrigger(ctx context.Context, entityType, bundle, triggerID string) ([]*eventtypemodels.EventTypeRule, error)
}

// Engine orchestrates rule resolution. It holds no mutable state per call:
// concurrent resolutions only read rule and default state, so no locking is
// needed here.
type Engine struct {
	rules    RuleSource
	defaults DefaultSource
	plugins  *plugin.Registry
	cache    cache.ResolutionCache
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithCache memoizes resolution results. Mutation paths must invalidate
// through the same cache.
func WithCache(c cache.ResolutionCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records resolution observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs an engine. The plugin registry and both rule sources are
// explicit dependencies; there is no ambient service lookup.
func New(rules RuleSource, defaults DefaultSource, plugins *plugin.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		rules:    rules,
		defaults: defaults,
		plugins:  plugins,
		logger:   logger,
		tracer:   otel.Tracer("eventgate/rules/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveOperations returns the union of operations granted by every
// satisfied rule for the event and trigger.
//
// Persisted active rules fully replace defaults: when any exist for the
// trigger, event type defaults are not consulted. With no persisted rules,
// transient rules are synthesized from every matching event type rule.
// A rule with zero conditions is vacuously satisfied. A plugin failure marks
// only its own rule as contributing nothing; sibling rules still evaluate.
func (e *Engine) ResolveOperations(ctx context.Context, event models.Event, triggerID string, ectx models.EvalContext) (models.OperationSet, error) {
	ctx, span := e.tracer.Start(ctx, "rules.ResolveOperations",
		trace.WithAttributes(
			attribute.String("event", event.Ref.String()),
			attribute.String("trigger", triggerID),
			attribute.Bool("anonymous", ectx.Anonymous()),
		))
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.ObserveResolveLatency(triggerID, time.Since(start)) }()

	key := e.cacheKey(event.Ref, triggerID, ectx)
	if e.cache != nil {
		ops, hit, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.metrics.IncrementCacheLookup("error")
			e.logger.WarnContext(ctx, "resolution cache lookup failed",
				"event", event.Ref.String(),
				"trigger", triggerID,
				"error", err,
			)
		case hit:
			e.metrics.IncrementCacheLookup("hit")
			e.metrics.IncrementResolution(triggerID, "cache")
			return ops, nil
		default:
			e.metrics.IncrementCacheLookup("miss")
		}
	}

	rules, source, err := e.resolveRules(ctx, event, triggerID)
	if err != nil {
		return nil, err
	}
	e.metrics.IncrementResolution(triggerID, source)

	granted := models.NewOperationSet()
	for _, rule := range rules {
		ops, contributed := e.ruleOperations(ctx, rule, ectx)
		if contributed {
			granted.Union(ops)
		}
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, granted); err != nil {
			e.logger.WarnContext(ctx, "resolution cache store failed",
				"event", event.Ref.String(),
				"trigger", triggerID,
				"error", err,
			)
		}
	}
	span.SetAttributes(attribute.Int("operations", granted.Len()))
	return granted, nil
}

func (e *Engine) cacheKey(event domain.EntityRef, triggerID string, ectx models.EvalContext) cache.Key {
	if ectx.Anonymous() {
		return cache.NewKey(event, triggerID, nil)
	}
	return cache.NewKey(event, triggerID, &ectx.Identity.Ref)
}

// resolveRules returns the rule set for the trigger and where it came from.
func (e *Engine) resolveRules(ctx context.Context, event models.Event, triggerID string) ([]*models.Rule, string, error) {
	persisted, err := e.rules.ListByEventTrigger(ctx, event.Ref, triggerID, true)
	if err != nil {
		return nil, "", fmt.Errorf("load rules for %s: %w", event.Ref, err)
	}
	if len(persisted) > 0 {
		return persisted, "customized", nil
	}

	templates, err := e.defaults.ListRulesByTrigger(ctx, event.Ref.Type, event.Bundle, triggerID)
	if err != nil {
		return nil, "", fmt.Errorf("load default rules for %s.%s: %w", event.Ref.Type, event.Bundle, err)
	}
	synthesized := make([]*models.Rule, 0, len(templates))
	for _, template := range templates {
		synthesized = append(synthesized, SynthesizeRule(template, event.Ref))
	}
	return synthesized, "defaults", nil
}

// ruleOperations evaluates one rule in isolation. The second return reports
// whether the rule contributes: false when a condition failed, or when any of
// its plugins failed.
func (e *Engine) ruleOperations(ctx context.Context, rule *models.Rule, ectx models.EvalContext) (models.OperationSet, bool) {
	for _, component := range rule.Conditions() {
		verdict, err := e.evaluateCondition(ctx, component, ectx)
		if err != nil {
			e.isolatePluginFailure(ctx, rule, component, err)
			return nil, false
		}
		if !verdict {
			return nil, false
		}
	}

	granted := models.NewOperationSet()
	for _, component := range rule.Actions() {
		ops, err := e.applyAction(ctx, component, ectx)
		if err != nil {
			e.isolatePluginFailure(ctx, rule, component, err)
			return nil, false
		}
		granted.Union(ops)
	}
	return granted, true
}

func (e *Engine) evaluateCondition(ctx context.Context, component models.RuleComponent, ectx models.EvalContext) (bool, error) {
	condition, err := e.plugins.Condition(component.PluginID)
	if err != nil {
		return false, err
	}
	return condition.Evaluate(ctx, component.Configuration, ectx)
}

func (e *Engine) applyAction(ctx context.Context, component models.RuleComponent, ectx models.EvalContext) (models.OperationSet, error) {
	action, err := e.plugins.Action(component.PluginID)
	if err != nil {
		return nil, err
	}
	return action.Operations(ctx, component.Configuration, ectx)
}

// isolatePluginFailure logs and counts a plugin failure without propagating
// it: one misbehaving plugin must not block resolution for the whole event.
func (e *Engine) isolatePluginFailure(ctx context.Context, rule *models.Rule, component models.RuleComponent, err error) {
	kind := "evaluate"
	if plugin.IsUnknown(err) {
		kind = "unknown"
	}
	e.metrics.IncrementPluginFailure(component.PluginID, kind)
	e.logger.WarnContext(ctx, "rule skipped after plugin failure",
		"rule", rule.ID.String(),
		"event", rule.EventRef.String(),
		"trigger", rule.TriggerID,
		"plugin", component.PluginID,
		"component_type", string(component.Type),
		"error", err,
	)
}

// SynthesizeRule builds a transient rule from an event type template. The
// result is never persisted; Customize materializes templates explicitly.
func SynthesizeRule(template *eventtypemodels.EventTypeRule, event domain.EntityRef) *models.Rule {
	rule := &models.Rule{
		EventRef:    event,
		TriggerID:   template.TriggerID,
		Active:      true,
		Synthesized: true,
	}
	for _, name := range template.ConditionNames() {
		component := template.Conditions[name]
		rule.AddCondition(domain.ComponentID{}, component.PluginID, component.Configuration.Clone())
	}
	for _, name := range template.ActionNames() {
		component := template.Actions[name]
		rule.AddAction(domain.ComponentID{}, component.PluginID, component.Configuration.Clone())
	}
	return rule
}
