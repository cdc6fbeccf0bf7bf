// Package plugin defines the extensibility surface of the rule engine:
// condition and action implementations registered under unique plugin IDs.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"eventgate/internal/rules/models"
)

// ErrUnknownPlugin is returned when a rule component references a plugin ID
// that was never registered. The engine treats the owning rule as unsatisfied.
var ErrUnknownPlugin = errors.New("unknown plugin")

// IsUnknown reports whether err stems from an unregistered plugin ID.
func IsUnknown(err error) bool {
	return errors.Is(err, ErrUnknownPlugin)
}

// Condition is a predicate over an evaluation context. Implementations must be
// pure: no side effects, no mutation of the context.
type Condition interface {
	// Evaluate returns the verdict for the given configuration and context.
	Evaluate(ctx context.Context, cfg models.Configuration, ectx models.EvalContext) (bool, error)
}

// Action grants operation names for an evaluation context. Implementations
// must be side-effect-free and must not return an error for valid
// configuration.
type Action interface {
	// Operations returns the set of operation names this action grants.
	Operations(ctx context.Context, cfg models.Configuration, ectx models.EvalContext) (models.OperationSet, error)
}

// Registry maps plugin IDs to condition and action implementations. It is
// populated at process start and handed to the engine explicitly; there is no
// ambient global registry.
type Registry struct {
	mu         sync.RWMutex
	conditions map[string]Condition
	actions    map[string]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]Condition),
		actions:    make(map[string]Action),
	}
}

// NewBuiltinRegistry returns a registry pre-populated with the built-in
// condition and action plugins.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.RegisterCondition(PluginUserRole, UserRoleCondition{})
	r.RegisterCondition(PluginIdentityConfirmed, IdentityConfirmedCondition{})
	r.RegisterAction(PluginRegistrationOperations, RegistrationOperationsAction{})
	r.RegisterAction(PluginRegistrantOperations, RegistrantOperationsAction{})
	return r
}

// RegisterCondition registers a condition under the given plugin ID,
// replacing any previous registration.
func (r *Registry) RegisterCondition(pluginID string, c Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[pluginID] = c
}

// RegisterAction registers an action under the given plugin ID, replacing any
// previous registration.
func (r *Registry) RegisterAction(pluginID string, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[pluginID] = a
}

// Condition looks up a condition implementation.
func (r *Registry) Condition(pluginID string) (Condition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conditions[pluginID]
	if !ok {
		return nil, fmt.Errorf("condition %q: %w", pluginID, ErrUnknownPlugin)
	}
	return c, nil
}

// Action looks up an action implementation.
func (r *Registry) Action(pluginID string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[pluginID]
	if !ok {
		return nil, fmt.Errorf("action %q: %w", pluginID, ErrUnknownPlugin)
	}
	return a, nil
}
