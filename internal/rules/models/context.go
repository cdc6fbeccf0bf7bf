package models

import "eventgate/pkg/domain"

// Event is the resolved event handle evaluation runs against. The bundle is
// what ties an event instance back to its event type defaults.
type Event struct {
	Ref    domain.EntityRef
	Bundle string
}

// Identity is a resolved identity handle: the entity reference plus the facts
// condition plugins match on. Role lookup happens once, before evaluation, so
// plugins stay pure functions of configuration and context.
type Identity struct {
	Ref       domain.EntityRef
	Roles     []string
	Confirmed bool
}

// HasRole reports whether the identity carries the named role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// EvalContext carries the inputs for a single evaluation call. It is built per
// call and never persisted. A nil Identity means anonymous.
type EvalContext struct {
	Identity *Identity
	Event    Event
}

// Anonymous reports whether the context has no identity.
func (c EvalContext) Anonymous() bool { return c.Identity == nil }
