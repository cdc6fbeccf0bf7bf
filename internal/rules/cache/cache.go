// Package cache memoizes resolution results per (event, trigger, identity)
// and purges them when rules or defaults change. The engine works without a
// cache; mutation paths must call Invalidate through the Invalidator contract.
package cache

import (
	"context"
	"sync"
	"time"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
)

// Key identifies one memoized resolution. Identity is the string form of the
// identity ref, empty for anonymous contexts.
type Key struct {
	Event     domain.EntityRef
	TriggerID string
	Identity  string
}

// NewKey builds a cache key from evaluation inputs.
func NewKey(event domain.EntityRef, triggerID string, identity *domain.EntityRef) Key {
	k := Key{Event: event, TriggerID: triggerID}
	if identity != nil {
		k.Identity = identity.String()
	}
	return k
}

func (k Key) subKey() string {
	return k.TriggerID + "|" + k.Identity
}

// Invalidator is the mutation-side contract: any change to an event's rules,
// components, or matching event type defaults must purge that event's entries.
type Invalidator interface {
	Invalidate(ctx context.Context, event domain.EntityRef) error
}

// TypeInvalidator purges every cached resolution for events of one entity
// type. Default-rule templates apply per bundle, but cached entries do not
// record the bundle, so template mutations purge at entity type granularity.
type TypeInvalidator interface {
	InvalidateType(ctx context.Context, entityType string) error
}

// ResolutionCache memoizes resolved operation sets.
type ResolutionCache interface {
	Invalidator
	Get(ctx context.Context, key Key) (models.OperationSet, bool, error)
	Put(ctx context.Context, key Key, ops models.OperationSet) error
}

type memoryEntry struct {
	ops      models.OperationSet
	storedAt time.Time
}

// InMemory is a process-local resolution cache with a fixed TTL.
type InMemory struct {
	ttl time.Duration

	mu sync.RWMutex
	// entries are grouped per event so invalidation drops every trigger and
	// identity variant in one step.
	entries map[domain.EntityRef]map[string]memoryEntry
}

// NewInMemory returns a memory cache holding entries for the given TTL.
func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{
		ttl:     ttl,
		entries: make(map[domain.EntityRef]map[string]memoryEntry),
	}
}

func (c *InMemory) Get(_ context.Context, key Key) (models.OperationSet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byEvent, ok := c.entries[key.Event]
	if !ok {
		return nil, false, nil
	}
	entry, ok := byEvent[key.subKey()]
	if !ok || time.Since(entry.storedAt) >= c.ttl {
		return nil, false, nil
	}
	ops := models.NewOperationSet()
	ops.Union(entry.ops)
	return ops, true, nil
}

func (c *InMemory) Put(_ context.Context, key Key, ops models.OperationSet) error {
	copied := models.NewOperationSet()
	copied.Union(ops)
	c.mu.Lock()
	defer c.mu.Unlock()
	byEvent, ok := c.entries[key.Event]
	if !ok {
		byEvent = make(map[string]memoryEntry)
		c.entries[key.Event] = byEvent
	}
	byEvent[key.subKey()] = memoryEntry{ops: copied, storedAt: time.Now()}
	return nil
}

func (c *InMemory) Invalidate(_ context.Context, event domain.EntityRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, event)
	return nil
}

func (c *InMemory) InvalidateType(_ context.Context, entityType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event := range c.entries {
		if event.Type == entityType {
			delete(c.entries, event)
		}
	}
	return nil
}

// NoopInvalidator satisfies Invalidator and TypeInvalidator when no cache is
// configured.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, domain.EntityRef) error { return nil }

func (NoopInvalidator) InvalidateType(context.Context, string) error { return nil }
