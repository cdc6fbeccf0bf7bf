package domain

import (
	"fmt"
	"strings"
)

// EntityRef points at an entity owned by an external collaborator (an event,
// a user, any identity-capable entity). The core never dereferences these
// itself; it hands them to the entity loader and compares them for equality.
// IDs are opaque strings because the hosting system decides their shape.
type EntityRef struct {
	Type string `json:"entity_type"`
	ID   string `json:"entity_id"`
}

// NewEntityRef validates and returns an EntityRef.
func NewEntityRef(entityType, entityID string) (EntityRef, error) {
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	if entityType == "" {
		return EntityRef{}, fmt.Errorf("entity type is required")
	}
	if entityID == "" {
		return EntityRef{}, fmt.Errorf("entity id is required")
	}
	return EntityRef{Type: entityType, ID: entityID}, nil
}

// Equal reports whether two refs point at the same entity.
// Identity matching across the whole core uses this: entity type plus id.
func (r EntityRef) Equal(other EntityRef) bool {
	return r.Type == other.Type && r.ID == other.ID
}

// IsZero reports whether the ref is unset.
func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

func (r EntityRef) String() string {
	return r.Type + ":" + r.ID
}
