package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed UUID wrappers for the entities this core owns. Wrapping uuid.UUID in
// distinct named types makes cross-assignment a compile error, so a RuleID can
// never silently travel where a RegistrationID is expected.
type (
	RuleID         uuid.UUID
	ComponentID    uuid.UUID
	RegistrationID uuid.UUID
	RegistrantID   uuid.UUID
)

// parseUUID enforces the parsing invariant shared by all ID types:
// IDs must be valid, non-empty, non-nil UUIDs.
func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s must not be the nil UUID", kind)
	}
	return u, nil
}

func ParseRuleID(s string) (RuleID, error) {
	u, err := parseUUID("rule id", s)
	return RuleID(u), err
}

func ParseComponentID(s string) (ComponentID, error) {
	u, err := parseUUID("component id", s)
	return ComponentID(u), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID("registration id", s)
	return RegistrationID(u), err
}

func ParseRegistrantID(s string) (RegistrantID, error) {
	u, err := parseUUID("registrant id", s)
	return RegistrantID(u), err
}

func (id RuleID) String() string         { return uuid.UUID(id).String() }
func (id ComponentID) String() string    { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id RegistrantID) String() string   { return uuid.UUID(id).String() }

func (id RuleID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ComponentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RegistrantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
