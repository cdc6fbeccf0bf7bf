// Package models defines registrations and registrants, and the capacity
// invariant that governs them: a registration never holds more registrants
// than its quantity ceiling allows.
package models

import (
	"errors"
	"fmt"
	"time"

	"eventgate/pkg/domain"
)

// ErrMaxRegistrantsExceeded is returned when a mutation would push a
// registration past its registrant quantity ceiling, or shrink the ceiling
// below current occupancy. Always recoverable by the caller.
var ErrMaxRegistrantsExceeded = errors.New("maximum registrant count exceeded")

// ErrInvalidRegistrant is returned when constructing a registrant without its
// required registration link, or without an identity when the event type
// disallows anonymous registrants.
var ErrInvalidRegistrant = errors.New("invalid registrant")

// UnlimitedRegistrants is the RegistrantQty value meaning no ceiling.
const UnlimitedRegistrants = 0

// Registrant is a single identity slot within a registration. Identity is nil
// for anonymous registrants, which event type policy may disallow.
type Registrant struct {
	ID             domain.RegistrantID
	RegistrationID domain.RegistrationID
	Identity       *domain.EntityRef
	Kind           string
	CreatedAt      time.Time
}

// NewRegistrant constructs a registrant attached to a registration.
func NewRegistrant(id domain.RegistrantID, registrationID domain.RegistrationID, identity *domain.EntityRef, kind string, now time.Time) (*Registrant, error) {
	if registrationID.IsNil() {
		return nil, fmt.Errorf("%w: registration reference is required", ErrInvalidRegistrant)
	}
	if identity != nil && identity.IsZero() {
		identity = nil
	}
	return &Registrant{
		ID:             id,
		RegistrationID: registrationID,
		Identity:       identity,
		Kind:           kind,
		CreatedAt:      now,
	}, nil
}

// HasIdentity reports whether this registrant is the given identity.
func (r *Registrant) HasIdentity(identity domain.EntityRef) bool {
	return r.Identity != nil && r.Identity.Equal(identity)
}

// Registration groups registrants for one event.
//
// Invariant: RegistrantQty == 0 or len(Registrants) <= RegistrantQty. Every
// mutation that would violate it fails with ErrMaxRegistrantsExceeded rather
// than truncating.
type Registration struct {
	ID            domain.RegistrationID
	EventRef      domain.EntityRef
	RegistrantQty int
	Registrants   []Registrant
	Confirmed     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRegistration constructs an empty registration for an event.
func NewRegistration(id domain.RegistrationID, event domain.EntityRef, now time.Time) (*Registration, error) {
	if event.IsZero() {
		return nil, fmt.Errorf("registration event is required")
	}
	return &Registration{
		ID:        id,
		EventRef:  event,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CountRegistrants returns current occupancy, with or without identities.
func (r *Registration) CountRegistrants() int {
	return len(r.Registrants)
}

// RemainingCapacity returns how many registrants can still be added, or -1
// when the registration is unlimited.
func (r *Registration) RemainingCapacity() int {
	if r.RegistrantQty == UnlimitedRegistrants {
		return -1
	}
	remaining := r.RegistrantQty - len(r.Registrants)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanAddRegistrants reports whether count more registrants fit under the
// ceiling. Duplicate policy is the guard's concern, not capacity's.
func (r *Registration) CanAddRegistrants(count int) bool {
	if r.RegistrantQty == UnlimitedRegistrants {
		return true
	}
	return len(r.Registrants)+count <= r.RegistrantQty
}

// HasIdentity searches the registrants for an identity, matched by entity
// type and id.
func (r *Registration) HasIdentity(identity domain.EntityRef) bool {
	for i := range r.Registrants {
		if r.Registrants[i].HasIdentity(identity) {
			return true
		}
	}
	return false
}

// SetRegistrantQty changes the ceiling. Shrinking below current occupancy is
// rejected with ErrMaxRegistrantsExceeded and leaves the registration
// unchanged; zero always succeeds and lifts the ceiling.
func (r *Registration) SetRegistrantQty(qty int) error {
	if qty < 0 {
		return fmt.Errorf("registrant quantity must not be negative")
	}
	if qty != UnlimitedRegistrants && qty < len(r.Registrants) {
		return fmt.Errorf("cannot set quantity to %d with %d registrants: %w",
			qty, len(r.Registrants), ErrMaxRegistrantsExceeded)
	}
	r.RegistrantQty = qty
	return nil
}

// AddRegistrant appends an already-validated registrant, enforcing the
// capacity invariant.
func (r *Registration) AddRegistrant(registrant *Registrant) error {
	if registrant == nil {
		return fmt.Errorf("%w: registrant is required", ErrInvalidRegistrant)
	}
	if !r.CanAddRegistrants(1) {
		return fmt.Errorf("registration %s is full: %w", r.ID, ErrMaxRegistrantsExceeded)
	}
	r.Registrants = append(r.Registrants, *registrant)
	return nil
}

// Clone returns a copy safe to hand across store boundaries.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	out.Registrants = make([]Registrant, len(r.Registrants))
	copy(out.Registrants, r.Registrants)
	for i := range out.Registrants {
		if out.Registrants[i].Identity != nil {
			ref := *out.Registrants[i].Identity
			out.Registrants[i].Identity = &ref
		}
	}
	return &out
}
