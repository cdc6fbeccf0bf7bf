package handler

import (
	"time"

	"eventgate/internal/registration/models"
	"eventgate/pkg/domain"
)

// EntityRefDTO is the wire form of an external entity reference.
type EntityRefDTO struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// CreateRequest opens a registration. A zero registrant quantity means
// unlimited.
type CreateRequest struct {
	Event         EntityRefDTO `json:"event"`
	RegistrantQty int          `json:"registrant_qty"`
}

// AddRegistrantRequest adds one registrant. Identity is omitted for an
// anonymous registrant; bundle names the event's type so policy can be
// looked up.
type AddRegistrantRequest struct {
	Bundle   string        `json:"bundle"`
	Identity *EntityRefDTO `json:"identity,omitempty"`
	Kind     string        `json:"kind"`
}

func (r AddRegistrantRequest) ParseIdentity() (*domain.EntityRef, error) {
	if r.Identity == nil {
		return nil, nil
	}
	ref, err := domain.NewEntityRef(r.Identity.EntityType, r.Identity.EntityID)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// SetQuantityRequest changes the registrant ceiling.
type SetQuantityRequest struct {
	RegistrantQty int `json:"registrant_qty"`
}

// SetConfirmedRequest flips the confirmation state.
type SetConfirmedRequest struct {
	Confirmed bool `json:"confirmed"`
}

// RegistrantResponse is the wire form of a registrant.
type RegistrantResponse struct {
	ID             string        `json:"id"`
	RegistrationID string        `json:"registration_id"`
	Identity       *EntityRefDTO `json:"identity,omitempty"`
	Kind           string        `json:"kind"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RegistrationResponse is the wire form of a registration.
type RegistrationResponse struct {
	ID                string               `json:"id"`
	Event             EntityRefDTO         `json:"event"`
	RegistrantQty     int                  `json:"registrant_qty"`
	RemainingCapacity int                  `json:"remaining_capacity"`
	Confirmed         bool                 `json:"confirmed"`
	Registrants       []RegistrantResponse `json:"registrants"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

func FromRegistrant(registrant *models.Registrant) RegistrantResponse {
	resp := RegistrantResponse{
		ID:             registrant.ID.String(),
		RegistrationID: registrant.RegistrationID.String(),
		Kind:           registrant.Kind,
		CreatedAt:      registrant.CreatedAt,
	}
	if registrant.Identity != nil {
		resp.Identity = &EntityRefDTO{EntityType: registrant.Identity.Type, EntityID: registrant.Identity.ID}
	}
	return resp
}

func FromRegistration(registration *models.Registration) RegistrationResponse {
	registrants := make([]RegistrantResponse, 0, len(registration.Registrants))
	for i := range registration.Registrants {
		registrants = append(registrants, FromRegistrant(&registration.Registrants[i]))
	}
	return RegistrationResponse{
		ID:                registration.ID.String(),
		Event:             EntityRefDTO{EntityType: registration.EventRef.Type, EntityID: registration.EventRef.ID},
		RegistrantQty:     registration.RegistrantQty,
		RemainingCapacity: registration.RemainingCapacity(),
		Confirmed:         registration.Confirmed,
		Registrants:       registrants,
		CreatedAt:         registration.CreatedAt,
		UpdatedAt:         registration.UpdatedAt,
	}
}

func FromRegistrations(registrations []*models.Registration) []RegistrationResponse {
	out := make([]RegistrationResponse, 0, len(registrations))
	for _, registration := range registrations {
		out = append(out, FromRegistration(registration))
	}
	return out
}
