package handler

import (
	"fmt"

	"eventgate/pkg/domain"
)

// EntityRefDTO is the wire form of an external entity reference.
type EntityRefDTO struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// EligibilityRequest lists the candidate identities to check.
type EligibilityRequest struct {
	Candidates []EntityRefDTO `json:"candidates"`
}

func (r EligibilityRequest) ParseCandidates() ([]domain.EntityRef, error) {
	out := make([]domain.EntityRef, 0, len(r.Candidates))
	for i, c := range r.Candidates {
		ref, err := domain.NewEntityRef(c.EntityType, c.EntityID)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		out = append(out, ref)
	}
	return out, nil
}

// EligibilityResponse lists the identities allowed to register.
type EligibilityResponse struct {
	Eligible []EntityRefDTO `json:"eligible"`
}

func FromEligible(eligible []domain.EntityRef) EligibilityResponse {
	out := make([]EntityRefDTO, 0, len(eligible))
	for _, ref := range eligible {
		out = append(out, EntityRefDTO{EntityType: ref.Type, EntityID: ref.ID})
	}
	return EligibilityResponse{Eligible: out}
}
