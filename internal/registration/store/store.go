// Package store persists registrations and their registrants. Memory and
// PostgreSQL implementations share one contract.
package store

import (
	"context"

	"eventgate/internal/registration/models"
	"eventgate/pkg/domain"
)

// RegistrationStore reads and writes registrations with their registrants.
// Update replaces the registrant list wholesale so callers mutate a loaded
// copy and write it back as one snapshot.
type RegistrationStore interface {
	Create(ctx context.Context, registration *models.Registration) error
	FindByID(ctx context.Context, id domain.RegistrationID) (*models.Registration, error)
	ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Registration, error)
	// ListByIdentity returns registrations holding a registrant with the given
	// identity, scoped to one event. Used by the duplicate guard.
	ListByIdentity(ctx context.Context, event domain.EntityRef, identity domain.EntityRef) ([]*models.Registration, error)
	Update(ctx context.Context, registration *models.Registration) error
	Delete(ctx context.Context, id domain.RegistrationID) error
	// DeleteByEvent removes every registration for an event and reports how
	// many were deleted. Used when the owning event is removed.
	DeleteByEvent(ctx context.Context, event domain.EntityRef) (int, error)
}
