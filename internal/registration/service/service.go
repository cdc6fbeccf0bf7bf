// Package service manages registrations under event type policy: the
// capacity ceiling, the duplicate registrant guard, and the anonymous
// registrant rule. Capacity is checked before the duplicate policy so a full
// registration reports full even for an identity that would also be a
// duplicate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	eventtypemodels "eventgate/internal/eventtype/models"
	"eventgate/internal/registration/models"
	"eventgate/internal/registration/store"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
	"eventgate/pkg/requestcontext"
)

// ErrDuplicateRegistrant is returned when an identity is already registered
// for the event and the event type disallows duplicates.
var ErrDuplicateRegistrant = errors.New("identity already registered for event")

// ErrAnonymousDisallowed is returned when adding a registrant without an
// identity and the event type disallows anonymous registrants.
var ErrAnonymousDisallowed = errors.New("anonymous registrants not allowed")

// EventTypeSource supplies the policy flags for an event's type.
type EventTypeSource interface {
	Find(ctx context.Context, entityType, bundle string) (*eventtypemodels.EventType, error)
}

type Service struct {
	registrations store.RegistrationStore
	eventTypes    EventTypeSource
	logger        *slog.Logger
}

func New(registrations store.RegistrationStore, eventTypes EventTypeSource, logger *slog.Logger) *Service {
	return &Service{
		registrations: registrations,
		eventTypes:    eventTypes,
		logger:        logger,
	}
}

// Create opens an empty registration for an event. Qty zero means unlimited.
func (s *Service) Create(ctx context.Context, event domain.EntityRef, qty int) (*models.Registration, error) {
	now := requestcontext.Now(ctx)
	registration, err := models.NewRegistration(domain.RegistrationID(uuid.New()), event, now)
	if err != nil {
		return nil, err
	}
	if err := registration.SetRegistrantQty(qty); err != nil {
		return nil, err
	}
	if err := s.registrations.Create(ctx, registration); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registration created",
		"registration_id", registration.ID,
		"event", event,
		"registrant_qty", qty,
	)
	return registration, nil
}

func (s *Service) Find(ctx context.Context, id domain.RegistrationID) (*models.Registration, error) {
	return s.registrations.FindByID(ctx, id)
}

func (s *Service) ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Registration, error) {
	return s.registrations.ListByEvent(ctx, event)
}

// CanAddIdentity reports whether one more registrant with the given identity
// (nil for anonymous) may join the registration. Checks run in a fixed order:
// capacity, then the anonymous rule, then the duplicate guard. The first
// failure wins.
func (s *Service) CanAddIdentity(ctx context.Context, registration *models.Registration, bundle string, identity *domain.EntityRef) error {
	if !registration.CanAddRegistrants(1) {
		return fmt.Errorf("registration %s is full: %w", registration.ID, models.ErrMaxRegistrantsExceeded)
	}
	policy := s.policy(ctx, registration.EventRef.Type, bundle)
	if identity == nil || identity.IsZero() {
		if !policy.AllowAnonymousRegistrants {
			return ErrAnonymousDisallowed
		}
		return nil
	}
	if policy.AllowDuplicateRegistrants {
		return nil
	}
	if registration.HasIdentity(*identity) {
		return fmt.Errorf("identity %s: %w", identity, ErrDuplicateRegistrant)
	}
	others, err := s.registrations.ListByIdentity(ctx, registration.EventRef, *identity)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		return fmt.Errorf("identity %s: %w", identity, ErrDuplicateRegistrant)
	}
	return nil
}

// CanRegister reports whether an identity may join the event. Checks run in
// the same order as CanAddIdentity: capacity across the event's registrations
// first, then the anonymous rule, then the duplicate guard. An event with no
// registrations yet passes the capacity check, since a fresh registration can
// still be opened for it.
func (s *Service) CanRegister(ctx context.Context, event domain.EntityRef, bundle string, identity *domain.EntityRef) error {
	registrations, err := s.registrations.ListByEvent(ctx, event)
	if err != nil {
		return err
	}
	if len(registrations) > 0 && !hasOpenRegistration(registrations) {
		return fmt.Errorf("event %s registrations are full: %w", event, models.ErrMaxRegistrantsExceeded)
	}
	policy := s.policy(ctx, event.Type, bundle)
	if identity == nil || identity.IsZero() {
		if !policy.AllowAnonymousRegistrants {
			return ErrAnonymousDisallowed
		}
		return nil
	}
	if policy.AllowDuplicateRegistrants {
		return nil
	}
	existing, err := s.registrations.ListByIdentity(ctx, event, *identity)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("identity %s: %w", identity, ErrDuplicateRegistrant)
	}
	return nil
}

func hasOpenRegistration(registrations []*models.Registration) bool {
	for _, registration := range registrations {
		if registration.CanAddRegistrants(1) {
			return true
		}
	}
	return false
}

// AddRegistrant appends a registrant after the guard accepts it. Kind falls
// back to the event type default when empty.
func (s *Service) AddRegistrant(ctx context.Context, id domain.RegistrationID, bundle string, identity *domain.EntityRef, kind string) (*models.Registrant, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.CanAddIdentity(ctx, registration, bundle, identity); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = s.policy(ctx, registration.EventRef.Type, bundle).DefaultRegistrantKind
	}
	now := requestcontext.Now(ctx)
	registrant, err := models.NewRegistrant(domain.RegistrantID(uuid.New()), id, identity, kind, now)
	if err != nil {
		return nil, err
	}
	if err := registration.AddRegistrant(registrant); err != nil {
		return nil, err
	}
	registration.UpdatedAt = now
	if err := s.registrations.Update(ctx, registration); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "registrant added",
		"registration_id", id,
		"registrant_id", registrant.ID,
		"anonymous", identity == nil,
	)
	return registrant, nil
}

// SetRegistrantQty changes the ceiling. Shrinking below occupancy fails with
// ErrMaxRegistrantsExceeded and leaves the stored registration unchanged.
func (s *Service) SetRegistrantQty(ctx context.Context, id domain.RegistrationID, qty int) (*models.Registration, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := registration.SetRegistrantQty(qty); err != nil {
		return nil, err
	}
	registration.UpdatedAt = requestcontext.Now(ctx)
	if err := s.registrations.Update(ctx, registration); err != nil {
		return nil, err
	}
	return registration, nil
}

// SetConfirmed flips the confirmation state.
func (s *Service) SetConfirmed(ctx context.Context, id domain.RegistrationID, confirmed bool) (*models.Registration, error) {
	registration, err := s.registrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	registration.Confirmed = confirmed
	registration.UpdatedAt = requestcontext.Now(ctx)
	if err := s.registrations.Update(ctx, registration); err != nil {
		return nil, err
	}
	return registration, nil
}

func (s *Service) Delete(ctx context.Context, id domain.RegistrationID) error {
	if err := s.registrations.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "registration deleted", "registration_id", id)
	return nil
}

// DeleteEventRegistrations removes every registration for a deleted event.
func (s *Service) DeleteEventRegistrations(ctx context.Context, event domain.EntityRef) (int, error) {
	deleted, err := s.registrations.DeleteByEvent(ctx, event)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "event registrations deleted",
			"event", event,
			"count", deleted,
		)
	}
	return deleted, nil
}

// policy fetches the event type flags, falling back to the zero policy when
// the type is unknown. The zero policy disallows duplicates and anonymous
// registrants.
func (s *Service) policy(ctx context.Context, entityType, bundle string) eventtypemodels.EventType {
	eventType, err := s.eventTypes.Find(ctx, entityType, bundle)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "event type lookup failed",
				"entity_type", entityType,
				"bundle", bundle,
				"error", err,
			)
		}
		return eventtypemodels.EventType{EntityType: entityType, Bundle: bundle}
	}
	return *eventType
}
