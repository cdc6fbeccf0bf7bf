package store

import (
	"context"
	"fmt"
	"sync"

	"eventgate/internal/registration/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/sentinel"
)

// InMemory is a map-backed registration store for tests and local runs.
type InMemory struct {
	mu            sync.RWMutex
	registrations map[domain.RegistrationID]*models.Registration
}

func NewInMemory() *InMemory {
	return &InMemory{
		registrations: make(map[domain.RegistrationID]*models.Registration),
	}
}

func (s *InMemory) Create(_ context.Context, registration *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registrations[registration.ID]; exists {
		return fmt.Errorf("registration %s: %w", registration.ID, sentinel.ErrConflict)
	}
	s.registrations[registration.ID] = registration.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	registration, ok := s.registrations[id]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", id, sentinel.ErrNotFound)
	}
	return registration.Clone(), nil
}

func (s *InMemory) ListByEvent(_ context.Context, event domain.EntityRef) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, registration := range s.registrations {
		if registration.EventRef.Equal(event) {
			out = append(out, registration.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) ListByIdentity(_ context.Context, event domain.EntityRef, identity domain.EntityRef) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, registration := range s.registrations {
		if registration.EventRef.Equal(event) && registration.HasIdentity(identity) {
			out = append(out, registration.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, registration *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[registration.ID]; !ok {
		return fmt.Errorf("registration %s: %w", registration.ID, sentinel.ErrNotFound)
	}
	s.registrations[registration.ID] = registration.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.RegistrationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; !ok {
		return fmt.Errorf("registration %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.registrations, id)
	return nil
}

func (s *InMemory) DeleteByEvent(_ context.Context, event domain.EntityRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, registration := range s.registrations {
		if registration.EventRef.Equal(event) {
			delete(s.registrations, id)
			deleted++
		}
	}
	return deleted, nil
}
