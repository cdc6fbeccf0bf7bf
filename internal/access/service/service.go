// Package service answers registration eligibility questions: which of a set
// of candidate identities may register for an event. Eligibility combines
// three independent gates, all of which must pass: the rule engine must grant
// the create operation, the registration guard must accept the identity, and
// the external permission check, when configured, must allow it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	registrationmodels "eventgate/internal/registration/models"
	registration "eventgate/internal/registration/service"
	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
)

// candidateConcurrency bounds the fan-out when checking many identities.
const candidateConcurrency = 8

// Resolver evaluates rules for an event and trigger.
type Resolver interface {
	ResolveOperations(ctx context.Context, event models.Event, triggerID string, ectx models.EvalContext) (models.OperationSet, error)
}

// Guard applies the event type registration policy for a candidate identity,
// including whether any of the event's registrations can still take another
// registrant.
type Guard interface {
	CanRegister(ctx context.Context, event domain.EntityRef, bundle string, identity *domain.EntityRef) error
}

// EntityLoader resolves external entity references into evaluation inputs.
// Implementations talk to whatever system owns events and identities.
type EntityLoader interface {
	LoadEvent(ctx context.Context, ref domain.EntityRef) (models.Event, error)
	LoadIdentity(ctx context.Context, ref domain.EntityRef) (*models.Identity, error)
}

// PermissionChecker is an optional external gate consulted per identity.
type PermissionChecker interface {
	Can(ctx context.Context, identity domain.EntityRef, operation string, target domain.EntityRef) (bool, error)
}

type Service struct {
	resolver Resolver
	guard    Guard
	entities EntityLoader
	perms    PermissionChecker
	logger   *slog.Logger
}

type Option func(*Service)

// WithPermissionChecker attaches the external permission gate.
func WithPermissionChecker(perms PermissionChecker) Option {
	return func(s *Service) { s.perms = perms }
}

func New(resolver Resolver, guard Guard, entities EntityLoader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		guard:    guard,
		entities: entities,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdentitiesCanRegister filters candidates down to the identities allowed to
// register for the event, preserving input order. Candidates are checked
// concurrently and independently: a failure checking one identity excludes
// that identity and never the rest.
func (s *Service) IdentitiesCanRegister(ctx context.Context, eventRef domain.EntityRef, candidates []domain.EntityRef) ([]domain.EntityRef, error) {
	event, err := s.entities.LoadEvent(ctx, eventRef)
	if err != nil {
		return nil, err
	}

	allowed := make([]bool, len(candidates))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(candidateConcurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			ok, err := s.identityCanRegister(gctx, event, candidate)
			if err != nil {
				s.logger.WarnContext(gctx, "eligibility check failed",
					"event", eventRef,
					"identity", candidate,
					"error", err,
				)
				return nil
			}
			mu.Lock()
			allowed[i] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.EntityRef
	for i, candidate := range candidates {
		if allowed[i] {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// IdentityCanRegister checks a single candidate.
func (s *Service) IdentityCanRegister(ctx context.Context, eventRef, candidate domain.EntityRef) (bool, error) {
	event, err := s.entities.LoadEvent(ctx, eventRef)
	if err != nil {
		return false, err
	}
	return s.identityCanRegister(ctx, event, candidate)
}

func (s *Service) identityCanRegister(ctx context.Context, event models.Event, candidate domain.EntityRef) (bool, error) {
	identity, err := s.entities.LoadIdentity(ctx, candidate)
	if err != nil {
		return false, err
	}

	ops, err := s.resolver.ResolveOperations(ctx, event, models.TriggerRegister, models.EvalContext{
		Identity: identity,
		Event:    event,
	})
	if err != nil {
		return false, err
	}
	if !ops.Has(models.OperationCreate) {
		return false, nil
	}

	if err := s.guard.CanRegister(ctx, event.Ref, event.Bundle, &candidate); err != nil {
		if errors.Is(err, registration.ErrDuplicateRegistrant) ||
			errors.Is(err, registration.ErrAnonymousDisallowed) ||
			errors.Is(err, registrationmodels.ErrMaxRegistrantsExceeded) {
			return false, nil
		}
		return false, err
	}

	if s.perms != nil {
		ok, err := s.perms.Can(ctx, candidate, models.OperationCreate, event.Ref)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
