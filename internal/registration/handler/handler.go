// Package handler exposes registration management over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/registration/models"
	"eventgate/internal/registration/service"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/httputil"
	"eventgate/pkg/requestcontext"
)

// Service defines the registration operations the handler needs.
type Service interface {
	Create(ctx context.Context, event domain.EntityRef, qty int) (*models.Registration, error)
	Find(ctx context.Context, id domain.RegistrationID) (*models.Registration, error)
	ListByEvent(ctx context.Context, event domain.EntityRef) ([]*models.Registration, error)
	AddRegistrant(ctx context.Context, id domain.RegistrationID, bundle string, identity *domain.EntityRef, kind string) (*models.Registrant, error)
	SetRegistrantQty(ctx context.Context, id domain.RegistrationID, qty int) (*models.Registration, error)
	SetConfirmed(ctx context.Context, id domain.RegistrationID, confirmed bool) (*models.Registration, error)
	Delete(ctx context.Context, id domain.RegistrationID) error
	DeleteEventRegistrations(ctx context.Context, event domain.EntityRef) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.HandleCreate)
	r.Get("/registrations/{registrationID}", h.HandleGet)
	r.Delete("/registrations/{registrationID}", h.HandleDelete)
	r.Post("/registrations/{registrationID}/registrants", h.HandleAddRegistrant)
	r.Put("/registrations/{registrationID}/quantity", h.HandleSetQuantity)
	r.Put("/registrations/{registrationID}/confirmed", h.HandleSetConfirmed)

	r.Get("/events/{entityType}/{entityID}/registrations", h.HandleListByEvent)
	r.Delete("/events/{entityType}/{entityID}/registrations", h.HandleDeleteByEvent)
}

// HandleCreate handles POST /registrations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[CreateRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, err := domain.NewEntityRef(req.Event.EntityType, req.Event.EntityID)
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	registration, err := h.service.Create(r.Context(), event, req.RegistrantQty)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRegistration(registration))
}

// HandleGet handles GET /registrations/{registrationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	registration, err := h.service.Find(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(registration))
}

// HandleAddRegistrant handles POST /registrations/{registrationID}/registrants.
func (h *Handler) HandleAddRegistrant(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[AddRegistrantRequest](w, r, h.logger)
	if !ok {
		return
	}
	identity, err := req.ParseIdentity()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	registrant, err := h.service.AddRegistrant(r.Context(), id, req.Bundle, identity, req.Kind)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRegistrant(registrant))
}

// HandleSetQuantity handles PUT /registrations/{registrationID}/quantity.
func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[SetQuantityRequest](w, r, h.logger)
	if !ok {
		return
	}
	registration, err := h.service.SetRegistrantQty(r.Context(), id, req.RegistrantQty)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(registration))
}

// HandleSetConfirmed handles PUT /registrations/{registrationID}/confirmed.
func (h *Handler) HandleSetConfirmed(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[SetConfirmedRequest](w, r, h.logger)
	if !ok {
		return
	}
	registration, err := h.service.SetConfirmed(r.Context(), id, req.Confirmed)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistration(registration))
}

// HandleDelete handles DELETE /registrations/{registrationID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListByEvent handles GET /events/{entityType}/{entityID}/registrations.
func (h *Handler) HandleListByEvent(w http.ResponseWriter, r *http.Request) {
	event := domain.EntityRef{Type: chi.URLParam(r, "entityType"), ID: chi.URLParam(r, "entityID")}
	registrations, err := h.service.ListByEvent(r.Context(), event)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistrations(registrations))
}

// HandleDeleteByEvent handles DELETE /events/{entityType}/{entityID}/registrations.
func (h *Handler) HandleDeleteByEvent(w http.ResponseWriter, r *http.Request) {
	event := domain.EntityRef{Type: chi.URLParam(r, "entityType"), ID: chi.URLParam(r, "entityID")}
	deleted, err := h.service.DeleteEventRegistrations(r.Context(), event)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrMaxRegistrantsExceeded):
		httputil.WriteErrorStatus(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrDuplicateRegistrant):
		httputil.WriteErrorStatus(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrAnonymousDisallowed):
		httputil.WriteErrorStatus(w, http.StatusForbidden, err)
	case errors.Is(err, models.ErrInvalidRegistrant):
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
	default:
		httputil.WriteError(w, err)
	}
	h.logger.WarnContext(r.Context(), "registration request failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
}
