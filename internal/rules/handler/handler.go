// Package handler exposes rule administration and operation resolution over
// HTTP. It stays thin: decode, delegate, translate errors.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/rules/models"
	"eventgate/internal/rules/service"
	"eventgate/pkg/domain"
	"eventgate/pkg/platform/httputil"
	"eventgate/pkg/requestcontext"
)

// Resolver evaluates rules for an event and trigger.
type Resolver interface {
	ResolveOperations(ctx context.Context, event models.Event, triggerID string, ectx models.EvalContext) (models.OperationSet, error)
}

// Service defines the rule administration operations the handler needs.
type Service interface {
	CreateRule(ctx context.Context, event domain.EntityRef, triggerID string, components []models.RuleComponent) (*models.Rule, error)
	ListRules(ctx context.Context, event domain.EntityRef, triggerID string) ([]*models.Rule, error)
	SetRuleActive(ctx context.Context, id domain.RuleID, active bool) (*models.Rule, error)
	DeleteRule(ctx context.Context, id domain.RuleID) error
	DeleteEventRules(ctx context.Context, event domain.EntityRef) (int, error)
	AddComponent(ctx context.Context, ruleID domain.RuleID, component models.RuleComponent) (*models.RuleComponent, error)
	UpdateComponent(ctx context.Context, component models.RuleComponent) error
	DeleteComponent(ctx context.Context, id domain.ComponentID) error
	Customize(ctx context.Context, event models.Event, triggerID string) ([]*models.Rule, error)
}

type Handler struct {
	resolver Resolver
	service  Service
	logger   *slog.Logger
}

func New(resolver Resolver, service Service, logger *slog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		service:  service,
		logger:   logger,
	}
}

// Register mounts rule endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/rules/resolve", h.HandleResolve)
	r.Patch("/rules/{ruleID}", h.HandleSetActive)
	r.Delete("/rules/{ruleID}", h.HandleDeleteRule)
	r.Post("/rules/{ruleID}/components", h.HandleAddComponent)
	r.Put("/rules/components/{componentID}", h.HandleUpdateComponent)
	r.Delete("/rules/components/{componentID}", h.HandleDeleteComponent)

	r.Get("/events/{entityType}/{entityID}/rules", h.HandleListRules)
	r.Post("/events/{entityType}/{entityID}/rules", h.HandleCreateRule)
	r.Delete("/events/{entityType}/{entityID}/rules", h.HandleDeleteEventRules)
	r.Post("/events/{entityType}/{entityID}/rules/customize", h.HandleCustomize)
}

// HandleResolve handles POST /rules/resolve requests.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.Decode[ResolveRequest](w, r, h.logger)
	if !ok {
		return
	}
	event, ectx, triggerID, err := req.Parse()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	ops, err := h.resolver.ResolveOperations(ctx, event, triggerID, ectx)
	if err != nil {
		h.logger.ErrorContext(ctx, "operation resolution failed",
			"request_id", requestcontext.RequestID(ctx),
			"event", event.Ref,
			"trigger", triggerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "operations resolved",
		"request_id", requestcontext.RequestID(ctx),
		"event", event.Ref,
		"trigger", triggerID,
		"operations", ops.Names(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{Operations: ops.Names()})
}

// HandleCreateRule handles POST /events/{entityType}/{entityID}/rules.
func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := eventFromPath(r)

	req, ok := httputil.Decode[CreateRuleRequest](w, r, h.logger)
	if !ok {
		return
	}
	components, err := req.ParseComponents()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	rule, err := h.service.CreateRule(ctx, event, req.Trigger, components)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRule(rule))
}

// HandleListRules handles GET /events/{entityType}/{entityID}/rules. The
// optional trigger query parameter narrows the listing.
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	event := eventFromPath(r)
	rules, err := h.service.ListRules(r.Context(), event, r.URL.Query().Get("trigger"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRules(rules))
}

// HandleDeleteEventRules handles DELETE /events/{entityType}/{entityID}/rules.
func (h *Handler) HandleDeleteEventRules(w http.ResponseWriter, r *http.Request) {
	event := eventFromPath(r)
	deleted, err := h.service.DeleteEventRules(r.Context(), event)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// HandleCustomize handles POST /events/{entityType}/{entityID}/rules/customize.
func (h *Handler) HandleCustomize(w http.ResponseWriter, r *http.Request) {
	event := eventFromPath(r)

	req, ok := httputil.Decode[CustomizeRequest](w, r, h.logger)
	if !ok {
		return
	}
	rules, err := h.service.Customize(r.Context(), models.Event{Ref: event, Bundle: req.Bundle}, req.Trigger)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRules(rules))
}

// HandleSetActive handles PATCH /rules/{ruleID}.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[SetActiveRequest](w, r, h.logger)
	if !ok {
		return
	}
	rule, err := h.service.SetRuleActive(r.Context(), id, req.Active)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRule(rule))
}

// HandleDeleteRule handles DELETE /rules/{ruleID}.
func (h *Handler) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddComponent handles POST /rules/{ruleID}/components.
func (h *Handler) HandleAddComponent(w http.ResponseWriter, r *http.Request) {
	ruleID, err := domain.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[ComponentRequest](w, r, h.logger)
	if !ok {
		return
	}
	component, err := req.Parse()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	created, err := h.service.AddComponent(r.Context(), ruleID, component)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromComponent(created))
}

// HandleUpdateComponent handles PUT /rules/components/{componentID}.
func (h *Handler) HandleUpdateComponent(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseComponentID(chi.URLParam(r, "componentID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	req, ok := httputil.Decode[ComponentRequest](w, r, h.logger)
	if !ok {
		return
	}
	component, err := req.Parse()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	component.ID = id
	if err := h.service.UpdateComponent(r.Context(), component); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteComponent handles DELETE /rules/components/{componentID}.
func (h *Handler) HandleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseComponentID(chi.URLParam(r, "componentID"))
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.DeleteComponent(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrManageDenied):
		httputil.WriteErrorStatus(w, http.StatusForbidden, err)
	case errors.Is(err, service.ErrCustomizationDisabled):
		httputil.WriteErrorStatus(w, http.StatusConflict, err)
	default:
		httputil.WriteError(w, err)
	}
	if requestID := requestcontext.RequestID(r.Context()); requestID != "" {
		h.logger.WarnContext(r.Context(), "rule request failed",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", err,
		)
	}
}

func eventFromPath(r *http.Request) domain.EntityRef {
	return domain.EntityRef{
		Type: chi.URLParam(r, "entityType"),
		ID:   chi.URLParam(r, "entityID"),
	}
}
