// Package handler exposes event type policies and default rule templates
// over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventgate/internal/eventtype/models"
	"eventgate/pkg/platform/httputil"
	"eventgate/pkg/requestcontext"
)

// Service defines the event type operations the handler needs.
type Service interface {
	SaveType(ctx context.Context, eventType *models.EventType) error
	FindType(ctx context.Context, entityType, bundle string) (*models.EventType, error)
	ListTypes(ctx context.Context) ([]*models.EventType, error)
	DeleteType(ctx context.Context, entityType, bundle string) error
	SaveTemplate(ctx context.Context, rule *models.EventTypeRule) error
	FindTemplate(ctx context.Context, entityType, bundle, machineName string) (*models.EventTypeRule, error)
	ListTemplates(ctx context.Context, entityType, bundle string) ([]*models.EventTypeRule, error)
	DeleteTemplate(ctx context.Context, entityType, bundle, machineName string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts event type endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/event-types", h.HandleList)
	r.Put("/event-types/{entityType}/{bundle}", h.HandleSave)
	r.Get("/event-types/{entityType}/{bundle}", h.HandleGet)
	r.Delete("/event-types/{entityType}/{bundle}", h.HandleDelete)

	r.Get("/event-types/{entityType}/{bundle}/rules", h.HandleListTemplates)
	r.Put("/event-types/{entityType}/{bundle}/rules/{machineName}", h.HandleSaveTemplate)
	r.Get("/event-types/{entityType}/{bundle}/rules/{machineName}", h.HandleGetTemplate)
	r.Delete("/event-types/{entityType}/{bundle}/rules/{machineName}", h.HandleDeleteTemplate)
}

// HandleSave handles PUT /event-types/{entityType}/{bundle}.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[EventTypeRequest](w, r, h.logger)
	if !ok {
		return
	}
	eventType := req.ToModel(chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"))
	if err := eventType.Validate(); err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.SaveType(r.Context(), eventType); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEventType(eventType))
}

// HandleGet handles GET /event-types/{entityType}/{bundle}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	eventType, err := h.service.FindType(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEventType(eventType))
}

// HandleList handles GET /event-types.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	eventTypes, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]EventTypeResponse, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		out = append(out, FromEventType(eventType))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /event-types/{entityType}/{bundle}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteType(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSaveTemplate handles PUT /event-types/{entityType}/{bundle}/rules/{machineName}.
func (h *Handler) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[TemplateRequest](w, r, h.logger)
	if !ok {
		return
	}
	template := req.ToModel(chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"), chi.URLParam(r, "machineName"))
	if err := template.Validate(); err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	if err := h.service.SaveTemplate(r.Context(), template); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplate(template))
}

// HandleGetTemplate handles GET /event-types/{entityType}/{bundle}/rules/{machineName}.
func (h *Handler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.service.FindTemplate(r.Context(),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"), chi.URLParam(r, "machineName"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTemplate(template))
}

// HandleListTemplates handles GET /event-types/{entityType}/{bundle}/rules.
func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context(), chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]TemplateResponse, 0, len(templates))
	for _, template := range templates {
		out = append(out, FromTemplate(template))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleDeleteTemplate handles DELETE /event-types/{entityType}/{bundle}/rules/{machineName}.
func (h *Handler) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "bundle"), chi.URLParam(r, "machineName")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, err)
	h.logger.WarnContext(r.Context(), "event type request failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"path", r.URL.Path,
		"error", err,
	)
}
