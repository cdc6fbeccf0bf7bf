// Package handler exposes registration eligibility checks over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eventgate/pkg/domain"
	"eventgate/pkg/platform/httputil"
	"eventgate/pkg/requestcontext"
)

// Service filters candidate identities down to those allowed to register.
type Service interface {
	IdentitiesCanRegister(ctx context.Context, event domain.EntityRef, candidates []domain.EntityRef) ([]domain.EntityRef, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts eligibility endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{entityType}/{entityID}/eligibility", h.HandleEligibility)
}

// HandleEligibility handles POST /events/{entityType}/{entityID}/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	event := domain.EntityRef{Type: chi.URLParam(r, "entityType"), ID: chi.URLParam(r, "entityID")}

	req, ok := httputil.Decode[EligibilityRequest](w, r, h.logger)
	if !ok {
		return
	}
	candidates, err := req.ParseCandidates()
	if err != nil {
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	eligible, err := h.service.IdentitiesCanRegister(ctx, event, candidates)
	if err != nil {
		h.logger.ErrorContext(ctx, "eligibility check failed",
			"request_id", requestcontext.RequestID(ctx),
			"event", event,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "eligibility resolved",
		"request_id", requestcontext.RequestID(ctx),
		"event", event,
		"candidates", len(candidates),
		"eligible", len(eligible),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromEligible(eligible))
}
