// Package httputil centralizes JSON encoding and error translation so every
// handler speaks the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"eventgate/pkg/platform/sentinel"
)

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates sentinel categories to HTTP statuses. Unrecognized
// errors become 500 with the detail omitted so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		WriteErrorStatus(w, http.StatusNotFound, err)
	case errors.Is(err, sentinel.ErrConflict):
		WriteErrorStatus(w, http.StatusConflict, err)
	case errors.Is(err, sentinel.ErrInvalidState):
		WriteErrorStatus(w, http.StatusBadRequest, err)
	case errors.Is(err, sentinel.ErrUnavailable):
		WriteErrorStatus(w, http.StatusServiceUnavailable, err)
	default:
		WriteErrorStatus(w, http.StatusInternalServerError, err)
	}
}

// WriteErrorStatus writes an error envelope with an explicit status. Server
// errors omit the description.
func WriteErrorStatus(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: http.StatusText(status)}
	if status < http.StatusInternalServerError {
		body.ErrorDescription = err.Error()
	}
	WriteJSON(w, status, body)
}

// Decode parses a JSON request body. On failure it writes a 400 response and
// returns false; the handler just returns.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		logger.WarnContext(r.Context(), "request decode failed",
			"path", r.URL.Path,
			"error", err,
		)
		WriteJSON(w, http.StatusBadRequest, errorBody{
			Error:            http.StatusText(http.StatusBadRequest),
			ErrorDescription: "invalid JSON body",
		})
		return v, false
	}
	return v, true
}
