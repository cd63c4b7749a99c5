package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/parser"
	"github.com/starford/modelstore/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Code is the error category, e.g. "not_found".
	Code string `json:"code,omitempty" example:"not_found"`
	// Op is the failing store operation, when known.
	Op string `json:"op,omitempty" example:"modelFor"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// classify maps domain errors to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, parser.ErrInvalid),
		errors.Is(err, parser.ErrUnsupported),
		errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, storage.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, apperr.ErrCapabilityDisabled):
		return http.StatusNotImplemented, "capability_disabled"
	case errors.Is(err, apperr.ErrLifecycleViolation):
		return http.StatusServiceUnavailable, "lifecycle_violation"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError writes err with its mapped status. Unexpected errors are logged
// and reported as "internal error".
func writeError(w http.ResponseWriter, action string, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error(action+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errResponse{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Code: code, Op: apperr.OpOf(err)})
}
