package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ugobe007/pythh-sub021/internal/rescore"
	"github.com/ugobe007/pythh-sub021/internal/versions"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a typed domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, versions.ErrVersionNotActive),
		errors.Is(err, versions.ErrVersionAlreadyExists),
		errors.Is(err, versions.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, versions.ErrInvariantViolation),
		errors.Is(err, versions.ErrInvalidVersionID),
		errors.Is(err, rescore.ErrUnknownSignal),
		errors.Is(err, rescore.ErrNoFeatures):
		return http.StatusUnprocessableEntity
	case errors.Is(err, versions.ErrVersionNotFound),
		errors.Is(err, rescore.ErrStartupNotFound),
		errors.Is(err, rescore.ErrNotScored):
		return http.StatusNotFound
	case errors.Is(err, versions.ErrNoActiveVersion):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports typed failures with their reason. Anything else is
// logged and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
