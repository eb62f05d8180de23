package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mattiagosetto9/ha-voice-manager/internal/apply"
	"github.com/mattiagosetto9/ha-voice-manager/internal/bridge"
	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/compile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
	"github.com/mattiagosetto9/ha-voice-manager/internal/safety"
	"github.com/mattiagosetto9/ha-voice-manager/internal/system"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUpstream     = "upstream_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors onto HTTP responses. Unrecognised
// errors become 500s with the message suppressed.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrUnknownProfile):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, profile.ErrProfileReadOnly):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, rules.ErrVersionConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict,
			"committed state changed since this draft was loaded; reload or discard")
	case errors.Is(err, apply.ErrNotCommittable):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, compile.ErrSettingsIncomplete),
		errors.Is(err, draft.ErrInvalidOperation),
		errors.Is(err, profile.ErrInvalidMode),
		errors.Is(err, profile.ErrInvalidFilterMode),
		errors.Is(err, profile.ErrInvalidDecision),
		errors.Is(err, profile.ErrInvalidEntityID),
		errors.Is(err, profile.ErrInvalidDomain),
		errors.Is(err, profile.ErrInvalidAlias),
		errors.Is(err, profile.ErrTooManyEntities):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, catalog.ErrCatalogUnavailable),
		errors.Is(err, system.ErrPlatformUnavailable),
		errors.Is(err, bridge.ErrBridgeUnavailable):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	case errors.Is(err, safety.ErrPathTraversal), errors.Is(err, safety.ErrUnsafeContent):
		// Safety violations are an operator-facing configuration problem,
		// not a client mistake.
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		writeInternalError(w, "internal server error")
	}
}
