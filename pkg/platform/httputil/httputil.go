// Package httputil centralizes JSON envelope writing so every handler maps
// domain errors to HTTP statuses identically.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "qualitrack/pkg/domain-errors"
)

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates a domain error into the standard JSON error envelope.
// Internal errors keep their description out of the response body.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)

	body := map[string]any{"error": string(code)}
	var de *dErrors.Error
	if dErrors.As(err, &de) && code != dErrors.CodeInternal {
		body["error_description"] = de.Message
		if len(de.Details) > 0 {
			body["details"] = de.Details
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// DecodeJSON decodes a request body into dst, returning a bad-request domain
// error on malformed input.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
