// Package handler contains the HTTP layer: request decoding, response
// encoding, and the translation of domain errors into status codes.
// Business rules live in the service layer; nothing in this package
// touches the database directly.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/cardbinder/internal/apperror"
)

// ErrorResponse is the error shape every endpoint returns. The frontend
// can always rely on these two fields regardless of status code.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "duplicate_name"
	Message string `json:"message"` // human-readable description
	Field   string `json:"field,omitempty"`
}

// writeJSON sends a JSON response. Headers and status must go out before
// the body; once Encode writes, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// The mapping lives here, not in the service layer, so services stay
// protocol-agnostic. errors.Is walks the wrap chain, so a service error
// like fmt.Errorf("deleting collection: %w", apperror.NonEmptyCollection(...))
// still matches its sentinel.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Unknown error. Keep internals (SQL, file paths) off the wire.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	kind := "internal_error"

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrDuplicateName):
		status, kind = http.StatusConflict, "duplicate_name"
	case errors.Is(err, apperror.ErrCannotUnsetDefault):
		status, kind = http.StatusConflict, "cannot_unset_default"
	case errors.Is(err, apperror.ErrLastCollection):
		status, kind = http.StatusConflict, "last_collection"
	case errors.Is(err, apperror.ErrDefaultUndeletable):
		status, kind = http.StatusConflict, "default_undeletable"
	case errors.Is(err, apperror.ErrNonEmptyCollection):
		status, kind = http.StatusConflict, "non_empty_collection"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrPartialImport):
		// The restore made real progress before failing; 207 tells the
		// client to read the body for per-item results.
		status, kind = http.StatusMultiStatus, "partial_import"
	case errors.Is(err, apperror.ErrStore):
		status, kind = http.StatusInternalServerError, "store_error"
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

// decodeJSON decodes a request body into dst with unknown fields
// rejected, returning a validation error suitable for writeError.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON request body: "+err.Error())
	}
	return nil
}
