// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Domain packages wrap these so
// the edge can map any failure onto a response class.
var (
	// ErrNotFound indicates the referenced entity does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates a uniqueness conflict (company+code keys,
	// one closure per order).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrIllegalState indicates a disallowed lifecycle transition or a
	// repeated one-shot operation.
	ErrIllegalState = errors.New("illegal state")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrIllegalState):
		Problem(w, http.StatusBadRequest, "Illegal State", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
