// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflicting state")
	ErrUnprocessable = errors.New("unprocessable request")
	ErrExternal      = errors.New("external service unavailable")
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
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnprocessable):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, ErrExternal):
		Problem(w, http.StatusBadGateway, "Upstream Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
