package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors the HTTP layer maps to status codes. Wrap domain errors with
// them, e.g. fmt.Errorf("%w: %w", httpx.ErrNotFound, err).
var (
	ErrNotFound      = errors.New("resource not found")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("unprocessable input")
	ErrUnavailable   = errors.New("service unavailable")
)

// StatusFor returns the status code and title for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, ErrUnprocessable):
		return http.StatusUnprocessableEntity, "Unprocessable Entity"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "Service Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps err to an RFC7807 response. Internal errors carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
