package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Services wrap these with
// fmt.Errorf("...: %w", ...) and handlers translate them through
// RespondError.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("username or password are not correct")
)

// RespondError maps domain errors to HTTP responses. Uniqueness
// violations surface as 400 per the service contract, not 409.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		// Same body for unknown user and wrong password so the
		// endpoint cannot be used to enumerate usernames.
		Error(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
