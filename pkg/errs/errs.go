// Package errs defines the error taxonomy shared across the Stelae
// permission service. Errors are matched with errors.Is against the
// sentinel for their kind, so callers never string-match messages.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for the five error kinds. Every error produced by the engine
// wraps exactly one of these.
var (
	// ErrNotFound: a referenced project, group, permission or record does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a record already exists for the same key.
	ErrConflict = errors.New("already exists")

	// ErrBadRequest: the caller supplied invalid input (missing selector,
	// zero-field update, property resolution without a property IRI).
	ErrBadRequest = errors.New("bad request")

	// ErrForbidden: the caller lacks the rights for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInconsistentState: a data-integrity violation such as a group with
	// no owning project or two precedence tiers firing at once. Always a
	// defect, never user-triggered; must not be masked as an empty result.
	ErrInconsistentState = errors.New("inconsistent state")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrConflict, args)...)
}

// BadRequest wraps ErrBadRequest with a formatted message.
func BadRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrBadRequest, args)...)
}

// Forbidden wraps ErrForbidden with a formatted message.
func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrForbidden, args)...)
}

// InconsistentState wraps ErrInconsistentState with a formatted message.
func InconsistentState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrInconsistentState, args)...)
}

func prepend(err error, args []interface{}) []interface{} {
	return append([]interface{}{err}, args...)
}

// IsClientError reports whether err is one of the kinds a client can
// trigger and recover from. InconsistentState is deliberately excluded: it
// indicates a defect and is surfaced, not recovered.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrForbidden)
}

// HTTPStatus maps an error to the status code reported at the request
// boundary. Unrecognized errors, including InconsistentState, map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
