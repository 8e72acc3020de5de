// Package apperr defines the error taxonomy shared by the knowledge store,
// the escalation ledger and their transports.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed input to a store or ledger write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown request or entry id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an illegal state transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateSession marks a second escalation for a session that
	// already has an open request.
	ErrDuplicateSession = errors.New("session already has an open help request")
	// ErrDependency marks an unreachable notifier or storage backend.
	ErrDependency = errors.New("dependency unavailable")
)

// Validation returns an error wrapping ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an error wrapping ErrNotFound.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// InvalidState returns an error wrapping ErrInvalidState.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Dependency wraps err as an ErrDependency failure of the named collaborator.
func Dependency(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependency, what, err)
}

// HTTPStatus maps an error from this taxonomy to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
