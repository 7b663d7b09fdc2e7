package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by repositories, services and handlers.
var (
	ErrValidation         = errors.New("validation failed")
	ErrBadRequest         = errors.New("bad request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEstimationFailed   = errors.New("estimation failed")
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords so callers cannot tell which one failed.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
