package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}

// Unauthorized wraps ErrUnauthorized with the operation that was refused.
func Unauthorized(op string) error {
	return fmt.Errorf("%w: %s requires admin role", ErrUnauthorized, op)
}

// Validation wraps ErrValidation with a human readable message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }

// Code returns the short machine readable code used in API responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	default:
		return "internal_server_error"
	}
}
