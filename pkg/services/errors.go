package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup for a session or item that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput marks a request rejected before any state changed.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError names the offending field so API handlers can surface
// it to the client verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
