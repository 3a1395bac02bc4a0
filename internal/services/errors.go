// Package services implements the request tracker's business rules on top of injected stores:
// the user directory, API key issuance and validation, request id allocation, and the
// component request lifecycle. Stores are interfaces so the same services run over
// PostgreSQL repositories or the in-memory store.
package services

import "errors"

var (
	// ErrRequestNotFound is returned when no component request has the given ID
	ErrRequestNotFound = errors.New("request not found")

	// ErrAPIKeyNotFound is returned when no API key has the given ID
	ErrAPIKeyNotFound = errors.New("api key not found")

	// ErrNotKeyOwner is returned when a caller tries to revoke a key it does not own
	ErrNotKeyOwner = errors.New("api key belongs to another user")
)

// ValidationError reports invalid caller input. It is surfaced as a 400 and never
// reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
