package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and services.
var (
	ErrNotFound = errors.New("not found")
)

// Error codes attached to API error responses.
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeDatabaseError  = "DATABASE_ERROR"
	ErrCodeSearchFailure  = "SEARCH_UNAVAILABLE"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError reports a malformed request field. It is the only error
// class that crosses the scoring engine's boundary as a failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SearchUnavailableError reports that a literature search backend failed or
// timed out. The aggregator recovers from it per component by substituting
// an empty-evidence placeholder; it is never surfaced to the caller.
type SearchUnavailableError struct {
	Backend string
	Query   string
	Err     error
}

// Error implements the error interface.
func (e *SearchUnavailableError) Error() string {
	return fmt.Sprintf("literature search unavailable (%s, query %q): %v", e.Backend, e.Query, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *SearchUnavailableError) Unwrap() error {
	return e.Err
}

// IsSearchUnavailable reports whether err is a search collaborator failure.
func IsSearchUnavailable(err error) bool {
	var su *SearchUnavailableError
	return errors.As(err, &su)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
