package domain

import (
	"errors"
	"fmt"
)

// ErrCollaboratorUnavailable is wrapped by every instrumentation attach failure.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// ValidationError rejects a startup configuration before any kernel resource
// is acquired.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SinkWriteError is returned when a sink rejects a point. It never stops the
// collection loop.
type SinkWriteError struct {
	Sink        string
	Measurement string
	Err         error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink %s rejected %s point: %v", e.Sink, e.Measurement, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}
