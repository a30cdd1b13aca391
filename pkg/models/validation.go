package models

import (
	"fmt"
	"strings"
)

// FieldError describes a single violated field.
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationError collects every violated field of an operation, so
// the operator sees all problems at once instead of fixing them one
// round-trip at a time.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Add records a violated field.
func (e *ValidationError) Add(field string, value interface{}, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Value: value, Message: message})
}

// Err returns the accumulated error, or nil if nothing was recorded.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
