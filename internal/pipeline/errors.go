package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers and the HTTP layer can react
// without string matching.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidStage        Kind = "invalid_stage"
	KindDuplicateField      Kind = "duplicate_field"
	KindFieldInUse          Kind = "field_in_use"
	KindStageInUse          Kind = "stage_in_use"
	KindValidationFailed    Kind = "validation_failed"
	KindOperationInProgress Kind = "operation_in_progress"
	KindRejected            Kind = "rejected"
	KindUnreachable         Kind = "unreachable"
)

// FieldError is one field-level validation failure. Validation reports every
// failing field, not just the first.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the engine's error type.
type Error struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds an engine error.
func E(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an engine error around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// ValidationError builds a ValidationFailed error carrying per-field detail.
func ValidationError(fields []FieldError) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: fmt.Sprintf("validation failed for %d field(s)", len(fields)),
		Fields:  fields,
	}
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
