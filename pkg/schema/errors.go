package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeFormat          = "FORMAT_ERROR"
	ErrCodeUnsafeDelimiter = "UNSAFE_DELIMITER"
	ErrCodeUnknownVariant  = "UNKNOWN_VARIANT"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeExecution       = "EXECUTION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeStore           = "STORE_ERROR"
	ErrCodePersistence     = "PERSISTENCE_FAILURE"
)

// DesignerError is the structured error type for all designer operations.
type DesignerError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	ShapeID string         `json:"shape_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *DesignerError) Error() string {
	if e.ShapeID != "" {
		return fmt.Sprintf("[%s] shape %s: %s", e.Code, e.ShapeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DesignerError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DesignerError.
func NewError(code, message string) *DesignerError {
	return &DesignerError{Code: code, Message: message}
}

// NewErrorf creates a new DesignerError with a formatted message.
func NewErrorf(code, format string, args ...any) *DesignerError {
	return &DesignerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithShape attaches a shape ID to the error.
func (e *DesignerError) WithShape(shapeID string) *DesignerError {
	e.ShapeID = shapeID
	return e
}

// WithCause attaches an underlying cause.
func (e *DesignerError) WithCause(err error) *DesignerError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *DesignerError) WithDetails(details map[string]any) *DesignerError {
	e.Details = details
	return e
}

// IsCode reports whether err, or any error it wraps, is a DesignerError with the given code.
func IsCode(err error, code string) bool {
	var de *DesignerError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
