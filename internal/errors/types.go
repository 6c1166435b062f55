package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeCollection ErrorType = "collection"
	ErrorTypePagination ErrorType = "pagination"
	ErrorTypeModule     ErrorType = "module"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeInternal   ErrorType = "internal"
)

// PageError is a structured error type with context.
type PageError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
}

// Error implements the error interface.
func (e *PageError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	parts = append(parts, e.Message)

	if e.FilePath != "" {
		parts = append(parts, fmt.Sprintf("(%s)", e.FilePath))
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PageError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PageError) Is(target error) bool {
	var t *PageError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PageError) WithContext(key string, value interface{}) *PageError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds the page source the error belongs to.
func (e *PageError) WithFile(filePath string) *PageError {
	e.FilePath = filePath

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PageError {
	return &PageError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PageError {
	return &PageError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrap wraps an error with additional context, creating a PageError if the input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *PageError {
	if err == nil {
		return nil
	}

	var pe *PageError
	if errors.As(err, &pe) {
		return &PageError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    pe,
			Context:  pe.Context,
			FilePath: pe.FilePath,
		}
	}

	return &PageError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// TypeOf reports the ErrorType of the first PageError in err's chain, or ""
// when there is none.
func TypeOf(err error) ErrorType {
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ""
}
