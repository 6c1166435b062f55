// Package errors defines the error taxonomy of the routing engine: URL map
// conflicts, collection validation failures, pagination contract violations,
// module load failures and render failures. Each kind is a concrete type so
// callers can tell them apart with errors.As.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModuleNotFound is returned by module loaders when a page source or one
// of its imports does not exist.
var ErrModuleNotFound = errors.New("module not found")

// ConflictError reports two page sources claiming the same URL. It is only
// produced while building a URL map.
type ConflictError struct {
	URL      string
	Existing string
	Incoming string
	// Collection is set when the clash is between collection bases.
	Collection bool
}

func (e *ConflictError) Error() string {
	kind := "static URL"
	if e.Collection {
		kind = "collection URL"
	}
	return fmt.Sprintf("%s conflict: %s (claimed by %s and %s)", kind, e.URL, e.Existing, e.Incoming)
}

// CollectionValidationError reports a malformed collection declaration or a
// request the declaration cannot serve.
type CollectionValidationError struct {
	File   string
	Key    string
	Reason string
	// Deprecated marks declarations using the legacy collection API.
	Deprecated bool
	// NoRoute marks a request the collection route does not match.
	NoRoute bool
}

func (e *CollectionValidationError) Error() string {
	prefix := "[collection]"
	if e.Deprecated {
		prefix = "[deprecated]"
	}
	if e.File == "" {
		return fmt.Sprintf("%s %s", prefix, e.Reason)
	}
	return fmt.Sprintf("%s %s (%s)", prefix, e.Reason, e.File)
}

// IsNotFound reports whether the error describes a request outside the
// collection rather than a malformed declaration.
func (e *CollectionValidationError) IsNotFound() bool {
	return e.NoRoute
}

// NewCollectionError builds a CollectionValidationError.
func NewCollectionError(file, format string, args ...interface{}) *CollectionValidationError {
	return &CollectionValidationError{File: file, Reason: fmt.Sprintf(format, args...)}
}

// PaginationContractViolation reports a collection that broke the pagination
// call contract, or a request for a page that does not exist.
type PaginationContractViolation struct {
	File string
	// Calls is the number of paginate calls observed; -1 when not applicable.
	Calls    int
	Page     int
	LastPage int
	// ExplicitFirstPage is set when page 1 was requested with an explicit
	// page segment.
	ExplicitFirstPage bool
	// InvalidPage is set when the page segment is not a positive integer.
	InvalidPage bool
}

func (e *PaginationContractViolation) Error() string {
	switch {
	case e.ExplicitFirstPage:
		return fmt.Sprintf("[pagination] the first page of a paginated collection has no page number in the URL (%s)", e.File)
	case e.InvalidPage:
		return fmt.Sprintf("[pagination] page segment is not a positive page number (%s)", e.File)
	case e.OutOfRange():
		return fmt.Sprintf("[pagination] page %d does not exist. Available pages: 1-%d (%s)", e.Page, e.LastPage, e.File)
	default:
		return fmt.Sprintf("[pagination] paginate() must be called 1 time when paginate is enabled. Called %d times instead (%s)", e.Calls, e.File)
	}
}

// OutOfRange reports whether the violation is a request beyond the last page.
func (e *PaginationContractViolation) OutOfRange() bool {
	return e.LastPage > 0 && e.Page > e.LastPage
}

// IsExplicitFirstPage reports whether page 1 was requested as "/1".
func (e *PaginationContractViolation) IsExplicitFirstPage() bool {
	return e.ExplicitFirstPage
}

// IsNotFound reports whether the violation describes a page that does not
// exist rather than a defect in the collection source.
func (e *PaginationContractViolation) IsNotFound() bool {
	return e.OutOfRange() || e.InvalidPage
}

// ModuleLoadError reports that a page source, or something it imports,
// could not be loaded.
type ModuleLoadError struct {
	File   string
	Module string
	Cause  error
}

func (e *ModuleLoadError) Error() string {
	if e.Module != "" && e.Module != e.File {
		return fmt.Sprintf("could not find %q imported by %s: %v", e.Module, e.File, e.Cause)
	}
	return fmt.Sprintf("could not load %s: %v", e.File, e.Cause)
}

func (e *ModuleLoadError) Unwrap() error {
	return e.Cause
}

// ParseError reports a page source the compiler rejected.
type ParseError struct {
	File  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.File, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// RenderRuntimeError wraps an arbitrary failure raised by user code while
// producing props or rendering a page.
type RenderRuntimeError struct {
	File  string
	Cause error
}

func (e *RenderRuntimeError) Error() string {
	return fmt.Sprintf("render %s: %v", e.File, e.Cause)
}

func (e *RenderRuntimeError) Unwrap() error {
	return e.Cause
}

// Multi aggregates independent errors, e.g. every failed page of an export.
type Multi []error

func (m Multi) Error() string {
	msgs := make([]string, 0, len(m))
	for _, err := range m {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors:\n  %s", len(m), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (m Multi) Unwrap() []error {
	return m
}

// ErrOrNil returns nil for an empty aggregate.
func (m Multi) ErrOrNil() error {
	if len(m) == 0 {
		return nil
	}
	return m
}
