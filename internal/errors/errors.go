// Package errors provides structured error types for the build pipeline.
// All errors include a category, code, message and cause for consistent
// handling across components: every category is fatal for the current run.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategoryFetch    ErrorCategory = "FETCH"
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryRegion   ErrorCategory = "REGION"
	ErrCategorySentinel ErrorCategory = "SENTINEL"
	ErrCategoryIndex    ErrorCategory = "INDEX"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Fetch codes
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeTooManyRedirects  = "TOO_MANY_REDIRECTS"

	// Schema codes
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodeBadCast        = "BAD_CAST"

	// Region codes
	CodePartialRegionSet = "PARTIAL_REGION_SET"
	CodeEmptyRegionIndex = "EMPTY_REGION_INDEX"

	// Sentinel codes
	CodeSentinelCollision = "SENTINEL_COLLISION"

	// Index codes
	CodeIndexBuildFailure = "INDEX_BUILD_FAILURE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// BuildError is the structured error type used throughout the pipeline.
type BuildError struct {
	Category ErrorCategory
	Code     string
	Message  string
	// Table names the output table being built when the error occurred,
	// empty when the failure is not tied to one table.
	Table string
	Cause error
}

// Error returns a formatted error string.
func (e *BuildError) Error() string {
	prefix := fmt.Sprintf("[%s:%s]", e.Category, e.Code)
	if e.Table != "" {
		prefix = fmt.Sprintf("%s table=%s", prefix, e.Table)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BuildError) Is(target error) bool {
	var t *BuildError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BuildError.
func New(category ErrorCategory, code, message string) *BuildError {
	return &BuildError{Category: category, Code: code, Message: message}
}

// Wrap creates a new BuildError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BuildError {
	return &BuildError{Category: category, Code: code, Message: message, Cause: cause}
}

// WithTable returns a copy of the error annotated with the failing table.
func (e *BuildError) WithTable(table string) *BuildError {
	cp := *e
	cp.Table = table
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BuildError.
func GetCategory(err error) ErrorCategory {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BuildError.
func GetCode(err error) string {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Convenience constructors for the error taxonomy.

func NewSourceUnavailable(source string, cause error) *BuildError {
	return Wrap(ErrCategoryFetch, CodeSourceUnavailable, fmt.Sprintf("source %s unavailable", source), cause)
}

func NewSchemaMismatch(dataset, detail string) *BuildError {
	return New(ErrCategorySchema, CodeSchemaMismatch, fmt.Sprintf("dataset %s: %s", dataset, detail))
}

func NewPartialRegionSet(message string, cause error) *BuildError {
	return Wrap(ErrCategoryRegion, CodePartialRegionSet, message, cause)
}

func NewSentinelCollision(column string, sentinel int64) *BuildError {
	return New(ErrCategorySentinel, CodeSentinelCollision,
		fmt.Sprintf("sentinel %d inside legal domain of column %s", sentinel, column))
}

func NewIndexBuildFailure(index string, cause error) *BuildError {
	return Wrap(ErrCategoryIndex, CodeIndexBuildFailure, fmt.Sprintf("index %s", index), cause)
}

func NewInternalError(message string, cause error) *BuildError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
