// Package errors provides structured error types for the Ampline pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across stages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage or subsystem.
type ErrorCategory string

const (
	ErrCategorySession  ErrorCategory = "SESSION"
	ErrCategoryFetch    ErrorCategory = "FETCH"
	ErrCategoryClean    ErrorCategory = "CLEAN"
	ErrCategoryIsolate  ErrorCategory = "ISOLATE"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Session codes
	CodeInvalidRoster   = "INVALID_ROSTER"
	CodeNoSession       = "NO_SESSION"
	CodeInvalidDateSpan = "INVALID_DATE_SPAN"

	// Fetch codes
	CodeExportRequestFailed = "EXPORT_REQUEST_FAILED"
	CodeBadArchive          = "BAD_ARCHIVE"

	// Clean codes
	CodeUnreadableRecord = "UNREADABLE_RECORD"

	// Isolate codes
	CodeNoCleanRecords = "NO_CLEAN_RECORDS"

	// Catalog codes
	CodeCatalogOpenFailed  = "CATALOG_OPEN_FAILED"
	CodeCatalogWriteFailed = "CATALOG_WRITE_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code describes a transient condition.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryFetch && code == CodeExportRequestFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeCatalogWriteFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSessionError(code, message string) *PipelineError {
	return New(ErrCategorySession, code, message)
}

func NewFetchError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryFetch, code, message, cause)
}

func NewCleanError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryClean, code, message, cause)
}

func NewIsolateError(code, message string) *PipelineError {
	return New(ErrCategoryIsolate, code, message)
}

func NewCatalogError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
