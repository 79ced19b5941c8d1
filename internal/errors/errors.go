// Package errors provides a lightweight structured error type (ServiceError)
// for category-based classification in the HTTP adapter and CLI.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a service error for classification.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Orchestration errors: workspace/file management and process launch.
	// These indicate environment misconfiguration, never bad program text.
	CategoryWorkspace ErrorCategory = "workspace"
	CategoryToolchain ErrorCategory = "toolchain"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ServiceError is a structured error with category, severity, and context.
type ServiceError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for ServiceError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new ServiceError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *ServiceError {
	return &ServiceError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new ServiceError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ServiceError {
	return &ServiceError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	if se, ok := err.(*ServiceError); ok {
		return se.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if it is not a ServiceError.
func GetCategory(err error) ErrorCategory {
	if se, ok := err.(*ServiceError); ok {
		return se.Category
	}
	return CategoryInternal
}

// AsService attempts to convert an error to a ServiceError.
func AsService(err error) (*ServiceError, bool) {
	se, ok := err.(*ServiceError)
	return se, ok
}
