package stores

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a persistence error.
type ErrorClass string

const (
	// ErrorClassConflict indicates contention on the persisted state,
	// such as a lock held by another live process. Retryable.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassInternal indicates an unexpected persistence failure:
	// I/O errors, corrupted files, serialization failures.
	ErrorClassInternal ErrorClass = "internal"
)

// StoreError represents a classified persistence error with context.
type StoreError struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Path is the file path involved, if applicable.
	Path string `json:"path,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (path=%s, operation=%s): %s",
			e.Class, e.Message, e.Path, e.Operation, e.unwrapMessage())
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s (path=%s): %s",
			e.Class, e.Message, e.Path, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *StoreError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *StoreError {
	return &StoreError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *StoreError {
	return &StoreError{
		Class:   ErrorClassInternal,
		Message: message,
		Err:     err,
	}
}

// WithPath adds file path context to an error.
func (e *StoreError) WithPath(path string) *StoreError {
	e.Path = path
	return e
}

// WithOperation adds operation context to an error.
func (e *StoreError) WithOperation(operation string) *StoreError {
	e.Operation = operation
	return e
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	var e *StoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassConflict
	}
	return false
}

// IsInternal returns true if the error is classified as internal.
func IsInternal(err error) bool {
	var e *StoreError
	if errors.As(err, &e) {
		return e.Class == ErrorClassInternal
	}
	return false
}
