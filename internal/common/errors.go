// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrStorage           = errors.New("storage failure")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Input errors.
	ErrValidation = errors.New("validation failed")

	// Training errors.
	ErrInsufficientData   = errors.New("insufficient training data")
	ErrConcurrentTraining = errors.New("training already in progress")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Err     error
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapValidation turns a lower-level validation failure into a ValidationError.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientDataError is returned when the training corpus is too small.
// Shortfall holds the current example count for every category that is
// below the required minimum.
type InsufficientDataError struct {
	Shortfall  map[string]int
	Required   int
	Categories int
}

func (e *InsufficientDataError) Error() string {
	if len(e.Shortfall) == 0 {
		return fmt.Sprintf("%s: need at least 2 categories, have %d", ErrInsufficientData, e.Categories)
	}

	names := make([]string, 0, len(e.Shortfall))
	for name := range e.Shortfall {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, e.Shortfall[name]))
	}

	return fmt.Sprintf("%s: categories below %d examples: %s",
		ErrInsufficientData, e.Required, strings.Join(parts, ", "))
}

// Is lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// StorageError wraps a failure from the persistence layer.
type StorageError struct {
	Err error
	Op  string
}

// NewStorageError wraps err as a StorageError for the named operation.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Caller mistakes never succeed on a second attempt.
	if errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrConcurrentTraining) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return isBusy(err)
}

// isBusy reports whether err looks like SQLite lock contention.
func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
