// Package errors provides error handling for promptloom.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors for the engine's failure taxonomy.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrValidation indicates a malformed entity rejected at construction
	ErrValidation = New("validation failed")

	// ErrStorage indicates an I/O, serialization, or backup/restore failure
	ErrStorage = New("storage failure")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrConflict indicates a resource conflict (e.g., duplicate name)
	ErrConflict = New("resource conflict")
)

// CircularReferenceError reports a cycle in the subprompt reference graph or
// the folder parent chain. Path holds the node names/ids in traversal order,
// ending at the node that closed the cycle.
type CircularReferenceError struct {
	Path []string
}

func (e *CircularReferenceError) Error() string {
	return "circular reference detected: " + strings.Join(e.Path, " -> ")
}

// NewCircularReference creates a CircularReferenceError for the given path.
// The path is copied so callers may keep mutating their slice.
func NewCircularReference(path []string) error {
	p := make([]string, len(path))
	copy(p, path)
	return &CircularReferenceError{Path: p}
}

// IsCircularReference checks if an error is or wraps a CircularReferenceError.
func IsCircularReference(err error) bool {
	if err == nil {
		return false
	}
	var cre *CircularReferenceError
	return As(err, &cre)
}

// CyclePath extracts the cycle path from an error, or nil if the error does
// not carry one.
func CyclePath(err error) []string {
	var cre *CircularReferenceError
	if As(err, &cre) {
		return cre.Path
	}
	return nil
}

// IsValidationError checks if an error is or wraps ErrValidation
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsStorageError checks if an error is or wraps ErrStorage
func IsStorageError(err error) bool {
	return err != nil && Is(err, ErrStorage)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// NewStorageError creates a storage error with a formatted message
func NewStorageError(format string, args ...interface{}) error {
	return Wrap(ErrStorage, Newf(format, args...).Error())
}

// WrapStorage wraps an error as a storage error with context
func WrapStorage(err error, context string) error {
	return Wrap(Wrap(ErrStorage, err.Error()), context)
}
