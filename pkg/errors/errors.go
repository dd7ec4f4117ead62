// Package errors provides custom error types for the racesync system.
// These errors enable programmatic error checking across the reconciliation
// pipeline, the persistence adapters, and the command line.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Join is the standard library errors.Join.
var Join = errors.Join

// As and Is are the standard library functions, re-exported so callers
// need only this package.
var (
	As = errors.As
	Is = errors.Is
)

// Common sentinel errors for the racesync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrParse indicates that a raw value could not be normalized
	ErrParse = errors.New("parse failure")

	// ErrSourceUnavailable indicates that a collection task failed or timed out
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrAmbiguousMatch indicates that several stored variants matched equally well
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrPersistence indicates that the persistence collaborator rejected a write or read
	ErrPersistence = errors.New("persistence failure")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrDerivedField indicates an attempt to write a field that is always computed
	ErrDerivedField = errors.New("derived field")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError reports a single field whose raw value could not be normalized.
// It is never fatal: the field is treated as absent for the pass.
type ParseError struct {
	Field  string
	Source string
	Raw    string
	Kind   string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("cannot parse %s %q for field %s from %s", e.Kind, e.Raw, e.Field, e.Source)
	}
	return fmt.Sprintf("cannot parse %s %q for field %s", e.Kind, e.Raw, e.Field)
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError creates a new ParseError
func NewParseError(field, source, kind, raw string) *ParseError {
	return &ParseError{Field: field, Source: source, Kind: kind, Raw: raw}
}

// SourceUnavailableError is recorded when a collector errors or exceeds
// its timeout. The pass continues with fewer candidates.
type SourceUnavailableError struct {
	Source string
	Event  string
	Err    error
}

// Error implements the error interface
func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable for event %s: %v", e.Source, e.Event, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// NewSourceUnavailableError creates a new SourceUnavailableError
func NewSourceUnavailableError(source, event string, err error) *SourceUnavailableError {
	return &SourceUnavailableError{Source: source, Event: event, Err: err}
}

// AmbiguousMatchError describes a variant name that matched several stored
// variants at the same rank. The first stored variant is used.
type AmbiguousMatchError struct {
	Name       string
	Candidates []string
	Chosen     string
}

// Error implements the error interface
func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("variant %q matches %v equally, using %q", e.Name, e.Candidates, e.Chosen)
}

// Is implements errors.Is support
func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

// PersistenceError is the only failure that aborts a reconciliation pass.
type PersistenceError struct {
	Operation string // "load", "save", "list"
	EventID   string
	Err       error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("persistence %s failed for event %s: %v", e.Operation, e.EventID, e.Err)
	}
	return fmt.Sprintf("persistence %s failed: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(operation, eventID string, err error) *PersistenceError {
	return &PersistenceError{Operation: operation, EventID: eventID, Err: err}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close", "lock"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsParseFailure checks if an error is a field parse failure
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsSourceUnavailable checks if an error came from a failed collector
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsPersistence checks if an error came from the persistence collaborator
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapPersistence wraps an error as a PersistenceError
func WrapPersistence(operation, eventID string, err error) error {
	if err == nil {
		return nil
	}
	return NewPersistenceError(operation, eventID, err)
}
