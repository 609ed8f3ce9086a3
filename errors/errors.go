package errors

import (
	"errors"
	"fmt"
)

// Common error types for categorization and handling

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable indicates a required service is unavailable
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDatabaseOperation indicates a database operation failed
	ErrDatabaseOperation = errors.New("database operation failed")

	// ErrLLMCommunication indicates LLM communication failed
	ErrLLMCommunication = errors.New("llm communication failed")

	// ErrGitOperation indicates a git subprocess failed or returned unexpected output
	ErrGitOperation = errors.New("git operation failed")
)

// InvalidFilterValueError is returned when a retrieval filter is outside its
// accepted enumeration. Value holds the raw string supplied by the caller.
type InvalidFilterValueError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected one of %v", e.Field, e.Value, e.Allowed)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InvalidFilterValueError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with context message and stack
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsServiceUnavailable checks if error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// IsInvalidFilterValue reports whether err carries an InvalidFilterValueError
// and returns it.
func IsInvalidFilterValue(err error) (*InvalidFilterValueError, bool) {
	var target *InvalidFilterValueError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
