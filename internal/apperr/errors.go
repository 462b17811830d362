// Package apperr defines the error taxonomy shared by services and transports.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError from a message.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Err: errors.New(msg)}
}

// ConfigurationError reports an unusable setting supplied by the caller,
// such as an unknown timezone identifier.
type ConfigurationError struct {
	Setting string
	Value   string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Setting, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the record store with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Timeout reports whether the store call ran out of time. Timeouts are safe to retry.
func (e *StoreError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	var ve *ValidationError
	var ce *ConfigurationError
	return errors.As(err, &ve) || errors.As(err, &ce)
}
