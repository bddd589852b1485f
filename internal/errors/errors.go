// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. Domain packages wrap these sentinels so callers
// can classify any vault, key or HSM failure with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the change clashes with stored state, such as a duplicate
	// id or a key status change outside the lifecycle.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller doesn't hold the required privilege.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates the resource exists but is past its validity window.
	ErrExpired = errors.New("expired")

	// ErrIntegrity indicates stored data failed an integrity check and may have been
	// tampered with. Must never be masked as a generic failure.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrUnavailable indicates a transient dependency failure. Safe to retry with backoff.
	ErrUnavailable = errors.New("unavailable")

	// ErrPartialFailure indicates a batch operation completed with per-item failures.
	ErrPartialFailure = errors.New("partial failure")

	// ErrInvariant indicates an internal invariant was violated. It signals a bug:
	// the operation must abort and an alert should be raised.
	ErrInvariant = errors.New("invariant violation")
)

// New returns a plain error. Domain packages prefer Wrap over a base sentinel.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message and keeps it matchable with Is. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether err is a transient failure a caller may retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
