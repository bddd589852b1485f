package domain

import (
	"github.com/allisson/cardvault/internal/errors"
)

// HSM error definitions.
var (
	// ErrHSMUnavailable indicates the module is not connected or an operation timed out.
	// Transient: callers may retry with backoff.
	ErrHSMUnavailable = errors.Wrap(errors.ErrUnavailable, "hsm unavailable")

	// ErrAuthenticationFailed indicates AEAD tag verification failed during decryption.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrIntegrity, "hsm authentication failed")

	// ErrKeyNotFound indicates the key identifier is unknown to the module.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "hsm key not found")

	// ErrBackupProviderMismatch indicates a backup was produced by a different wrapper.
	ErrBackupProviderMismatch = errors.Wrap(errors.ErrInvalidInput, "backup provider mismatch")

	// ErrAlreadyConnecting indicates Connect was called while a connection attempt is running.
	ErrAlreadyConnecting = errors.Wrap(errors.ErrConflict, "hsm connection already in progress")
)
