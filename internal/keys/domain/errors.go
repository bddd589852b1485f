package domain

import (
	"github.com/allisson/cardvault/internal/errors"
)

// Key lifecycle error definitions.
var (
	// ErrKeyNotFound indicates the key record does not exist.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrInvalidPurpose indicates an unknown key purpose.
	ErrInvalidPurpose = errors.Wrap(errors.ErrInvalidInput, "invalid key purpose")

	// ErrInvalidTransition indicates a status change outside the allowed lifecycle.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid key status transition")

	// ErrRotationInProgress indicates the purpose already has a rotating key.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "key rotation already in progress")

	// ErrNoRotationInProgress indicates there is no rotating key for the purpose.
	ErrNoRotationInProgress = errors.Wrap(errors.ErrNotFound, "no key rotation in progress")

	// ErrKeyStatusChanged indicates another writer changed the key status first.
	ErrKeyStatusChanged = errors.Wrap(errors.ErrConflict, "key status changed concurrently")

	// ErrKeyNotUsable indicates the key status forbids the requested use.
	ErrKeyNotUsable = errors.Wrap(errors.ErrForbidden, "key is not usable")
)
