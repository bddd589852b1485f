package domain

import (
	"github.com/allisson/cardvault/internal/errors"
)

// Access control error definitions.
var (
	// ErrAccessDenied indicates the access context does not satisfy the operation.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")

	// ErrInvalidLevel indicates an unknown privilege level name.
	ErrInvalidLevel = errors.Wrap(errors.ErrInvalidInput, "invalid access level")

	// ErrSignatureInvalid indicates an audit entry failed signature verification.
	ErrSignatureInvalid = errors.Wrap(errors.ErrIntegrity, "audit entry signature invalid")
)
