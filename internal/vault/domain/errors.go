package domain

import (
	"github.com/allisson/cardvault/internal/errors"
)

var (
	// ErrInvalidCardNumber indicates the PAN is malformed or fails the Luhn check.
	ErrInvalidCardNumber = errors.Wrap(errors.ErrInvalidInput, "invalid card number")

	// ErrUnsupportedCardBrand indicates the PAN prefix matches no known brand.
	ErrUnsupportedCardBrand = errors.Wrap(errors.ErrInvalidInput, "unsupported card brand")

	// ErrInvalidCVV indicates the CVV is malformed or has the wrong length for the brand.
	ErrInvalidCVV = errors.Wrap(errors.ErrInvalidInput, "invalid cvv")

	// ErrInvalidCardExpiry indicates the expiry is malformed or already in the past.
	ErrInvalidCardExpiry = errors.Wrap(errors.ErrInvalidInput, "invalid card expiry")

	// ErrInvalidToken indicates an empty or malformed token argument.
	ErrInvalidToken = errors.Wrap(errors.ErrInvalidInput, "invalid token")

	// ErrInvalidExtension indicates a non-positive token expiry extension.
	ErrInvalidExtension = errors.Wrap(errors.ErrInvalidInput, "token expiry extension must be positive")

	// ErrInvalidTokenFormat indicates an unknown token format name.
	ErrInvalidTokenFormat = errors.Wrap(errors.ErrInvalidInput, "invalid token format")

	// ErrInvalidTokenLength indicates a configured token length outside the allowed range.
	ErrInvalidTokenLength = errors.Wrap(errors.ErrInvalidInput, "invalid token length")

	// ErrCardNotFound indicates no record exists for the token.
	ErrCardNotFound = errors.Wrap(errors.ErrNotFound, "card not found")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.Wrap(errors.ErrExpired, "token has expired")

	// ErrIntegrityCheckFailed indicates the stored record failed its tamper checks.
	ErrIntegrityCheckFailed = errors.Wrap(errors.ErrIntegrity, "card record integrity check failed")

	// ErrDuplicateToken indicates a generated token collided with an existing record
	// after every retry, or lost an insert race to another writer.
	ErrDuplicateToken = errors.Wrap(errors.ErrInvariant, "duplicate token")

	// ErrKeyRotationPartialFailure indicates some records could not be re-encrypted.
	ErrKeyRotationPartialFailure = errors.Wrap(errors.ErrPartialFailure, "key rotation partially failed")
)
