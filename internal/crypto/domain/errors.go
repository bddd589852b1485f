package domain

import (
	"github.com/allisson/cardvault/internal/errors"
)

// Cryptographic operation error definitions.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an AEAD open failed. The specific cause (wrong key,
	// modified ciphertext, nonce or tag) is deliberately not disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrIntegrity, "decryption failed")

	// ErrInvalidKMSKeyURI indicates a KMS key URI names a provider that is not supported.
	ErrInvalidKMSKeyURI = errors.Wrap(errors.ErrInvalidInput, "invalid kms key uri")

	// ErrMasterKeysNotSet indicates no master keys were configured.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "MASTER_KEYS is not set")

	// ErrActiveMasterKeyIDNotSet indicates no active master key id was configured.
	ErrActiveMasterKeyIDNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_MASTER_KEY_ID is not set")

	// ErrInvalidMasterKeysFormat indicates a master key entry is not in "id:base64key" form.
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key could not be base64-decoded.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates the active master key id is not in the chain.
	ErrActiveMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "active master key not found")

	// ErrMasterKeyNotFound indicates a master key referenced by wrapped material is unknown.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "master key not found")
)
