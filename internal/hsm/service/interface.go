// Package service implements the HSM abstraction: a connection state machine,
// opaque key handles, AEAD encryption, HMAC signing and wrapped-key backups. The
// only vendor-specific code lives behind KeyWrapper, so the software simulator
// and the cloud KMS backend share every caller-visible behavior.
package service

import (
	"context"

	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// Module is the HSM boundary consumed by the key lifecycle manager and the vault.
// Every method except State and Stats fails fast with ErrHSMUnavailable while the
// module is not connected, and is bounded by the module timeout.
type Module interface {
	// Connect moves the module from disconnected to connected.
	Connect(ctx context.Context) error

	// Close disconnects the module and releases backend resources.
	Close(ctx context.Context) error

	// State returns the current connection state.
	State() hsmDomain.ConnectionState

	// GenerateKey creates a key for purpose and returns its opaque identifier.
	GenerateKey(ctx context.Context, purpose string, opts hsmDomain.GenerateKeyOptions) (string, error)

	// Encrypt seals plaintext under keyID, authenticating aad.
	Encrypt(ctx context.Context, keyID string, plaintext, aad []byte) (*hsmDomain.Sealed, error)

	// Decrypt opens a sealed payload. A tag mismatch yields ErrAuthenticationFailed.
	Decrypt(ctx context.Context, keyID string, sealed *hsmDomain.Sealed, aad []byte) ([]byte, error)

	// Sign returns an HMAC-SHA256 over data keyed by a subkey derived from keyID.
	Sign(ctx context.Context, keyID string, data []byte) ([]byte, error)

	// BackupKeys exports every key in wrapped form.
	BackupKeys(ctx context.Context) (*hsmDomain.Backup, error)

	// RestoreKeys imports keys from a backup and returns how many were added.
	// Keys already present are left untouched.
	RestoreKeys(ctx context.Context, backup *hsmDomain.Backup) (int, error)

	// Stats returns a snapshot of the per-kind operation counters.
	Stats() hsmDomain.Stats
}

// KeyWrapper protects key material at rest inside the module. It is the seam where
// backend-specific code (local master key, cloud KMS) plugs in.
type KeyWrapper interface {
	// Provider names the backend, recorded in backups.
	Provider() string

	// Open establishes the backend session.
	Open(ctx context.Context) error

	// Wrap encrypts raw key material and returns the blob with the wrapping key ID.
	Wrap(ctx context.Context, material []byte) (wrapped []byte, wrappingKeyID string, err error)

	// Unwrap recovers raw key material. Callers must zero the result after use.
	Unwrap(ctx context.Context, wrapped []byte, wrappingKeyID string) ([]byte, error)

	// Close releases the backend session.
	Close() error
}
