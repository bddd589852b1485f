// Package usecase implements the key lifecycle manager: lazy key provisioning per
// purpose, rotation scheduling and the rotating/deactivated/compromised/archived
// transitions.
package usecase

import (
	"context"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// KeyRepository persists key lifecycle metadata.
type KeyRepository interface {
	// Create inserts a new key record.
	Create(ctx context.Context, key *keysDomain.KeyRecord) error

	// Update persists status, reason and rotation timestamps of an existing record.
	Update(ctx context.Context, key *keysDomain.KeyRecord) error

	// UpdateIfStatus is Update guarded by the stored status, returning
	// keysDomain.ErrKeyStatusChanged when it is no longer expected.
	UpdateIfStatus(ctx context.Context, key *keysDomain.KeyRecord, expected keysDomain.Status) error

	// Get returns the record for id or keysDomain.ErrKeyNotFound.
	Get(ctx context.Context, id string) (*keysDomain.KeyRecord, error)

	// List returns records matching filter ordered by purpose then version.
	List(ctx context.Context, filter keysDomain.KeyFilter) ([]*keysDomain.KeyRecord, error)
}

// RotationNotifier receives notices for keys whose rotation is due.
type RotationNotifier interface {
	NotifyRotationDue(ctx context.Context, notice keysDomain.RotationNotice) error
}

// KeyLifecycleUseCase manages key metadata per purpose.
type KeyLifecycleUseCase interface {
	// GetActiveKey returns the active key ID for purpose, generating the first key
	// through the HSM when the purpose has none.
	GetActiveKey(ctx context.Context, purpose keysDomain.Purpose) (string, error)

	// GetDecryptionKey returns the record for keyID if its status still allows reads.
	GetDecryptionKey(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error)

	// CheckRotationDue scans active keys and notifies for every key past its period.
	CheckRotationDue(ctx context.Context) ([]keysDomain.RotationNotice, error)

	// BeginRotation generates a new active key and moves the current one to rotating.
	BeginRotation(ctx context.Context, purpose keysDomain.Purpose) (*keysDomain.Rotation, error)

	// PendingRotation returns the in-flight rotation for purpose.
	PendingRotation(ctx context.Context, purpose keysDomain.Purpose) (*keysDomain.Rotation, error)

	// CompleteRotation moves the old key of rotation to deactivated.
	CompleteRotation(ctx context.Context, rotation *keysDomain.Rotation) error

	// MarkCompromised flags a key as compromised with a reason.
	MarkCompromised(ctx context.Context, keyID, reason string) error

	// Archive moves a deactivated or compromised key to its terminal status.
	Archive(ctx context.Context, keyID string) error

	// Get returns a key record by ID.
	Get(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error)

	// List returns key records matching filter.
	List(ctx context.Context, filter keysDomain.KeyFilter) ([]*keysDomain.KeyRecord, error)
}
