// Package usecase implements the card tokenization vault: tokenization with
// fingerprint deduplication, retrieval with integrity checks and minimization,
// token expiry management, bulk re-encryption on key rotation and purging.
package usecase

import (
	"context"
	"time"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// RecordRepository is the key-value store for vault records.
type RecordRepository interface {
	// Get returns the record for token or vaultDomain.ErrCardNotFound.
	Get(ctx context.Context, token string) (*vaultDomain.VaultRecord, error)

	// Create inserts a new record or returns vaultDomain.ErrDuplicateToken.
	Create(ctx context.Context, record *vaultDomain.VaultRecord) error

	// Put inserts or replaces the record for record.Token.
	Put(ctx context.Context, record *vaultDomain.VaultRecord) error

	// Delete removes the record for token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	// ScanAll returns a snapshot of every record.
	ScanAll(ctx context.Context) ([]*vaultDomain.VaultRecord, error)
}

// FingerprintRepository is the key-value store for the fingerprint index.
type FingerprintRepository interface {
	// Get returns the entry for fingerprint or vaultDomain.ErrCardNotFound.
	Get(ctx context.Context, fingerprint string) (*vaultDomain.FingerprintEntry, error)

	// Put inserts or replaces the entry for entry.Fingerprint.
	Put(ctx context.Context, entry *vaultDomain.FingerprintEntry) error

	// Claim stores entry only when the fingerprint is free or its entry still
	// points to replaceToken, and reports whether it did.
	Claim(ctx context.Context, entry *vaultDomain.FingerprintEntry, replaceToken string) (bool, error)

	// Delete removes the entry for fingerprint only while it still points to token.
	Delete(ctx context.Context, fingerprint, token string) error
}

// KeyManager is the subset of the key lifecycle manager used by the vault.
type KeyManager interface {
	GetActiveKey(ctx context.Context, purpose keysDomain.Purpose) (string, error)
	GetDecryptionKey(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error)
	Get(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error)
	BeginRotation(ctx context.Context, purpose keysDomain.Purpose) (*keysDomain.Rotation, error)
	PendingRotation(ctx context.Context, purpose keysDomain.Purpose) (*keysDomain.Rotation, error)
	CompleteRotation(ctx context.Context, rotation *keysDomain.Rotation) error
}

// AccessController authorizes operations and records audit entries.
type AccessController interface {
	Authorize(ctx context.Context, ac accessDomain.Context, op accessDomain.Operation) error
	RecordAccess(
		ctx context.Context,
		op accessDomain.Operation,
		ac accessDomain.Context,
		token string,
		outcome accessDomain.Outcome,
		reason string,
	)
}

// VaultUseCase is the vault's in-process API. Every call is authorized against ac
// and produces exactly one audit entry.
type VaultUseCase interface {
	// StoreCard validates and tokenizes card, returning the existing token for an
	// already stored card unless opts.ForceNew is set.
	StoreCard(
		ctx context.Context,
		card vaultDomain.CardData,
		opts vaultDomain.StoreOptions,
		ac accessDomain.Context,
	) (*vaultDomain.StoreResult, error)

	// RetrieveCard decrypts and verifies the record for token. Full card data is
	// returned only when opts.Reveal is set and ac declares a purpose.
	RetrieveCard(
		ctx context.Context,
		token string,
		opts vaultDomain.RetrieveOptions,
		ac accessDomain.Context,
	) (*vaultDomain.CardView, error)

	// DeleteCard removes the record for token and its fingerprint index entry.
	DeleteCard(ctx context.Context, token string, opts vaultDomain.DeleteOptions, ac accessDomain.Context) error

	// FindExistingCard reports whether an active token exists for pan without decrypting.
	FindExistingCard(ctx context.Context, pan string, ac accessDomain.Context) (*vaultDomain.FindResult, error)

	// UpdateCardExpiry re-encrypts the record for token with a new card expiry.
	UpdateCardExpiry(ctx context.Context, token string, month, year int, ac accessDomain.Context) error

	// ExtendTokenExpiry pushes the token expiry forward by extension and returns it.
	ExtendTokenExpiry(
		ctx context.Context,
		token string,
		extension time.Duration,
		ac accessDomain.Context,
	) (time.Time, error)

	// RotateKeys rotates the payment key and re-encrypts every active record under
	// the new key. On per-record failures it returns the result together with
	// vaultDomain.ErrKeyRotationPartialFailure and leaves the rotation pending.
	RotateKeys(ctx context.Context, ac accessDomain.Context) (*vaultDomain.RotationResult, error)

	// GetVaultStats counts records by state and encryption key.
	GetVaultStats(ctx context.Context, ac accessDomain.Context) (*vaultDomain.VaultStats, error)

	// PurgeExpired deletes records that expired more than olderThan ago and returns
	// how many were (or, with dryRun, would be) deleted.
	PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool, ac accessDomain.Context) (int, error)
}
