package service

import (
	"context"

	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// KeyStore persists wrapped key entries so keys outlive the process.
type KeyStore interface {
	// Create stores a new entry. An existing ID yields errors.ErrConflict.
	Create(ctx context.Context, entry *hsmDomain.KeyEntry) error

	// Get returns the entry for id or hsmDomain.ErrKeyNotFound.
	Get(ctx context.Context, id string) (*hsmDomain.KeyEntry, error)

	// List returns every entry ordered by creation time.
	List(ctx context.Context) ([]*hsmDomain.KeyEntry, error)
}
