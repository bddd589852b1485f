// Package service signs and verifies audit entries through the HSM.
package service

import (
	"context"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// ActiveKeyProvider resolves the active key for a purpose.
type ActiveKeyProvider interface {
	GetActiveKey(ctx context.Context, purpose keysDomain.Purpose) (string, error)
}

// AuditSigner makes audit entries tamper-evident.
type AuditSigner interface {
	// Sign sets Signature and SigningKeyID on entry using the active auth key.
	Sign(ctx context.Context, entry *accessDomain.AuditEntry) error

	// Verify recomputes the signature with entry.SigningKeyID and returns
	// accessDomain.ErrSignatureInvalid on mismatch.
	Verify(ctx context.Context, entry *accessDomain.AuditEntry) error
}
