// Package usecase implements authorization and the audit trail for vault operations.
package usecase

import (
	"context"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
)

// AuditRepository is the append-only audit sink.
type AuditRepository interface {
	// Create appends one entry.
	Create(ctx context.Context, entry *accessDomain.AuditEntry) error

	// List returns entries matching filter, oldest first.
	List(ctx context.Context, filter accessDomain.AuditFilter) ([]*accessDomain.AuditEntry, error)
}

// AccessUseCase authorizes vault operations and records every attempt.
type AccessUseCase interface {
	// Authorize returns accessDomain.ErrAccessDenied, wrapped with a loggable reason,
	// when ac does not satisfy op.
	Authorize(ctx context.Context, ac accessDomain.Context, op accessDomain.Operation) error

	// RecordAccess appends exactly one audit entry. It never fails the caller; sink
	// failures are logged.
	RecordAccess(
		ctx context.Context,
		op accessDomain.Operation,
		ac accessDomain.Context,
		token string,
		outcome accessDomain.Outcome,
		reason string,
	)

	// List returns audit entries matching filter.
	List(ctx context.Context, filter accessDomain.AuditFilter) ([]*accessDomain.AuditEntry, error)

	// Verify checks the signature of every entry matching filter.
	Verify(ctx context.Context, filter accessDomain.AuditFilter) (*accessDomain.VerifyReport, error)
}
