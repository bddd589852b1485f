package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	accessService "github.com/allisson/cardvault/internal/access/service"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

type accessUseCase struct {
	auditRepo AuditRepository
	signer    accessService.AuditSigner
	logger    *slog.Logger
}

// NewAccessUseCase creates the access use case. signer may be nil to store unsigned entries.
func NewAccessUseCase(
	auditRepo AuditRepository,
	signer accessService.AuditSigner,
	logger *slog.Logger,
) AccessUseCase {
	return &accessUseCase{
		auditRepo: auditRepo,
		signer:    signer,
		logger:    logger,
	}
}

// Authorize checks ac against the level table for op.
func (a *accessUseCase) Authorize(_ context.Context, ac accessDomain.Context, op accessDomain.Operation) error {
	if allowed, reason := accessDomain.Check(ac, op); !allowed {
		return fmt.Errorf("%w: %s", accessDomain.ErrAccessDenied, reason)
	}
	return nil
}

// RecordAccess signs and appends an entry. The write is detached from ctx cancellation
// so an audited decision is not lost when the caller goes away.
func (a *accessUseCase) RecordAccess(
	ctx context.Context,
	op accessDomain.Operation,
	ac accessDomain.Context,
	token string,
	outcome accessDomain.Outcome,
	reason string,
) {
	ctx = context.WithoutCancel(ctx)

	id, err := uuid.NewV7()
	if err != nil {
		a.logger.Error("failed to generate audit entry id", slog.Any("error", err))
		return
	}

	entry := &accessDomain.AuditEntry{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Operation: op,
		SubjectID: ac.SubjectID,
		Level:     ac.Level,
		Purpose:   ac.Purpose,
		Token:     token,
		Outcome:   outcome,
		Reason:    reason,
	}

	if a.signer != nil {
		if err := a.signer.Sign(ctx, entry); err != nil {
			a.logger.Warn("audit entry stored unsigned",
				slog.String("audit_id", entry.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	if err := a.auditRepo.Create(ctx, entry); err != nil {
		a.logger.Error("failed to record audit entry",
			slog.String("audit_id", entry.ID.String()),
			slog.String("operation", string(op)),
			slog.String("subject_id", ac.SubjectID),
			slog.String("outcome", string(outcome)),
			slog.Any("error", err),
		)
	}
}

// List returns audit entries matching filter.
func (a *accessUseCase) List(
	ctx context.Context,
	filter accessDomain.AuditFilter,
) ([]*accessDomain.AuditEntry, error) {
	entries, err := a.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	return entries, nil
}

// Verify recomputes signatures for every matching entry. Entries whose signature
// cannot be recomputed, for instance because the key was archived out of the HSM,
// count as invalid.
func (a *accessUseCase) Verify(
	ctx context.Context,
	filter accessDomain.AuditFilter,
) (*accessDomain.VerifyReport, error) {
	if a.signer == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "audit signing is not configured")
	}

	entries, err := a.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &accessDomain.VerifyReport{Total: len(entries)}
	for _, entry := range entries {
		if !entry.IsSigned() {
			report.Unsigned++
			continue
		}
		if err := a.signer.Verify(ctx, entry); err != nil {
			report.Invalid++
			report.InvalidIDs = append(report.InvalidIDs, entry.ID)
			if !apperrors.Is(err, accessDomain.ErrSignatureInvalid) {
				a.logger.Warn("audit signature could not be recomputed",
					slog.String("audit_id", entry.ID.String()),
					slog.Any("error", err),
				)
			}
			continue
		}
		report.Valid++
	}
	return report, nil
}
