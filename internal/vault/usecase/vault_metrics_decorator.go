package usecase

import (
	"context"
	"time"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/metrics"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// vaultUseCaseWithMetrics decorates VaultUseCase with metrics instrumentation.
type vaultUseCaseWithMetrics struct {
	next    VaultUseCase
	metrics metrics.BusinessMetrics
}

// NewVaultUseCaseWithMetrics wraps a VaultUseCase with metrics recording.
func NewVaultUseCaseWithMetrics(useCase VaultUseCase, m metrics.BusinessMetrics) VaultUseCase {
	return &vaultUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (v *vaultUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.Status(err)

	v.metrics.RecordOperation(ctx, "vault", operation, status)
	v.metrics.RecordDuration(ctx, "vault", operation, time.Since(start), status)
}

// StoreCard records metrics for card tokenization.
func (v *vaultUseCaseWithMetrics) StoreCard(
	ctx context.Context,
	card vaultDomain.CardData,
	opts vaultDomain.StoreOptions,
	ac accessDomain.Context,
) (*vaultDomain.StoreResult, error) {
	start := time.Now()
	result, err := v.next.StoreCard(ctx, card, opts, ac)
	v.record(ctx, "store_card", start, err)
	return result, err
}

// RetrieveCard records metrics for card retrieval.
func (v *vaultUseCaseWithMetrics) RetrieveCard(
	ctx context.Context,
	token string,
	opts vaultDomain.RetrieveOptions,
	ac accessDomain.Context,
) (*vaultDomain.CardView, error) {
	start := time.Now()
	view, err := v.next.RetrieveCard(ctx, token, opts, ac)
	v.record(ctx, "retrieve_card", start, err)
	return view, err
}

// DeleteCard records metrics for card deletion.
func (v *vaultUseCaseWithMetrics) DeleteCard(
	ctx context.Context,
	token string,
	opts vaultDomain.DeleteOptions,
	ac accessDomain.Context,
) error {
	start := time.Now()
	err := v.next.DeleteCard(ctx, token, opts, ac)
	v.record(ctx, "delete_card", start, err)
	return err
}

// FindExistingCard records metrics for fingerprint lookups.
func (v *vaultUseCaseWithMetrics) FindExistingCard(
	ctx context.Context,
	pan string,
	ac accessDomain.Context,
) (*vaultDomain.FindResult, error) {
	start := time.Now()
	result, err := v.next.FindExistingCard(ctx, pan, ac)
	v.record(ctx, "find_card", start, err)
	return result, err
}

// UpdateCardExpiry records metrics for expiry updates.
func (v *vaultUseCaseWithMetrics) UpdateCardExpiry(
	ctx context.Context,
	token string,
	month, year int,
	ac accessDomain.Context,
) error {
	start := time.Now()
	err := v.next.UpdateCardExpiry(ctx, token, month, year, ac)
	v.record(ctx, "update_card_expiry", start, err)
	return err
}

// ExtendTokenExpiry records metrics for token expiry extensions.
func (v *vaultUseCaseWithMetrics) ExtendTokenExpiry(
	ctx context.Context,
	token string,
	extension time.Duration,
	ac accessDomain.Context,
) (time.Time, error) {
	start := time.Now()
	expiresAt, err := v.next.ExtendTokenExpiry(ctx, token, extension, ac)
	v.record(ctx, "extend_token_expiry", start, err)
	return expiresAt, err
}

// RotateKeys records metrics for bulk re-encryption runs, including per-record outcomes.
func (v *vaultUseCaseWithMetrics) RotateKeys(
	ctx context.Context,
	ac accessDomain.Context,
) (*vaultDomain.RotationResult, error) {
	start := time.Now()
	result, err := v.next.RotateKeys(ctx, ac)
	v.record(ctx, "rotate_keys", start, err)
	if result != nil {
		v.metrics.RecordItems(ctx, "vault", "rotate_keys", "reencrypted", result.ReencryptedCount)
		v.metrics.RecordItems(ctx, "vault", "rotate_keys", "failed", result.FailedCount)
		v.metrics.RecordItems(ctx, "vault", "rotate_keys", "skipped", result.SkippedCount)
		v.metrics.RecordItems(ctx, "vault", "rotate_keys", "already_current", result.AlreadyCurrentCount)
	}
	return result, err
}

// GetVaultStats records metrics for stats queries.
func (v *vaultUseCaseWithMetrics) GetVaultStats(
	ctx context.Context,
	ac accessDomain.Context,
) (*vaultDomain.VaultStats, error) {
	start := time.Now()
	stats, err := v.next.GetVaultStats(ctx, ac)
	v.record(ctx, "vault_stats", start, err)
	return stats, err
}

// PurgeExpired records metrics for purge runs.
func (v *vaultUseCaseWithMetrics) PurgeExpired(
	ctx context.Context,
	olderThan time.Duration,
	dryRun bool,
	ac accessDomain.Context,
) (int, error) {
	start := time.Now()
	purged, err := v.next.PurgeExpired(ctx, olderThan, dryRun, ac)
	v.record(ctx, "purge_expired", start, err)
	if err == nil && !dryRun {
		v.metrics.RecordItems(ctx, "vault", "purge_expired", "purged", purged)
	}
	return purged, err
}
