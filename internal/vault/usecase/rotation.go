package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

type reencryptOutcome int

const (
	outcomeReencrypted reencryptOutcome = iota
	outcomeSkipped
	outcomeAlreadyCurrent
)

// startRotation begins a payment key rotation, or resumes the pending one left by
// an earlier partial run.
func (v *vaultUseCase) startRotation(ctx context.Context) (*keysDomain.Rotation, error) {
	// Rotation needs an active key to retire.
	if _, err := v.keys.GetActiveKey(ctx, keysDomain.PurposePayment); err != nil {
		return nil, fmt.Errorf("failed to resolve payment key: %w", err)
	}

	rotation, err := v.keys.BeginRotation(ctx, keysDomain.PurposePayment)
	if errors.Is(err, keysDomain.ErrRotationInProgress) {
		rotation, err = v.keys.PendingRotation(ctx, keysDomain.PurposePayment)
		if err == nil {
			v.logger.Info("resuming pending key rotation",
				slog.String("old_key_id", rotation.OldKeyID),
				slog.String("new_key_id", rotation.NewKeyID),
			)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start key rotation: %w", err)
	}
	return rotation, nil
}

// RotateKeys re-encrypts a snapshot of all records under a new payment key with
// bounded, throttled concurrency. Each record is processed under its token lock.
func (v *vaultUseCase) RotateKeys(
	ctx context.Context,
	ac accessDomain.Context,
) (result *vaultDomain.RotationResult, err error) {
	const op = accessDomain.OpRotateKeys
	if err := v.authorize(ctx, op, ac, ""); err != nil {
		return nil, err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, "", "", err)
	}()

	if !v.rotationMu.TryLock() {
		return nil, keysDomain.ErrRotationInProgress
	}
	defer v.rotationMu.Unlock()

	rotation, err := v.startRotation(ctx)
	if err != nil {
		return nil, err
	}

	records, err := v.records.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot card records: %w", err)
	}

	result = &vaultDomain.RotationResult{
		OldKeyID: rotation.OldKeyID,
		NewKeyID: rotation.NewKeyID,
		Total:    len(records),
	}

	limit := rate.Inf
	if v.config.RotationRatePerSec > 0 {
		limit = rate.Limit(v.config.RotationRatePerSec)
	}
	limiter := rate.NewLimiter(limit, 1)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(v.config.RotationConcurrency)

	for _, record := range records {
		token := record.Token
		g.Go(func() error {
			outcome, err := v.reencrypt(ctx, limiter, token, rotation.NewKeyID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.FailedCount++
				result.FailedTokens = append(result.FailedTokens, token)
				v.logger.Error("failed to re-encrypt card record",
					slog.String("token", token),
					slog.String("new_key_id", rotation.NewKeyID),
					slog.Any("error", err),
				)
			case outcome == outcomeSkipped:
				result.SkippedCount++
			case outcome == outcomeAlreadyCurrent:
				result.AlreadyCurrentCount++
			default:
				result.ReencryptedCount++
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(result.FailedTokens)

	if result.FailedCount > 0 {
		v.logger.Warn("key rotation left records under the old key",
			slog.String("old_key_id", rotation.OldKeyID),
			slog.Int("failed", result.FailedCount),
			slog.Int("reencrypted", result.ReencryptedCount),
		)
		return result, fmt.Errorf("%w: %d of %d records failed",
			vaultDomain.ErrKeyRotationPartialFailure, result.FailedCount, result.Total)
	}

	if err := v.keys.CompleteRotation(ctx, rotation); err != nil {
		return result, fmt.Errorf("failed to complete key rotation: %w", err)
	}
	result.Completed = true

	v.logger.Info("key rotation completed",
		slog.String("old_key_id", rotation.OldKeyID),
		slog.String("new_key_id", rotation.NewKeyID),
		slog.Int("reencrypted", result.ReencryptedCount),
		slog.Int("skipped", result.SkippedCount),
		slog.Int("already_current", result.AlreadyCurrentCount),
	)
	return result, nil
}

// reencrypt moves one record to newKeyID. Records deleted or expired since the
// snapshot are skipped. Records already under newKeyID are reported separately.
func (v *vaultUseCase) reencrypt(
	ctx context.Context,
	limiter *rate.Limiter,
	token, newKeyID string,
) (reencryptOutcome, error) {
	if err := limiter.Wait(ctx); err != nil {
		return 0, err
	}

	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	record, err := v.records.Get(ctx, token)
	if errors.Is(err, vaultDomain.ErrCardNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return 0, err
	}

	now := v.now()
	if record.IsExpired(now) {
		return outcomeSkipped, nil
	}
	if record.EncryptionKeyID == newKeyID {
		return outcomeAlreadyCurrent, nil
	}

	card, err := v.open(ctx, record)
	if err != nil {
		return 0, err
	}

	sealed, err := v.seal(ctx, newKeyID, token, *card)
	if err != nil {
		return 0, err
	}

	record.Payload = sealed.payload
	record.IntegrityTag = sealed.tag
	record.EncryptionKeyID = newKeyID
	record.UpdatedAt = now

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		return v.records.Put(ctx, record)
	})
	if err != nil {
		return 0, err
	}
	return outcomeReencrypted, nil
}

// GetVaultStats counts records by state and by encryption key.
func (v *vaultUseCase) GetVaultStats(
	ctx context.Context,
	ac accessDomain.Context,
) (stats *vaultDomain.VaultStats, err error) {
	const op = accessDomain.OpVaultStats
	if err := v.authorize(ctx, op, ac, ""); err != nil {
		return nil, err
	}
	defer func() {
		v.recordOutcome(ctx, op, ac, "", "", err)
	}()

	records, err := v.records.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan card records: %w", err)
	}

	now := v.now()
	stats = &vaultDomain.VaultStats{
		Total:   len(records),
		ByKeyID: make(map[string]int),
	}
	for _, record := range records {
		if record.IsExpired(now) {
			stats.Expired++
		} else {
			stats.Active++
		}
		if record.IsFlagged() {
			stats.Flagged++
		}
		stats.ByKeyID[record.EncryptionKeyID]++
	}
	return stats, nil
}

// PurgeExpired deletes records whose expiry lies more than olderThan in the past.
// Records are removed with their stored fingerprint so no decryption is needed;
// their keys may already be archived.
func (v *vaultUseCase) PurgeExpired(
	ctx context.Context,
	olderThan time.Duration,
	dryRun bool,
	ac accessDomain.Context,
) (purged int, err error) {
	const op = accessDomain.OpPurgeExpired
	if err := v.authorize(ctx, op, ac, ""); err != nil {
		return 0, err
	}
	defer func() {
		reason := fmt.Sprintf("purged=%d", purged)
		if dryRun {
			reason = fmt.Sprintf("dry_run matched=%d", purged)
		}
		v.recordOutcome(ctx, op, ac, "", reason, err)
	}()

	if olderThan < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "older than must not be negative")
	}

	cutoff := v.now().Add(-olderThan)
	records, err := v.records.ScanAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan card records: %w", err)
	}

	for _, record := range records {
		if record.ExpiresAt.After(cutoff) {
			continue
		}
		if dryRun {
			purged++
			continue
		}

		deleted, err := v.purgeRecord(ctx, record.Token, cutoff)
		if err != nil {
			return purged, fmt.Errorf("failed to purge card record: %w", err)
		}
		if deleted {
			purged++
		}
	}

	if !dryRun && purged > 0 {
		v.logger.Info("expired card records purged", slog.Int("count", purged))
	}
	return purged, nil
}

func (v *vaultUseCase) purgeRecord(ctx context.Context, token string, cutoff time.Time) (bool, error) {
	unlock := v.tokenLocks.Lock(token)
	defer unlock()

	record, err := v.records.Get(ctx, token)
	if errors.Is(err, vaultDomain.ErrCardNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// The token may have been extended since the scan.
	if record.ExpiresAt.After(cutoff) {
		return false, nil
	}

	if record.Fingerprint != "" {
		unlockFingerprint := v.fingerprintLocks.Lock(record.Fingerprint)
		defer unlockFingerprint()
	}

	err = v.txManager.WithTx(ctx, func(ctx context.Context) error {
		if record.Fingerprint != "" {
			if err := v.fingerprints.Delete(ctx, record.Fingerprint, token); err != nil {
				return err
			}
		}
		return v.records.Delete(ctx, token)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
