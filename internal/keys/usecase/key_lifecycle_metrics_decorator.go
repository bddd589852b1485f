package usecase

import (
	"context"
	"time"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	"github.com/allisson/cardvault/internal/metrics"
)

// keyLifecycleUseCaseWithMetrics decorates KeyLifecycleUseCase with metrics instrumentation.
type keyLifecycleUseCaseWithMetrics struct {
	next    KeyLifecycleUseCase
	metrics metrics.BusinessMetrics
}

// NewKeyLifecycleUseCaseWithMetrics wraps a KeyLifecycleUseCase with metrics recording.
func NewKeyLifecycleUseCaseWithMetrics(
	useCase KeyLifecycleUseCase,
	m metrics.BusinessMetrics,
) KeyLifecycleUseCase {
	return &keyLifecycleUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (k *keyLifecycleUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.Status(err)

	k.metrics.RecordOperation(ctx, "keys", operation, status)
	k.metrics.RecordDuration(ctx, "keys", operation, time.Since(start), status)
}

// GetActiveKey is called on every vault write, so only its errors are recorded.
func (k *keyLifecycleUseCaseWithMetrics) GetActiveKey(
	ctx context.Context,
	purpose keysDomain.Purpose,
) (string, error) {
	keyID, err := k.next.GetActiveKey(ctx, purpose)
	if err != nil {
		k.metrics.RecordOperation(ctx, "keys", "get_active_key", metrics.Status(err))
	}
	return keyID, err
}

// GetDecryptionKey delegates without recording.
func (k *keyLifecycleUseCaseWithMetrics) GetDecryptionKey(
	ctx context.Context,
	keyID string,
) (*keysDomain.KeyRecord, error) {
	return k.next.GetDecryptionKey(ctx, keyID)
}

// CheckRotationDue records metrics for rotation scans.
func (k *keyLifecycleUseCaseWithMetrics) CheckRotationDue(
	ctx context.Context,
) ([]keysDomain.RotationNotice, error) {
	start := time.Now()
	notices, err := k.next.CheckRotationDue(ctx)
	k.record(ctx, "check_rotation_due", start, err)
	return notices, err
}

// BeginRotation records metrics for rotation starts.
func (k *keyLifecycleUseCaseWithMetrics) BeginRotation(
	ctx context.Context,
	purpose keysDomain.Purpose,
) (*keysDomain.Rotation, error) {
	start := time.Now()
	rotation, err := k.next.BeginRotation(ctx, purpose)
	k.record(ctx, "begin_rotation", start, err)
	return rotation, err
}

// PendingRotation delegates without recording.
func (k *keyLifecycleUseCaseWithMetrics) PendingRotation(
	ctx context.Context,
	purpose keysDomain.Purpose,
) (*keysDomain.Rotation, error) {
	return k.next.PendingRotation(ctx, purpose)
}

// CompleteRotation records metrics for rotation completion.
func (k *keyLifecycleUseCaseWithMetrics) CompleteRotation(
	ctx context.Context,
	rotation *keysDomain.Rotation,
) error {
	start := time.Now()
	err := k.next.CompleteRotation(ctx, rotation)
	k.record(ctx, "complete_rotation", start, err)
	return err
}

// MarkCompromised records metrics for compromise reports.
func (k *keyLifecycleUseCaseWithMetrics) MarkCompromised(ctx context.Context, keyID, reason string) error {
	start := time.Now()
	err := k.next.MarkCompromised(ctx, keyID, reason)
	k.record(ctx, "mark_compromised", start, err)
	return err
}

// Archive records metrics for archival.
func (k *keyLifecycleUseCaseWithMetrics) Archive(ctx context.Context, keyID string) error {
	start := time.Now()
	err := k.next.Archive(ctx, keyID)
	k.record(ctx, "archive", start, err)
	return err
}

// Get delegates without recording.
func (k *keyLifecycleUseCaseWithMetrics) Get(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error) {
	return k.next.Get(ctx, keyID)
}

// List delegates without recording.
func (k *keyLifecycleUseCaseWithMetrics) List(
	ctx context.Context,
	filter keysDomain.KeyFilter,
) ([]*keysDomain.KeyRecord, error) {
	return k.next.List(ctx, filter)
}
