package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	"github.com/allisson/cardvault/internal/database"
	"github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// Config holds key lifecycle configuration.
type Config struct {
	// RotationPeriods overrides keysDomain.DefaultRotationPeriods per purpose.
	RotationPeriods map[keysDomain.Purpose]time.Duration
	// Algorithm is used for every generated key.
	Algorithm cryptoDomain.Algorithm
}

type keyLifecycleUseCase struct {
	config    Config
	txManager database.TxManager
	keyRepo   KeyRepository
	hsm       hsmService.Module
	notifier  RotationNotifier
	logger    *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewKeyLifecycleUseCase creates the key lifecycle manager. notifier may be nil, in
// which case CheckRotationDue only returns notices.
func NewKeyLifecycleUseCase(
	config Config,
	txManager database.TxManager,
	keyRepo KeyRepository,
	hsm hsmService.Module,
	notifier RotationNotifier,
	logger *slog.Logger,
) KeyLifecycleUseCase {
	return &keyLifecycleUseCase{
		config:    config,
		txManager: txManager,
		keyRepo:   keyRepo,
		hsm:       hsm,
		notifier:  notifier,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// purposeLock serializes status changes within a purpose.
func (k *keyLifecycleUseCase) purposeLock(purpose keysDomain.Purpose) *sync.Mutex {
	return k.lock("status:" + string(purpose))
}

// rotationLock is held for the whole of BeginRotation.
func (k *keyLifecycleUseCase) rotationLock(purpose keysDomain.Purpose) *sync.Mutex {
	return k.lock("rotation:" + string(purpose))
}

func (k *keyLifecycleUseCase) lock(name string) *sync.Mutex {
	k.locksMu.Lock()
	defer k.locksMu.Unlock()
	mu, ok := k.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		k.locks[name] = mu
	}
	return mu
}

func (k *keyLifecycleUseCase) rotationPeriod(purpose keysDomain.Purpose) time.Duration {
	if d, ok := k.config.RotationPeriods[purpose]; ok && d > 0 {
		return d
	}
	return keysDomain.DefaultRotationPeriods[purpose]
}

func (k *keyLifecycleUseCase) findByStatus(
	ctx context.Context,
	purpose keysDomain.Purpose,
	status keysDomain.Status,
) (*keysDomain.KeyRecord, error) {
	keys, err := k.keyRepo.List(ctx, keysDomain.KeyFilter{Purpose: purpose, Status: status})
	if err != nil {
		return nil, err
	}
	switch len(keys) {
	case 0:
		return nil, keysDomain.ErrKeyNotFound
	case 1:
		return keys[0], nil
	default:
		k.logger.Error("multiple keys share a single-key status",
			slog.String("purpose", string(purpose)),
			slog.String("status", string(status)),
			slog.Int("count", len(keys)),
			slog.Bool("alert", true),
		)
		return nil, errors.Wrap(errors.ErrInvariant, fmt.Sprintf("%d %s keys for purpose %s", len(keys), status, purpose))
	}
}

func (k *keyLifecycleUseCase) nextVersion(ctx context.Context, purpose keysDomain.Purpose) (int, error) {
	keys, err := k.keyRepo.List(ctx, keysDomain.KeyFilter{Purpose: purpose})
	if err != nil {
		return 0, err
	}
	version := 0
	for _, key := range keys {
		version = max(version, key.Version)
	}
	return version + 1, nil
}

// newKey generates HSM material and returns an unsaved active record for it.
func (k *keyLifecycleUseCase) newKey(
	ctx context.Context,
	purpose keysDomain.Purpose,
	version int,
) (*keysDomain.KeyRecord, error) {
	keyID, err := k.hsm.GenerateKey(ctx, string(purpose), hsmDomain.GenerateKeyOptions{Algorithm: k.config.Algorithm})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &keysDomain.KeyRecord{
		ID:             keyID,
		Purpose:        purpose,
		Status:         keysDomain.StatusActive,
		Algorithm:      k.config.Algorithm,
		Version:        version,
		RotationPeriod: k.rotationPeriod(purpose),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// GetActiveKey returns the active key for purpose, provisioning one on first use or
// after the previous active key was marked compromised.
func (k *keyLifecycleUseCase) GetActiveKey(ctx context.Context, purpose keysDomain.Purpose) (string, error) {
	if _, err := keysDomain.ParsePurpose(string(purpose)); err != nil {
		return "", err
	}

	active, err := k.findByStatus(ctx, purpose, keysDomain.StatusActive)
	if err == nil {
		return active.ID, nil
	}
	if !errors.Is(err, keysDomain.ErrKeyNotFound) {
		return "", err
	}

	mu := k.purposeLock(purpose)
	mu.Lock()
	defer mu.Unlock()

	// Another caller may have provisioned while we waited.
	active, err = k.findByStatus(ctx, purpose, keysDomain.StatusActive)
	if err == nil {
		return active.ID, nil
	}
	if !errors.Is(err, keysDomain.ErrKeyNotFound) {
		return "", err
	}

	version, err := k.nextVersion(ctx, purpose)
	if err != nil {
		return "", err
	}

	key, err := k.newKey(ctx, purpose, version)
	if err != nil {
		return "", err
	}
	if err := k.keyRepo.Create(ctx, key); err != nil {
		return "", err
	}

	k.logger.Info("key provisioned",
		slog.String("key_id", key.ID),
		slog.String("purpose", string(purpose)),
		slog.Int("version", key.Version),
	)
	return key.ID, nil
}

// GetDecryptionKey rejects archived keys.
func (k *keyLifecycleUseCase) GetDecryptionKey(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error) {
	key, err := k.keyRepo.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !key.Status.Decryptable() {
		return nil, keysDomain.ErrKeyNotUsable
	}
	return key, nil
}

// CheckRotationDue returns a notice per overdue active key and forwards each to the
// notifier. The hmac key is never rotated automatically and gets no notice.
// Notification failures are logged and do not stop the scan.
func (k *keyLifecycleUseCase) CheckRotationDue(ctx context.Context) ([]keysDomain.RotationNotice, error) {
	active, err := k.keyRepo.List(ctx, keysDomain.KeyFilter{Status: keysDomain.StatusActive})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var notices []keysDomain.RotationNotice
	for _, key := range active {
		if key.Purpose == keysDomain.PurposeHMAC || !key.RotationDue(now) {
			continue
		}

		notice := keysDomain.RotationNotice{
			KeyID:          key.ID,
			Purpose:        key.Purpose,
			Version:        key.Version,
			Age:            now.Sub(key.CreatedAt),
			RotationPeriod: key.RotationPeriod,
			DetectedAt:     now,
		}
		notices = append(notices, notice)

		k.logger.Info("key rotation due",
			slog.String("key_id", key.ID),
			slog.String("purpose", string(key.Purpose)),
			slog.Duration("age", notice.Age),
		)

		if k.notifier == nil {
			continue
		}
		if err := k.notifier.NotifyRotationDue(ctx, notice); err != nil {
			k.logger.Error("failed to notify key rotation",
				slog.String("key_id", key.ID),
				slog.Any("error", err),
			)
		}
	}

	return notices, nil
}

// BeginRotation generates the replacement key first, then swaps statuses in one
// transaction so the purpose always has exactly one active key. The swap only
// applies while the old key is still active, so a rotation started by another
// process makes this call fail with ErrRotationInProgress.
func (k *keyLifecycleUseCase) BeginRotation(
	ctx context.Context,
	purpose keysDomain.Purpose,
) (*keysDomain.Rotation, error) {
	if _, err := keysDomain.ParsePurpose(string(purpose)); err != nil {
		return nil, err
	}

	rot := k.rotationLock(purpose)
	if !rot.TryLock() {
		return nil, keysDomain.ErrRotationInProgress
	}
	defer rot.Unlock()

	mu := k.purposeLock(purpose)
	mu.Lock()
	defer mu.Unlock()

	if _, err := k.findByStatus(ctx, purpose, keysDomain.StatusRotating); err == nil {
		return nil, keysDomain.ErrRotationInProgress
	} else if !errors.Is(err, keysDomain.ErrKeyNotFound) {
		return nil, err
	}

	old, err := k.findByStatus(ctx, purpose, keysDomain.StatusActive)
	if err != nil {
		return nil, err
	}

	version, err := k.nextVersion(ctx, purpose)
	if err != nil {
		return nil, err
	}

	next, err := k.newKey(ctx, purpose, version)
	if err != nil {
		return nil, err
	}

	if err := old.Transition(keysDomain.StatusRotating, next.CreatedAt); err != nil {
		return nil, err
	}

	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := k.keyRepo.UpdateIfStatus(ctx, old, keysDomain.StatusActive); err != nil {
			return err
		}
		return k.keyRepo.Create(ctx, next)
	})
	if errors.Is(err, keysDomain.ErrKeyStatusChanged) {
		k.logger.Warn("key rotation started concurrently",
			slog.String("purpose", string(purpose)),
			slog.String("old_key_id", old.ID),
			slog.String("discarded_key_id", next.ID),
		)
		return nil, keysDomain.ErrRotationInProgress
	}
	if err != nil {
		return nil, err
	}

	k.logger.Info("key rotation started",
		slog.String("purpose", string(purpose)),
		slog.String("old_key_id", old.ID),
		slog.String("new_key_id", next.ID),
		slog.Int("version", next.Version),
	)

	return &keysDomain.Rotation{
		Purpose:   purpose,
		OldKeyID:  old.ID,
		NewKeyID:  next.ID,
		StartedAt: next.CreatedAt,
	}, nil
}

// PendingRotation rebuilds the rotation handle from persisted statuses so an
// interrupted rotation can be resumed.
func (k *keyLifecycleUseCase) PendingRotation(
	ctx context.Context,
	purpose keysDomain.Purpose,
) (*keysDomain.Rotation, error) {
	old, err := k.findByStatus(ctx, purpose, keysDomain.StatusRotating)
	if err != nil {
		if errors.Is(err, keysDomain.ErrKeyNotFound) {
			return nil, keysDomain.ErrNoRotationInProgress
		}
		return nil, err
	}

	next, err := k.findByStatus(ctx, purpose, keysDomain.StatusActive)
	if err != nil {
		return nil, err
	}

	return &keysDomain.Rotation{
		Purpose:   purpose,
		OldKeyID:  old.ID,
		NewKeyID:  next.ID,
		StartedAt: next.CreatedAt,
	}, nil
}

// CompleteRotation deactivates the old key and stamps LastRotatedAt.
func (k *keyLifecycleUseCase) CompleteRotation(ctx context.Context, rotation *keysDomain.Rotation) error {
	mu := k.purposeLock(rotation.Purpose)
	mu.Lock()
	defer mu.Unlock()

	old, err := k.keyRepo.Get(ctx, rotation.OldKeyID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := old.Transition(keysDomain.StatusDeactivated, now); err != nil {
		return err
	}
	old.LastRotatedAt = &now

	if err := k.keyRepo.UpdateIfStatus(ctx, old, keysDomain.StatusRotating); err != nil {
		return err
	}

	k.logger.Info("key rotation completed",
		slog.String("purpose", string(rotation.Purpose)),
		slog.String("old_key_id", rotation.OldKeyID),
		slog.String("new_key_id", rotation.NewKeyID),
	)
	return nil
}

// MarkCompromised flags keyID. If it was the active key the next GetActiveKey call
// provisions a replacement.
func (k *keyLifecycleUseCase) MarkCompromised(ctx context.Context, keyID, reason string) error {
	key, err := k.keyRepo.Get(ctx, keyID)
	if err != nil {
		return err
	}

	mu := k.purposeLock(key.Purpose)
	mu.Lock()
	defer mu.Unlock()

	if err := key.Transition(keysDomain.StatusCompromised, time.Now().UTC()); err != nil {
		return err
	}
	key.StatusReason = &reason

	if err := k.keyRepo.Update(ctx, key); err != nil {
		return err
	}

	k.logger.Warn("key marked compromised",
		slog.String("key_id", key.ID),
		slog.String("purpose", string(key.Purpose)),
		slog.String("reason", reason),
		slog.Bool("alert", true),
	)
	return nil
}

// Archive moves keyID to archived.
func (k *keyLifecycleUseCase) Archive(ctx context.Context, keyID string) error {
	key, err := k.keyRepo.Get(ctx, keyID)
	if err != nil {
		return err
	}

	if err := key.Transition(keysDomain.StatusArchived, time.Now().UTC()); err != nil {
		return err
	}

	if err := k.keyRepo.Update(ctx, key); err != nil {
		return err
	}

	k.logger.Info("key archived", slog.String("key_id", key.ID), slog.String("purpose", string(key.Purpose)))
	return nil
}

// Get returns a key record by ID.
func (k *keyLifecycleUseCase) Get(ctx context.Context, keyID string) (*keysDomain.KeyRecord, error) {
	return k.keyRepo.Get(ctx, keyID)
}

// List returns key records matching filter.
func (k *keyLifecycleUseCase) List(
	ctx context.Context,
	filter keysDomain.KeyFilter,
) ([]*keysDomain.KeyRecord, error) {
	return k.keyRepo.List(ctx, filter)
}
