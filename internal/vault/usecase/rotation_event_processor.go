package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	outboxDomain "github.com/allisson/cardvault/internal/outbox/domain"
)

// rotationSubject identifies scheduled rotations in the audit log.
const rotationSubject = "key-rotation-scheduler"

// RotationEventProcessor handles key.rotation_due outbox events. Payment keys go
// through RotateKeys so every record is re-encrypted; other purposes only swap the
// key in the key manager. The hmac key is never rotated automatically since stored
// fingerprints would stop matching.
type RotationEventProcessor struct {
	vault  VaultUseCase
	keys   KeyManager
	logger *slog.Logger
}

// NewRotationEventProcessor creates a RotationEventProcessor.
func NewRotationEventProcessor(vault VaultUseCase, keys KeyManager, logger *slog.Logger) *RotationEventProcessor {
	return &RotationEventProcessor{vault: vault, keys: keys, logger: logger}
}

// Process rotates the key named by the event's notice. A notice whose key is no
// longer active was already handled and is dropped; a rotating key resumes the
// pending rotation.
func (p *RotationEventProcessor) Process(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var notice keysDomain.RotationNotice
	if err := event.Decode(&notice); err != nil {
		return err
	}

	if notice.Purpose == keysDomain.PurposeHMAC {
		p.logger.Warn("skipping automatic rotation of fingerprint key",
			slog.String("key_id", notice.KeyID),
		)
		return nil
	}

	key, err := p.keys.Get(ctx, notice.KeyID)
	if errors.Is(err, keysDomain.ErrKeyNotFound) {
		p.logger.Warn("dropping rotation notice for unknown key", slog.String("key_id", notice.KeyID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s key rotation: %w", notice.Purpose, err)
	}
	if key.Status != keysDomain.StatusActive && key.Status != keysDomain.StatusRotating {
		p.logger.Info("dropping stale rotation notice",
			slog.String("key_id", key.ID),
			slog.String("status", string(key.Status)),
		)
		return nil
	}

	switch notice.Purpose {

	case keysDomain.PurposePayment:
		result, err := p.vault.RotateKeys(ctx, accessDomain.System(rotationSubject))
		if err != nil {
			return fmt.Errorf("payment key rotation: %w", err)
		}
		p.logger.Info("scheduled payment key rotation finished",
			slog.String("old_key_id", result.OldKeyID),
			slog.String("new_key_id", result.NewKeyID),
			slog.Int("reencrypted", result.ReencryptedCount),
		)
		return nil

	default:
		rotation, err := p.keys.BeginRotation(ctx, notice.Purpose)
		if errors.Is(err, keysDomain.ErrRotationInProgress) {
			rotation, err = p.keys.PendingRotation(ctx, notice.Purpose)
		}
		if err != nil {
			return fmt.Errorf("%s key rotation: %w", notice.Purpose, err)
		}
		if err := p.keys.CompleteRotation(ctx, rotation); err != nil {
			return fmt.Errorf("%s key rotation: %w", notice.Purpose, err)
		}
		p.logger.Info("scheduled key rotation finished",
			slog.String("purpose", string(notice.Purpose)),
			slog.String("old_key_id", rotation.OldKeyID),
			slog.String("new_key_id", rotation.NewKeyID),
		)
		return nil
	}
}
