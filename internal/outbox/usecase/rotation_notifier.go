package usecase

import (
	"context"
	"log/slog"
	"time"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
	"github.com/allisson/cardvault/internal/outbox/domain"
)

// RotationNotifier turns rotation notices into key.rotation_due outbox events. The
// insert joins the transaction carried by ctx, if any.
type RotationNotifier struct {
	outboxRepo OutboxEventRepository
	logger     *slog.Logger
}

// NewRotationNotifier creates a RotationNotifier.
func NewRotationNotifier(outboxRepo OutboxEventRepository, logger *slog.Logger) *RotationNotifier {
	return &RotationNotifier{outboxRepo: outboxRepo, logger: logger}
}

// NotifyRotationDue stores notice as a pending event.
func (n *RotationNotifier) NotifyRotationDue(ctx context.Context, notice keysDomain.RotationNotice) error {
	event, err := domain.NewOutboxEvent(domain.EventTypeKeyRotationDue, notice, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := n.outboxRepo.Create(ctx, event); err != nil {
		return err
	}

	n.logger.Info("key rotation due event queued",
		slog.String("event_id", event.ID.String()),
		slog.String("key_id", notice.KeyID),
		slog.String("purpose", string(notice.Purpose)),
	)
	return nil
}
