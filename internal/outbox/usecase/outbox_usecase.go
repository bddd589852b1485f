// Package usecase implements the outbox polling loop that delivers rotation notices
// and other vault events to their processors.
package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/cardvault/internal/database"
	"github.com/allisson/cardvault/internal/outbox/domain"
)

// Config holds outbox use case configuration
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxRetries    int
	RetryInterval time.Duration
	// Retention is how long processed events are kept. Zero keeps them forever.
	Retention time.Duration
}

// OutboxEventRepository defines outbox event repository operations
type OutboxEventRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetPendingEvents(ctx context.Context, limit int, retryBefore time.Time) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// EventProcessor defines the interface for processing different event types
type EventProcessor interface {
	Process(ctx context.Context, event *domain.OutboxEvent) error
}

// UseCase defines the interface for outbox use cases
type UseCase interface {
	Start(ctx context.Context) error
	ProcessEvents(ctx context.Context) error
	PruneProcessed(ctx context.Context) (int64, error)
}

// OutboxUseCase implements business logic for processing outbox events
type OutboxUseCase struct {
	config         Config
	txManager      database.TxManager
	outboxRepo     OutboxEventRepository
	eventProcessor EventProcessor
	logger         *slog.Logger
}

// NewOutboxUseCase creates a new OutboxUseCase
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	eventProcessor EventProcessor,
	logger *slog.Logger,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:         config,
		txManager:      txManager,
		outboxRepo:     outboxRepo,
		eventProcessor: eventProcessor,
		logger:         logger,
	}
}

// Start starts the outbox event processing loop
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting outbox event processor",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
		)
	}

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping outbox event processor")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to process events", slog.Any("error", err))
				}
			}
			if _, err := uc.PruneProcessed(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to prune processed events", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessEvents retrieves and processes pending events from the outbox in a
// transaction. An event that failed is retried only after RetryInterval.
func (uc *OutboxUseCase) ProcessEvents(ctx context.Context) error {
	retryBefore := time.Now().UTC().Add(-uc.config.RetryInterval)

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.outboxRepo.GetPendingEvents(ctx, uc.config.BatchSize, retryBefore)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		if uc.logger != nil {
			uc.logger.Info("processing events", slog.Int("count", len(events)))
		}

		for _, event := range events {
			if err := uc.processEvent(ctx, event); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to process event",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", event.EventType),
						slog.Any("error", err),
					)
				}

				if event.MarkAttemptFailed(err, uc.config.MaxRetries) && uc.logger != nil {
					uc.logger.Warn("event parked after max retries",
						slog.String("event_id", event.ID.String()),
						slog.Int("retries", event.Retries),
					)
				}

				if err := uc.outboxRepo.Update(ctx, event); err != nil {
					return err
				}
				continue
			}

			event.MarkProcessed(time.Now().UTC())

			if err := uc.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
		}

		return nil
	})
}

// PruneProcessed deletes processed events older than Retention. Failed events stay
// until an operator looks at them.
func (uc *OutboxUseCase) PruneProcessed(ctx context.Context) (int64, error) {
	if uc.config.Retention <= 0 {
		return 0, nil
	}

	deleted, err := uc.outboxRepo.DeleteProcessedBefore(ctx, time.Now().UTC().Add(-uc.config.Retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 && uc.logger != nil {
		uc.logger.Info("pruned processed events", slog.Int64("count", deleted))
	}
	return deleted, nil
}

// processEvent handles a single outbox event using the configured event processor
func (uc *OutboxUseCase) processEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if uc.logger != nil {
		uc.logger.Info("processing event",
			slog.String("event_id", event.ID.String()),
			slog.String("event_type", event.EventType),
		)
	}

	return uc.eventProcessor.Process(ctx, event)
}

// EventRouter dispatches events to the processor registered for their type. Events
// with no processor are logged and treated as handled.
type EventRouter struct {
	mu         sync.RWMutex
	processors map[string]EventProcessor
	logger     *slog.Logger
}

// NewEventRouter creates an empty EventRouter.
func NewEventRouter(logger *slog.Logger) *EventRouter {
	return &EventRouter{
		processors: make(map[string]EventProcessor),
		logger:     logger,
	}
}

// Handle registers processor for eventType, replacing any earlier registration.
func (r *EventRouter) Handle(eventType string, processor EventProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[eventType] = processor
}

// Process hands event to its processor.
func (r *EventRouter) Process(ctx context.Context, event *domain.OutboxEvent) error {
	r.mu.RLock()
	processor, ok := r.processors[event.EventType]
	r.mu.RUnlock()

	if !ok {
		if r.logger != nil {
			r.logger.Warn("unknown event type", slog.String("event_type", event.EventType))
		}
		return nil
	}
	return processor.Process(ctx, event)
}
