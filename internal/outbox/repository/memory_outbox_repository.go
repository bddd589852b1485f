package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/allisson/cardvault/internal/errors"
	"github.com/allisson/cardvault/internal/outbox/domain"
)

// MemoryOutboxEventRepository keeps outbox events in process memory. Not durable.
type MemoryOutboxEventRepository struct {
	mu     sync.Mutex
	events map[string]*domain.OutboxEvent
}

// NewMemoryOutboxEventRepository creates an empty in-memory outbox.
func NewMemoryOutboxEventRepository() *MemoryOutboxEventRepository {
	return &MemoryOutboxEventRepository{events: make(map[string]*domain.OutboxEvent)}
}

// Create stores a copy of event.
func (r *MemoryOutboxEventRepository) Create(_ context.Context, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := event.ID.String()
	if _, ok := r.events[id]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "outbox event already exists")
	}

	now := time.Now().UTC()
	stored := cloneEvent(event)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.events[id] = stored
	return nil
}

// GetPendingEvents returns up to limit pending events, oldest first. Failed
// events wait until their last attempt is older than retryBefore.
func (r *MemoryOutboxEventRepository) GetPendingEvents(
	_ context.Context,
	limit int,
	retryBefore time.Time,
) ([]*domain.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []*domain.OutboxEvent
	for _, event := range r.events {
		if event.Status != domain.OutboxEventStatusPending {
			continue
		}
		if event.Retries > 0 && event.UpdatedAt.After(retryBefore) {
			continue
		}
		events = append(events, cloneEvent(event))
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID.String() < events[j].ID.String()
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Update replaces the stored copy of event.
func (r *MemoryOutboxEventRepository) Update(_ context.Context, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := event.ID.String()
	current, ok := r.events[id]
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "outbox event not found")
	}

	stored := cloneEvent(event)
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.events[id] = stored
	return nil
}

// DeleteProcessedBefore removes processed events delivered before before.
func (r *MemoryOutboxEventRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, event := range r.events {
		if event.Status == domain.OutboxEventStatusProcessed && event.ProcessedAt != nil &&
			event.ProcessedAt.Before(before) {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func cloneEvent(event *domain.OutboxEvent) *domain.OutboxEvent {
	c := *event
	if event.LastError != nil {
		lastError := *event.LastError
		c.LastError = &lastError
	}
	if event.ProcessedAt != nil {
		processedAt := *event.ProcessedAt
		c.ProcessedAt = &processedAt
	}
	return &c
}
