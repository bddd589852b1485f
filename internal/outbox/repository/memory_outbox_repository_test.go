package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/cardvault/internal/errors"
	"github.com/allisson/cardvault/internal/outbox/domain"
)

func newEvent(t *testing.T) *domain.OutboxEvent {
	t.Helper()
	event, err := domain.NewOutboxEvent(domain.EventTypeKeyRotationDue, map[string]string{"key_id": "k1"}, time.Now())
	require.NoError(t, err)
	return event
}

func TestMemoryOutboxEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOutboxEventRepository()

	first := newEvent(t)
	second := newEvent(t)
	third := newEvent(t)
	for _, event := range []*domain.OutboxEvent{first, second, third} {
		require.NoError(t, repo.Create(ctx, event))
	}

	t.Run("duplicate create", func(t *testing.T) {
		assert.ErrorIs(t, repo.Create(ctx, first), apperrors.ErrConflict)
	})

	t.Run("pending events honor the limit", func(t *testing.T) {
		events, err := repo.GetPendingEvents(ctx, 2, time.Now())
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("processed events are no longer pending", func(t *testing.T) {
		now := time.Now().UTC()
		second.Status = domain.OutboxEventStatusProcessed
		second.ProcessedAt = &now
		require.NoError(t, repo.Update(ctx, second))

		events, err := repo.GetPendingEvents(ctx, 10, time.Now())
		require.NoError(t, err)
		require.Len(t, events, 2)
		for _, event := range events {
			assert.NotEqual(t, second.ID, event.ID)
		}
	})

	t.Run("returned events are copies", func(t *testing.T) {
		events, err := repo.GetPendingEvents(ctx, 10, time.Now())
		require.NoError(t, err)
		events[0].Status = domain.OutboxEventStatusFailed

		again, err := repo.GetPendingEvents(ctx, 10, time.Now())
		require.NoError(t, err)
		assert.Len(t, again, 2)
	})

	t.Run("failed attempts wait for the retry interval", func(t *testing.T) {
		third.Retries = 1
		lastError := "rotation failed"
		third.LastError = &lastError
		require.NoError(t, repo.Update(ctx, third))

		events, err := repo.GetPendingEvents(ctx, 10, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, first.ID, events[0].ID)

		events, err = repo.GetPendingEvents(ctx, 10, time.Now().Add(time.Second))
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("delete processed before", func(t *testing.T) {
		deleted, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, deleted)

		deleted, err = repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
		assert.ErrorIs(t, repo.Update(ctx, second), apperrors.ErrNotFound)
	})

	t.Run("update unknown event", func(t *testing.T) {
		assert.ErrorIs(t, repo.Update(ctx, newEvent(t)), apperrors.ErrNotFound)
	})
}
