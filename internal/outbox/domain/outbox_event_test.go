package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxEvent(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	event, err := NewOutboxEvent(EventTypeKeyRotationDue, map[string]string{"key_id": "k1"}, now)
	require.NoError(t, err)
	assert.Equal(t, EventTypeKeyRotationDue, event.EventType)
	assert.Equal(t, OutboxEventStatusPending, event.Status)
	assert.JSONEq(t, `{"key_id":"k1"}`, event.Payload)
	assert.Equal(t, now, event.CreatedAt)
	assert.NotZero(t, event.ID)

	var decoded map[string]string
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "k1", decoded["key_id"])
}

func TestNewOutboxEvent_InvalidPayload(t *testing.T) {
	_, err := NewOutboxEvent("bad", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestOutboxEvent_DecodeInvalid(t *testing.T) {
	event := &OutboxEvent{EventType: EventTypeKeyRotationDue, Payload: "{"}
	var v map[string]any
	assert.ErrorContains(t, event.Decode(&v), "key.rotation_due")
}

func TestOutboxEvent_MarkAttemptFailed(t *testing.T) {
	event, err := NewOutboxEvent(EventTypeKeyRotationDue, struct{}{}, time.Now())
	require.NoError(t, err)

	assert.False(t, event.MarkAttemptFailed(errors.New("notifier down"), 2))
	assert.Equal(t, OutboxEventStatusPending, event.Status)
	assert.Equal(t, 1, event.Retries)
	require.NotNil(t, event.LastError)
	assert.Equal(t, "notifier down", *event.LastError)

	assert.True(t, event.MarkAttemptFailed(errors.New(strings.Repeat("x", 4096)), 2))
	assert.Equal(t, OutboxEventStatusFailed, event.Status)
	assert.Equal(t, 2, event.Retries)
	assert.Len(t, *event.LastError, maxLastErrorLen)
}

func TestOutboxEvent_MarkProcessed(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	event, err := NewOutboxEvent(EventTypeKeyRotationDue, struct{}{}, now)
	require.NoError(t, err)
	event.MarkAttemptFailed(errors.New("transient"), 3)

	event.MarkProcessed(now.Add(time.Minute))
	assert.Equal(t, OutboxEventStatusProcessed, event.Status)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, now.Add(time.Minute), *event.ProcessedAt)
	assert.Nil(t, event.LastError)
	assert.Equal(t, 1, event.Retries)
}
