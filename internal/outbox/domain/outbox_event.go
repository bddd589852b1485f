// Package domain defines the outbox event entity and the event types the vault emits.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus is the delivery state of an event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// EventTypeKeyRotationDue is emitted for an active key past its rotation period. The
// payload is a keys RotationNotice.
const EventTypeKeyRotationDue = "key.rotation_due"

// maxLastErrorLen bounds the handler error kept on an event.
const maxLastErrorLen = 1024

// OutboxEvent is a side effect recorded in the same transaction as the change that
// caused it and delivered later by the outbox processor.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEvent builds a pending event with a JSON encoded payload.
func NewOutboxEvent(eventType string, payload any, now time.Time) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}

	return &OutboxEvent{
		ID:        id,
		EventType: eventType,
		Payload:   string(data),
		Status:    OutboxEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *OutboxEvent) Decode(v any) error {
	if err := json.Unmarshal([]byte(e.Payload), v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// MarkProcessed records a successful delivery.
func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.LastError = nil
}

// MarkAttemptFailed records a failed delivery. The event stays pending until it has
// failed maxRetries times, then it is parked as failed. Reports whether it was parked.
func (e *OutboxEvent) MarkAttemptFailed(cause error, maxRetries int) bool {
	e.Retries++
	msg := cause.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	e.LastError = &msg

	if e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
		return true
	}
	return false
}
