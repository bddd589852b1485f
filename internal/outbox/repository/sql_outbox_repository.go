package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	"github.com/allisson/cardvault/internal/outbox/domain"
)

var outboxColumns = []string{
	"id",
	"event_type",
	"payload",
	"status",
	"retries",
	"last_error",
	"processed_at",
	"created_at",
	"updated_at",
}

// sqlOutboxEventRepository holds the queries shared by the PostgreSQL and MySQL
// outboxes. The dialects differ only in placeholders and in how event ids are stored.
type sqlOutboxEventRepository struct {
	db       *sql.DB
	format   squirrel.PlaceholderFormat
	encodeID func(id uuid.UUID) (any, error)
}

// Create inserts a new outbox event. It joins the transaction carried by ctx so
// the event commits together with the change that produced it.
func (r *sqlOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	id, err := r.encodeID(event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode event id")
	}

	query, args, err := squirrel.Insert("outbox_events").
		Columns(outboxColumns...).
		Values(
			id,
			event.EventType,
			event.Payload,
			string(event.Status),
			event.Retries,
			event.LastError,
			event.ProcessedAt,
			event.CreatedAt,
			event.UpdatedAt,
		).
		PlaceholderFormat(r.format).
		ToSql()
	if err != nil {
		return apperrors.Wrap(err, "failed to build insert")
	}

	if _, err := database.GetTx(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "outbox event already exists")
		}
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// GetPendingEvents locks up to limit pending events, oldest first. Events that
// already failed are returned only once their last attempt is older than
// retryBefore. Rows locked by another processor are skipped.
func (r *sqlOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	limit int,
	retryBefore time.Time,
) ([]*domain.OutboxEvent, error) {
	q := squirrel.Select(outboxColumns...).
		From("outbox_events").
		Where(squirrel.Eq{"status": string(domain.OutboxEventStatusPending)}).
		Where(squirrel.Or{
			squirrel.Eq{"retries": 0},
			squirrel.LtOrEq{"updated_at": retryBefore},
		}).
		OrderBy("created_at ASC").
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(r.format)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build pending events query")
	}

	rows, err := database.GetTx(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get pending events")
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var status string
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&status,
			&event.Retries,
			&event.LastError,
			&event.ProcessedAt,
			&event.CreatedAt,
			&event.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		event.Status = domain.OutboxEventStatus(status)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}

// Update persists the delivery state of event. Type and payload never change.
func (r *sqlOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	id, err := r.encodeID(event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode event id")
	}

	now := time.Now().UTC()
	query, args, err := squirrel.Update("outbox_events").
		Set("status", string(event.Status)).
		Set("retries", event.Retries).
		Set("last_error", event.LastError).
		Set("processed_at", event.ProcessedAt).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(r.format).
		ToSql()
	if err != nil {
		return apperrors.Wrap(err, "failed to build update")
	}

	result, err := database.GetTx(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "outbox event not found")
	}

	event.UpdatedAt = now
	return nil
}

// DeleteProcessedBefore removes processed events delivered before before and
// returns how many were removed. Failed events are kept for inspection.
func (r *sqlOutboxEventRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := squirrel.Delete("outbox_events").
		Where(squirrel.Eq{"status": string(domain.OutboxEventStatusProcessed)}).
		Where(squirrel.Lt{"processed_at": before}).
		PlaceholderFormat(r.format).
		ToSql()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to build delete")
	}

	result, err := database.GetTx(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete processed events")
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete processed events")
	}
	return deleted, nil
}
