// Package repository persists outbox events in memory, PostgreSQL or MySQL.
package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// PostgreSQLOutboxEventRepository stores outbox events in PostgreSQL, with ids in a
// native UUID column.
type PostgreSQLOutboxEventRepository struct {
	sqlOutboxEventRepository
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQL outbox repository.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		sqlOutboxEventRepository{
			db:     db,
			format: squirrel.Dollar,
			encodeID: func(id uuid.UUID) (any, error) {
				return id, nil
			},
		},
	}
}
