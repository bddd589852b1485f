package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// MySQLOutboxEventRepository stores outbox events in MySQL, with ids in a
// BINARY(16) column.
type MySQLOutboxEventRepository struct {
	sqlOutboxEventRepository
}

// NewMySQLOutboxEventRepository creates a new MySQL outbox repository.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		sqlOutboxEventRepository{
			db:     db,
			format: squirrel.Question,
			encodeID: func(id uuid.UUID) (any, error) {
				return id.MarshalBinary()
			},
		},
	}
}
