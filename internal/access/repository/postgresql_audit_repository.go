package repository

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

// PostgreSQLAuditRepository implements audit persistence for PostgreSQL databases.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}

// Create appends an audit entry.
func (p *PostgreSQLAuditRepository) Create(ctx context.Context, entry *accessDomain.AuditEntry) error {
	querier := database.GetTx(ctx, p.db)

	query, args, err := buildInsertAuditQuery(entry, entry.ID, squirrel.Dollar)
	if err != nil {
		return apperrors.Wrap(err, "failed to build audit insert")
	}

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to create audit entry")
	}
	return nil
}

// List retrieves audit entries matching filter.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	filter accessDomain.AuditFilter,
) ([]*accessDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query, args, err := buildListAuditQuery(filter, squirrel.Dollar)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build audit query")
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []*accessDomain.AuditEntry
	for rows.Next() {
		var id uuid.UUID
		entry, err := scanAudit(rows, &id)
		if err != nil {
			return nil, err
		}
		entry.ID = id
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entries")
	}
	return entries, nil
}
