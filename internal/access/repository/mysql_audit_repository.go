package repository

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

// MySQLAuditRepository implements audit persistence for MySQL databases. IDs are
// stored as BINARY(16).
type MySQLAuditRepository struct {
	db *sql.DB
}

// NewMySQLAuditRepository creates a new MySQL audit repository.
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}

// Create appends an audit entry.
func (m *MySQLAuditRepository) Create(ctx context.Context, entry *accessDomain.AuditEntry) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := entry.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit id")
	}

	query, args, err := buildInsertAuditQuery(entry, idBytes, squirrel.Question)
	if err != nil {
		return apperrors.Wrap(err, "failed to build audit insert")
	}

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to create audit entry")
	}
	return nil
}

// List retrieves audit entries matching filter.
func (m *MySQLAuditRepository) List(
	ctx context.Context,
	filter accessDomain.AuditFilter,
) ([]*accessDomain.AuditEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query, args, err := buildListAuditQuery(filter, squirrel.Question)
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
		var idBytes []byte
		entry, err := scanAudit(rows, &idBytes)
		if err != nil {
			return nil, err
		}
		if err := entry.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit id")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entries")
	}
	return entries, nil
}
