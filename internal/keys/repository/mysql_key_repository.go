package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// MySQLKeyRepository implements key record persistence for MySQL databases.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQL key repository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// Create inserts a new key record.
func (m *MySQLKeyRepository) Create(ctx context.Context, key *keysDomain.KeyRecord) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO key_records (id, purpose, status, algorithm, version, rotation_period_seconds,
			  status_reason, created_at, updated_at, last_rotated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		string(key.Purpose),
		string(key.Status),
		string(key.Algorithm),
		key.Version,
		int64(key.RotationPeriod.Seconds()),
		key.StatusReason,
		key.CreatedAt,
		key.UpdatedAt,
		key.LastRotatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "key already exists")
		}
		return apperrors.Wrap(err, "failed to create key")
	}
	return nil
}

// Update persists the mutable lifecycle fields of a key record.
func (m *MySQLKeyRepository) Update(ctx context.Context, key *keysDomain.KeyRecord) error {
	query := `UPDATE key_records SET status = ?, status_reason = ?, updated_at = ?, last_rotated_at = ? WHERE id = ?`

	return m.update(ctx, query, keysDomain.ErrKeyNotFound,
		string(key.Status), key.StatusReason, key.UpdatedAt, key.LastRotatedAt, key.ID)
}

// UpdateIfStatus persists key only while the stored status is still expected.
func (m *MySQLKeyRepository) UpdateIfStatus(
	ctx context.Context,
	key *keysDomain.KeyRecord,
	expected keysDomain.Status,
) error {
	query := `UPDATE key_records SET status = ?, status_reason = ?, updated_at = ?, last_rotated_at = ?
			  WHERE id = ? AND status = ?`

	return m.update(ctx, query, keysDomain.ErrKeyStatusChanged,
		string(key.Status), key.StatusReason, key.UpdatedAt, key.LastRotatedAt, key.ID, string(expected))
}

// update runs a single-row status update and returns missing when no row matched.
func (m *MySQLKeyRepository) update(ctx context.Context, query string, missing error, args ...any) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "purpose already has an active key")
		}
		return apperrors.Wrap(err, "failed to update key")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update key")
	}
	if rows == 0 {
		return missing
	}
	return nil
}

// Get retrieves a key record by ID.
func (m *MySQLKeyRepository) Get(ctx context.Context, id string) (*keysDomain.KeyRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query, args, err := squirrel.Select(keyColumns...).
		From("key_records").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Question).
		ToSql()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build key query")
	}

	key, err := scanKey(querier.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get key")
	}
	return key, nil
}

// List retrieves key records matching filter.
func (m *MySQLKeyRepository) List(
	ctx context.Context,
	filter keysDomain.KeyFilter,
) ([]*keysDomain.KeyRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query, args, err := buildListKeysQuery(filter, squirrel.Question)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build key query")
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanKeys(rows)
}
