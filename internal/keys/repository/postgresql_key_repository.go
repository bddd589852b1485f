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

// PostgreSQLKeyRepository implements key record persistence for PostgreSQL databases.
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQL key repository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// Create inserts a new key record.
func (p *PostgreSQLKeyRepository) Create(ctx context.Context, key *keysDomain.KeyRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO key_records (id, purpose, status, algorithm, version, rotation_period_seconds,
			  status_reason, created_at, updated_at, last_rotated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

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
func (p *PostgreSQLKeyRepository) Update(ctx context.Context, key *keysDomain.KeyRecord) error {
	query := `UPDATE key_records SET status = $1, status_reason = $2, updated_at = $3, last_rotated_at = $4 WHERE id = $5`

	return p.update(ctx, query, keysDomain.ErrKeyNotFound,
		string(key.Status), key.StatusReason, key.UpdatedAt, key.LastRotatedAt, key.ID)
}

// UpdateIfStatus persists key only while the stored status is still expected.
func (p *PostgreSQLKeyRepository) UpdateIfStatus(
	ctx context.Context,
	key *keysDomain.KeyRecord,
	expected keysDomain.Status,
) error {
	query := `UPDATE key_records SET status = $1, status_reason = $2, updated_at = $3, last_rotated_at = $4
			  WHERE id = $5 AND status = $6`

	return p.update(ctx, query, keysDomain.ErrKeyStatusChanged,
		string(key.Status), key.StatusReason, key.UpdatedAt, key.LastRotatedAt, key.ID, string(expected))
}

// update runs a single-row status update and returns missing when no row matched.
func (p *PostgreSQLKeyRepository) update(ctx context.Context, query string, missing error, args ...any) error {
	querier := database.GetTx(ctx, p.db)

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
func (p *PostgreSQLKeyRepository) Get(ctx context.Context, id string) (*keysDomain.KeyRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query, args, err := squirrel.Select(keyColumns...).
		From("key_records").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
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
func (p *PostgreSQLKeyRepository) List(
	ctx context.Context,
	filter keysDomain.KeyFilter,
) ([]*keysDomain.KeyRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query, args, err := buildListKeysQuery(filter, squirrel.Dollar)
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
