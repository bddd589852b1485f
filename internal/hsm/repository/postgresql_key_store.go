package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// PostgreSQLKeyStore implements key entry persistence for PostgreSQL databases.
type PostgreSQLKeyStore struct {
	db *sql.DB
}

// NewPostgreSQLKeyStore creates a new PostgreSQL key store.
func NewPostgreSQLKeyStore(db *sql.DB) *PostgreSQLKeyStore {
	return &PostgreSQLKeyStore{db: db}
}

// Create inserts a new key entry.
func (p *PostgreSQLKeyStore) Create(ctx context.Context, entry *hsmDomain.KeyEntry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO hsm_keys (id, purpose, algorithm, wrapped_key, wrapping_key_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		entry.KeyID,
		entry.Purpose,
		string(entry.Algorithm),
		entry.WrappedKey,
		entry.WrappingKeyID,
		entry.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "hsm key already exists")
		}
		return apperrors.Wrap(err, "failed to create hsm key")
	}
	return nil
}

// Get retrieves a key entry by ID.
func (p *PostgreSQLKeyStore) Get(ctx context.Context, id string) (*hsmDomain.KeyEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, purpose, algorithm, wrapped_key, wrapping_key_id, created_at
			  FROM hsm_keys WHERE id = $1`

	entry, err := scanKeyEntry(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hsmDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get hsm key")
	}
	return entry, nil
}

// List retrieves all key entries ordered by creation time.
func (p *PostgreSQLKeyStore) List(ctx context.Context) ([]*hsmDomain.KeyEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, purpose, algorithm, wrapped_key, wrapping_key_id, created_at
			  FROM hsm_keys ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list hsm keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanKeyEntries(rows)
}
