package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// MySQLKeyStore implements key entry persistence for MySQL databases.
type MySQLKeyStore struct {
	db *sql.DB
}

// NewMySQLKeyStore creates a new MySQL key store.
func NewMySQLKeyStore(db *sql.DB) *MySQLKeyStore {
	return &MySQLKeyStore{db: db}
}

// Create inserts a new key entry.
func (m *MySQLKeyStore) Create(ctx context.Context, entry *hsmDomain.KeyEntry) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO hsm_keys (id, purpose, algorithm, wrapped_key, wrapping_key_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

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
func (m *MySQLKeyStore) Get(ctx context.Context, id string) (*hsmDomain.KeyEntry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, purpose, algorithm, wrapped_key, wrapping_key_id, created_at
			  FROM hsm_keys WHERE id = ?`

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
func (m *MySQLKeyStore) List(ctx context.Context) ([]*hsmDomain.KeyEntry, error) {
	querier := database.GetTx(ctx, m.db)

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
