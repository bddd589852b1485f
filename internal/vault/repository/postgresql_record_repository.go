package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// PostgreSQLRecordRepository implements vault record persistence for PostgreSQL databases.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQL record repository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{db: db}
}

// Get retrieves the record for token.
func (p *PostgreSQLRecordRepository) Get(ctx context.Context, token string) (*vaultDomain.VaultRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM vault_records WHERE token = $1`

	record, err := scanRecord(querier.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrCardNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get card record")
	}
	return record, nil
}

// Create inserts a new record. A token already in use yields
// vaultDomain.ErrDuplicateToken.
func (p *PostgreSQLRecordRepository) Create(ctx context.Context, record *vaultDomain.VaultRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO vault_records (` + recordColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if _, err := querier.ExecContext(ctx, query, recordArgs(record)...); err != nil {
		if database.IsUniqueViolation(err) {
			return vaultDomain.ErrDuplicateToken
		}
		return apperrors.Wrap(err, "failed to create card record")
	}
	return nil
}

// Put inserts or replaces a record.
func (p *PostgreSQLRecordRepository) Put(ctx context.Context, record *vaultDomain.VaultRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO vault_records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			  ON CONFLICT (token) DO UPDATE SET
				ciphertext = EXCLUDED.ciphertext,
				nonce = EXCLUDED.nonce,
				tag = EXCLUDED.tag,
				integrity_tag = EXCLUDED.integrity_tag,
				brand = EXCLUDED.brand,
				last4 = EXCLUDED.last4,
				expiry_display = EXCLUDED.expiry_display,
				fingerprint = EXCLUDED.fingerprint,
				encryption_key_id = EXCLUDED.encryption_key_id,
				updated_at = EXCLUDED.updated_at,
				expires_at = EXCLUDED.expires_at,
				last_accessed_at = EXCLUDED.last_accessed_at,
				integrity_flagged_at = EXCLUDED.integrity_flagged_at`

	if _, err := querier.ExecContext(ctx, query, recordArgs(record)...); err != nil {
		return apperrors.Wrap(err, "failed to put card record")
	}
	return nil
}

// Delete removes the record for token.
func (p *PostgreSQLRecordRepository) Delete(ctx context.Context, token string) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM vault_records WHERE token = $1`, token); err != nil {
		return apperrors.Wrap(err, "failed to delete card record")
	}
	return nil
}

// ScanAll returns every record ordered by creation time.
func (p *PostgreSQLRecordRepository) ScanAll(ctx context.Context) ([]*vaultDomain.VaultRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM vault_records ORDER BY created_at, token`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to scan card records")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRecords(rows)
}

// PostgreSQLFingerprintRepository implements the fingerprint index for PostgreSQL databases.
type PostgreSQLFingerprintRepository struct {
	db *sql.DB
}

// NewPostgreSQLFingerprintRepository creates a new PostgreSQL fingerprint repository.
func NewPostgreSQLFingerprintRepository(db *sql.DB) *PostgreSQLFingerprintRepository {
	return &PostgreSQLFingerprintRepository{db: db}
}

// Get retrieves the entry for fingerprint.
func (p *PostgreSQLFingerprintRepository) Get(
	ctx context.Context,
	fingerprint string,
) (*vaultDomain.FingerprintEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT fingerprint, token, created_at FROM fingerprint_index WHERE fingerprint = $1`

	var entry vaultDomain.FingerprintEntry
	err := querier.QueryRowContext(ctx, query, fingerprint).Scan(&entry.Fingerprint, &entry.Token, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, vaultDomain.ErrCardNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get fingerprint entry")
	}
	return &entry, nil
}

// Put inserts or replaces an entry.
func (p *PostgreSQLFingerprintRepository) Put(ctx context.Context, entry *vaultDomain.FingerprintEntry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO fingerprint_index (fingerprint, token, created_at) VALUES ($1, $2, $3)
			  ON CONFLICT (fingerprint) DO UPDATE SET token = EXCLUDED.token, created_at = EXCLUDED.created_at`

	if _, err := querier.ExecContext(ctx, query, entry.Fingerprint, entry.Token, entry.CreatedAt); err != nil {
		return apperrors.Wrap(err, "failed to put fingerprint entry")
	}
	return nil
}

// Claim inserts entry when the fingerprint is free, or swaps it in when the current
// entry still points to replaceToken. It reports false when another token holds the
// fingerprint.
func (p *PostgreSQLFingerprintRepository) Claim(
	ctx context.Context,
	entry *vaultDomain.FingerprintEntry,
	replaceToken string,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO fingerprint_index (fingerprint, token, created_at) VALUES ($1, $2, $3)
			  ON CONFLICT (fingerprint) DO UPDATE SET token = EXCLUDED.token, created_at = EXCLUDED.created_at
			  WHERE fingerprint_index.token = $4`

	result, err := querier.ExecContext(ctx, query, entry.Fingerprint, entry.Token, entry.CreatedAt, replaceToken)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to claim fingerprint entry")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to claim fingerprint entry")
	}
	return rows == 1, nil
}

// Delete removes the entry while it still points to token.
func (p *PostgreSQLFingerprintRepository) Delete(ctx context.Context, fingerprint, token string) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM fingerprint_index WHERE fingerprint = $1 AND token = $2`

	if _, err := querier.ExecContext(ctx, query, fingerprint, token); err != nil {
		return apperrors.Wrap(err, "failed to delete fingerprint entry")
	}
	return nil
}
