package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/cardvault/internal/database"
	apperrors "github.com/allisson/cardvault/internal/errors"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// MySQLRecordRepository implements vault record persistence for MySQL databases.
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQL record repository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{db: db}
}

// Get retrieves the record for token.
func (p *MySQLRecordRepository) Get(ctx context.Context, token string) (*vaultDomain.VaultRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM vault_records WHERE token = ?`

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
func (p *MySQLRecordRepository) Create(ctx context.Context, record *vaultDomain.VaultRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO vault_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, recordArgs(record)...); err != nil {
		if database.IsUniqueViolation(err) {
			return vaultDomain.ErrDuplicateToken
		}
		return apperrors.Wrap(err, "failed to create card record")
	}
	return nil
}

// Put inserts or replaces a record.
func (p *MySQLRecordRepository) Put(ctx context.Context, record *vaultDomain.VaultRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO vault_records (` + recordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
				ciphertext = VALUES(ciphertext),
				nonce = VALUES(nonce),
				tag = VALUES(tag),
				integrity_tag = VALUES(integrity_tag),
				brand = VALUES(brand),
				last4 = VALUES(last4),
				expiry_display = VALUES(expiry_display),
				fingerprint = VALUES(fingerprint),
				encryption_key_id = VALUES(encryption_key_id),
				updated_at = VALUES(updated_at),
				expires_at = VALUES(expires_at),
				last_accessed_at = VALUES(last_accessed_at),
				integrity_flagged_at = VALUES(integrity_flagged_at)`

	if _, err := querier.ExecContext(ctx, query, recordArgs(record)...); err != nil {
		return apperrors.Wrap(err, "failed to put card record")
	}
	return nil
}

// Delete removes the record for token.
func (p *MySQLRecordRepository) Delete(ctx context.Context, token string) error {
	querier := database.GetTx(ctx, p.db)

	if _, err := querier.ExecContext(ctx, `DELETE FROM vault_records WHERE token = ?`, token); err != nil {
		return apperrors.Wrap(err, "failed to delete card record")
	}
	return nil
}

// ScanAll returns every record ordered by creation time.
func (p *MySQLRecordRepository) ScanAll(ctx context.Context) ([]*vaultDomain.VaultRecord, error) {
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

// MySQLFingerprintRepository implements the fingerprint index for MySQL databases.
type MySQLFingerprintRepository struct {
	db *sql.DB
}

// NewMySQLFingerprintRepository creates a new MySQL fingerprint repository.
func NewMySQLFingerprintRepository(db *sql.DB) *MySQLFingerprintRepository {
	return &MySQLFingerprintRepository{db: db}
}

// Get retrieves the entry for fingerprint.
func (p *MySQLFingerprintRepository) Get(
	ctx context.Context,
	fingerprint string,
) (*vaultDomain.FingerprintEntry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT fingerprint, token, created_at FROM fingerprint_index WHERE fingerprint = ?`

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
func (p *MySQLFingerprintRepository) Put(ctx context.Context, entry *vaultDomain.FingerprintEntry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO fingerprint_index (fingerprint, token, created_at) VALUES (?, ?, ?)
			  ON DUPLICATE KEY UPDATE token = VALUES(token), created_at = VALUES(created_at)`

	if _, err := querier.ExecContext(ctx, query, entry.Fingerprint, entry.Token, entry.CreatedAt); err != nil {
		return apperrors.Wrap(err, "failed to put fingerprint entry")
	}
	return nil
}

// Claim inserts entry when the fingerprint is free, or swaps it in when the current
// entry still points to replaceToken. It reports false when another token holds the
// fingerprint.
func (p *MySQLFingerprintRepository) Claim(
	ctx context.Context,
	entry *vaultDomain.FingerprintEntry,
	replaceToken string,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	if replaceToken != "" {
		query := `UPDATE fingerprint_index SET token = ?, created_at = ? WHERE fingerprint = ? AND token = ?`
		result, err := querier.ExecContext(ctx, query, entry.Token, entry.CreatedAt, entry.Fingerprint, replaceToken)
		if err != nil {
			return false, apperrors.Wrap(err, "failed to claim fingerprint entry")
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return false, apperrors.Wrap(err, "failed to claim fingerprint entry")
		}
		if rows == 1 {
			return true, nil
		}
	}

	query := `INSERT INTO fingerprint_index (fingerprint, token, created_at) VALUES (?, ?, ?)`

	if _, err := querier.ExecContext(ctx, query, entry.Fingerprint, entry.Token, entry.CreatedAt); err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, apperrors.Wrap(err, "failed to claim fingerprint entry")
	}
	return true, nil
}

// Delete removes the entry while it still points to token.
func (p *MySQLFingerprintRepository) Delete(ctx context.Context, fingerprint, token string) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM fingerprint_index WHERE fingerprint = ? AND token = ?`

	if _, err := querier.ExecContext(ctx, query, fingerprint, token); err != nil {
		return apperrors.Wrap(err, "failed to delete fingerprint entry")
	}
	return nil
}
