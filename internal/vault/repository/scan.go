package repository

import (
	"database/sql"

	apperrors "github.com/allisson/cardvault/internal/errors"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

const recordColumns = `token, ciphertext, nonce, tag, integrity_tag, brand, last4, expiry_display,
	fingerprint, encryption_key_id, created_at, updated_at, expires_at, last_accessed_at,
	integrity_flagged_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*vaultDomain.VaultRecord, error) {
	var record vaultDomain.VaultRecord
	var brand string
	var lastAccessedAt, flaggedAt sql.NullTime

	err := row.Scan(
		&record.Token,
		&record.Payload.Ciphertext,
		&record.Payload.Nonce,
		&record.Payload.Tag,
		&record.IntegrityTag,
		&brand,
		&record.Last4,
		&record.ExpiryDisplay,
		&record.Fingerprint,
		&record.EncryptionKeyID,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.ExpiresAt,
		&lastAccessedAt,
		&flaggedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Brand = vaultDomain.Brand(brand)
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		record.LastAccessedAt = &t
	}
	if flaggedAt.Valid {
		t := flaggedAt.Time
		record.IntegrityFlaggedAt = &t
	}
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]*vaultDomain.VaultRecord, error) {
	var records []*vaultDomain.VaultRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan card record")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate card records")
	}
	return records, nil
}

func recordArgs(record *vaultDomain.VaultRecord) []any {
	return []any{
		record.Token,
		record.Payload.Ciphertext,
		record.Payload.Nonce,
		record.Payload.Tag,
		record.IntegrityTag,
		string(record.Brand),
		record.Last4,
		record.ExpiryDisplay,
		record.Fingerprint,
		record.EncryptionKeyID,
		record.CreatedAt,
		record.UpdatedAt,
		record.ExpiresAt,
		record.LastAccessedAt,
		record.IntegrityFlaggedAt,
	}
}
