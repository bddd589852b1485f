package repository

import (
	"database/sql"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyEntry(row rowScanner) (*hsmDomain.KeyEntry, error) {
	var entry hsmDomain.KeyEntry
	var algorithm string

	if err := row.Scan(
		&entry.KeyID,
		&entry.Purpose,
		&algorithm,
		&entry.WrappedKey,
		&entry.WrappingKeyID,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}

	entry.Algorithm = cryptoDomain.Algorithm(algorithm)
	return &entry, nil
}

func scanKeyEntries(rows *sql.Rows) ([]*hsmDomain.KeyEntry, error) {
	var entries []*hsmDomain.KeyEntry
	for rows.Next() {
		entry, err := scanKeyEntry(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan hsm key")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate hsm keys")
	}
	return entries, nil
}
