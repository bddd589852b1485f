package repository

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

var keyColumns = []string{
	"id",
	"purpose",
	"status",
	"algorithm",
	"version",
	"rotation_period_seconds",
	"status_reason",
	"created_at",
	"updated_at",
	"last_rotated_at",
}

// buildListKeysQuery builds the filtered key listing for the given placeholder format.
func buildListKeysQuery(filter keysDomain.KeyFilter, format squirrel.PlaceholderFormat) (string, []any, error) {
	q := squirrel.Select(keyColumns...).
		From("key_records").
		OrderBy("purpose ASC", "version ASC").
		PlaceholderFormat(format)

	if filter.Purpose != "" {
		q = q.Where(squirrel.Eq{"purpose": string(filter.Purpose)})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}

	return q.ToSql()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*keysDomain.KeyRecord, error) {
	var key keysDomain.KeyRecord
	var purpose, status, algorithm string
	var periodSeconds int64
	var reason sql.NullString
	var lastRotatedAt sql.NullTime

	if err := row.Scan(
		&key.ID,
		&purpose,
		&status,
		&algorithm,
		&key.Version,
		&periodSeconds,
		&reason,
		&key.CreatedAt,
		&key.UpdatedAt,
		&lastRotatedAt,
	); err != nil {
		return nil, err
	}

	key.Purpose = keysDomain.Purpose(purpose)
	key.Status = keysDomain.Status(status)
	key.Algorithm = cryptoDomain.Algorithm(algorithm)
	key.RotationPeriod = time.Duration(periodSeconds) * time.Second
	if reason.Valid {
		key.StatusReason = &reason.String
	}
	if lastRotatedAt.Valid {
		key.LastRotatedAt = &lastRotatedAt.Time
	}
	return &key, nil
}

func scanKeys(rows *sql.Rows) ([]*keysDomain.KeyRecord, error) {
	var keys []*keysDomain.KeyRecord
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate keys")
	}
	return keys, nil
}
