package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

var auditColumns = []string{
	"id",
	"created_at",
	"operation",
	"subject_id",
	"level",
	"purpose",
	"token",
	"outcome",
	"reason",
	"signature",
	"signing_key_id",
}

// buildInsertAuditQuery builds the insert for one entry. id is the driver-specific
// representation of entry.ID.
func buildInsertAuditQuery(
	entry *accessDomain.AuditEntry,
	id any,
	format squirrel.PlaceholderFormat,
) (string, []any, error) {
	return squirrel.Insert("audit_entries").
		Columns(auditColumns...).
		Values(
			id,
			entry.Timestamp,
			string(entry.Operation),
			entry.SubjectID,
			int(entry.Level),
			entry.Purpose,
			entry.Token,
			string(entry.Outcome),
			entry.Reason,
			entry.Signature,
			entry.SigningKeyID,
		).
		PlaceholderFormat(format).
		ToSql()
}

// buildListAuditQuery builds the filtered audit listing, oldest first.
func buildListAuditQuery(
	filter accessDomain.AuditFilter,
	format squirrel.PlaceholderFormat,
) (string, []any, error) {
	q := squirrel.Select(auditColumns...).
		From("audit_entries").
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(format)

	if filter.SubjectID != "" {
		q = q.Where(squirrel.Eq{"subject_id": filter.SubjectID})
	}
	if filter.Operation != "" {
		q = q.Where(squirrel.Eq{"operation": string(filter.Operation)})
	}
	if filter.Outcome != "" {
		q = q.Where(squirrel.Eq{"outcome": string(filter.Outcome)})
	}
	if filter.Token != "" {
		q = q.Where(squirrel.Eq{"token": filter.Token})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q.ToSql()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanAudit scans one row. id receives the driver-specific ID representation and is
// converted by the caller.
func scanAudit(row rowScanner, id any) (*accessDomain.AuditEntry, error) {
	var entry accessDomain.AuditEntry
	var operation, outcome string
	var level int
	var signingKeyID sql.NullString

	if err := row.Scan(
		id,
		&entry.Timestamp,
		&operation,
		&entry.SubjectID,
		&level,
		&entry.Purpose,
		&entry.Token,
		&outcome,
		&entry.Reason,
		&entry.Signature,
		&signingKeyID,
	); err != nil {
		return nil, apperrors.Wrap(err, "failed to scan audit entry")
	}

	entry.Operation = accessDomain.Operation(operation)
	entry.Outcome = accessDomain.Outcome(outcome)
	entry.Level = accessDomain.Level(level)
	if signingKeyID.Valid {
		entry.SigningKeyID = &signingKeyID.String
	}
	return &entry, nil
}
