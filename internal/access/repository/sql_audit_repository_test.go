package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
)

func TestBuildListAuditQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no filter", func(t *testing.T) {
		query, args, err := buildListAuditQuery(accessDomain.AuditFilter{}, squirrel.Dollar)
		require.NoError(t, err)
		assert.Contains(t, query, "FROM audit_entries")
		assert.Contains(t, query, "ORDER BY created_at ASC, id ASC")
		assert.NotContains(t, query, "WHERE")
		assert.Empty(t, args)
	})

	t.Run("postgres filters", func(t *testing.T) {
		query, args, err := buildListAuditQuery(accessDomain.AuditFilter{
			SubjectID: "alice",
			Outcome:   accessDomain.OutcomeDenied,
			From:      &from,
			Limit:     10,
			Offset:    20,
		}, squirrel.Dollar)
		require.NoError(t, err)
		assert.Contains(t, query, "WHERE subject_id = $1 AND outcome = $2 AND created_at >= $3")
		assert.Contains(t, query, "LIMIT 10 OFFSET 20")
		assert.Equal(t, []any{"alice", "denied", from}, args)
	})

	t.Run("mysql filters", func(t *testing.T) {
		query, args, err := buildListAuditQuery(accessDomain.AuditFilter{
			Operation: accessDomain.OpRevealCard,
			Token:     "tok_1",
		}, squirrel.Question)
		require.NoError(t, err)
		assert.Contains(t, query, "WHERE operation = ? AND token = ?")
		assert.Equal(t, []any{"reveal_card", "tok_1"}, args)
	})
}

func TestPostgreSQLAuditRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewPostgreSQLAuditRepository(db)
	entry := newAuditEntry("alice", accessDomain.OpStoreCard, accessDomain.OutcomeAllowed, time.Now().UTC())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).
		WithArgs(entry.ID, entry.Timestamp, "store_card", "alice", int(accessDomain.LevelElevated),
			"", "tok_alice", "allowed", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLAuditRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewPostgreSQLAuditRepository(db)
	entry := newAuditEntry("alice", accessDomain.OpRetrieveCard, accessDomain.OutcomeAllowed, time.Now().UTC())

	rows := sqlmock.NewRows(auditColumns).
		AddRow(entry.ID.String(), entry.Timestamp, "retrieve_card", "alice", 3, "", "tok_alice", "allowed", "", []byte{9}, "key-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at")).
		WithArgs("alice").
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), accessDomain.AuditFilter{SubjectID: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, accessDomain.OpRetrieveCard, entries[0].Operation)
	assert.Equal(t, accessDomain.LevelElevated, entries[0].Level)
	assert.True(t, entries[0].IsSigned())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLAuditRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewMySQLAuditRepository(db)
	entry := newAuditEntry("bob", accessDomain.OpDeleteCard, accessDomain.OutcomeDenied, time.Now().UTC())
	idBytes, err := entry.ID.MarshalBinary()
	require.NoError(t, err)

	t.Run("create stores binary id", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).
			WithArgs(idBytes, entry.Timestamp, "delete_card", "bob", int(accessDomain.LevelElevated),
				"", "tok_bob", "denied", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Create(context.Background(), entry))
	})

	t.Run("list decodes binary id", func(t *testing.T) {
		rows := sqlmock.NewRows(auditColumns).
			AddRow(idBytes, entry.Timestamp, "delete_card", "bob", 3, "", "tok_bob", "denied", "", nil, nil)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at")).WillReturnRows(rows)

		entries, err := repo.List(context.Background(), accessDomain.AuditFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ID, entries[0].ID)
		assert.False(t, entries[0].IsSigned())
	})

	t.Run("list error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at")).WillReturnError(errors.New("boom"))

		_, err := repo.List(context.Background(), accessDomain.AuditFilter{})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
