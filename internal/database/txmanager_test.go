package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE vault_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		querier := GetTx(ctx, db)
		assert.IsType(t, &sql.Tx{}, querier)
		_, err := querier.ExecContext(ctx, "UPDATE vault_records SET updated_at = NOW()")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	fnErr := errors.New("boom")
	err = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		return fnErr
	})

	assert.Equal(t, fnErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackFailureKeepsCause(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	fnErr := errors.New("boom")
	err = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		return fnErr
	})

	assert.ErrorIs(t, err, fnErr)
	assert.ErrorContains(t, err, "failed to rollback transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		return nil
	})

	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_NestedCallJoinsOuter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM vault_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txManager := NewTxManager(db)
	err = txManager.WithTx(context.Background(), func(ctx context.Context) error {
		outer := GetTx(ctx, db)
		return txManager.WithTx(ctx, func(ctx context.Context) error {
			assert.True(t, InTx(ctx))
			assert.Same(t, outer, GetTx(ctx, db))
			_, err := GetTx(ctx, db).ExecContext(ctx, "DELETE FROM vault_records WHERE token = 'x'")
			return err
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	called := false
	err = NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.False(t, called)
}

func TestGetTx_WithoutTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Equal(t, db, GetTx(context.Background(), db))
	assert.False(t, InTx(context.Background()))
}

func TestNoopTxManager(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey{}, "marker")

	var seen context.Context
	err := NewNoopTxManager().WithTx(ctx, func(ctx context.Context) error {
		seen = ctx
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ctx, seen)

	fnErr := errors.New("boom")
	assert.Equal(t, fnErr, NewNoopTxManager().WithTx(ctx, func(context.Context) error { return fnErr }))
}
