package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManagerCommitRunsCommitHooks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE employees").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var events []string
	err := NewTxManager(db).Do(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		require.NotNil(t, uow.Exec())
		uow.OnCommit(func(context.Context) { events = append(events, "commit") })
		uow.OnRollback(func(context.Context) { events = append(events, "rollback") })
		_, err := uow.Exec().ExecContext(ctx, "UPDATE employees SET phone = $1 WHERE id = $2", "017", 1)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"commit"}, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerRollbackRunsHooksNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("spouse cap exceeded")
	var events []string
	err := NewTxManager(db).Do(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
		uow.OnRollback(func(context.Context) { events = append(events, "first") })
		uow.OnRollback(func(context.Context) { events = append(events, "second") })
		uow.OnCommit(func(context.Context) { events = append(events, "commit") })
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerRollsBackOnPanic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	rolledBack := false
	assert.Panics(t, func() {
		_ = NewTxManager(db).Do(context.Background(), func(ctx context.Context, uow *UnitOfWork) error {
			uow.OnRollback(func(context.Context) { rolledBack = true })
			panic("unexpected")
		})
	})
	assert.True(t, rolledBack)
	assert.NoError(t, mock.ExpectationsWereMet())
}
