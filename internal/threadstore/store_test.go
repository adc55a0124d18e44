package threadstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureThreadUpsertsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WithArgs("t1", ptr("u1")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.EnsureThread(context.Background(), "t1", "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageRunsInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("insert into threads(id, user_id)")).
		WithArgs("t1", ptr("u1")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("insert into thread_messages")).
		WithArgs("t1", "user", []byte(`{"text":"hi"}`), ptr("u1")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("update threads set updated_at = now()")).
		WithArgs("t1", ptr("u1")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.InsertMessage(context.Background(), "t1", "user", map[string]any{"text": "hi"}, "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMessagesReturnsOwnerScopedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	rows := pgxmock.NewRows([]string{"id", "role", "content", "created_at"}).
		AddRow(int64(1), "user", []byte(`{"text":"hi"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("select tm.id, tm.role, tm.content, tm.created_at")).
		WithArgs("t1", ptr("u1")).
		WillReturnRows(rows)

	msgs, err := store.LoadMessages(context.Background(), "t1", "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content["text"])
}

func TestDeleteThreadReturnsErrNotFoundWhenOwnerMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectExec(regexp.QuoteMeta("select set_config('app.user_id', $1, true)")).
		WithArgs("attacker").
		WillReturnResult(pgxmock.NewResult("SELECT", 0))
	mock.ExpectExec(regexp.QuoteMeta("delete from threads")).
		WithArgs("t1", ptr("attacker")).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.DeleteThread(context.Background(), "t1", "attacker")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetThreadOwnerNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock)

	mock.ExpectQuery(regexp.QuoteMeta("select user_id from threads where id = $1")).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}))

	_, err = store.GetThreadOwner(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func ptr(s string) *string { return &s }
