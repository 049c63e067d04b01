package sqlstore

import (
	"context"
	"encoding/json"
	"io/fs"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/storage"
)

var cols = []string{"id", "queue", "subject", "status", "timeStart", "timeEnd", "requestBody", "responseBody"}

func newMock(t *testing.T, d Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewWithDB(db, d, time.Second), mock
}

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRebind(t *testing.T) {
	q := `UPDATE message SET status = ? WHERE id = ? AND status = ?`
	assert.Equal(t, `UPDATE message SET status = $1 WHERE id = $2 AND status = $3`, DialectPostgres.rebind(q))
	assert.Equal(t, q, DialectMySQL.rebind(q))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)
	d, err = ParseDialect("mysql")
	require.NoError(t, err)
	assert.Equal(t, DialectMySQL, d)
	_, err = ParseDialect("sqlite")
	assert.Error(t, err)
}

func TestInsertPostgresReturnsID(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO message (queue, subject, status, timeStart, requestBody) VALUES ($1, $2, $3, $4, $5) RETURNING id`)).
		WithArgs("builds", "build-1", 1, start, `{"ref":"main"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	msgID, err := s.Insert(context.Background(), storage.Draft{
		Queue: "builds", Subject: "build-1", TimeStart: start, RequestBody: json.RawMessage(`{"ref":"main"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), msgID)
}

func TestInsertMySQLUsesLastInsertID(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO message (queue, subject, status, timeStart, requestBody) VALUES (?, ?, ?, ?, ?)`)).
		WithArgs("builds", "build-1", 1, start, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))

	msgID, err := s.Insert(context.Background(), storage.Draft{Queue: "builds", Subject: "build-1", TimeStart: start})
	require.NoError(t, err)
	assert.Equal(t, int64(11), msgID)
}

func TestGetMapsRows(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	end := start.Add(time.Minute)
	mock.ExpectQuery(`SELECT .+ FROM message WHERE id = \?`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "builds", "build-1", 3, start, end, `{"ref":"main"}`, `{"ok":true}`))

	m, err := s.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, message.StatusCompleted, m.Status)
	require.NotNil(t, m.TimeEnd)
	assert.True(t, end.Equal(*m.TimeEnd))
	assert.JSONEq(t, `{"ok":true}`, string(m.ResponseBody))
}

func TestGetNotFound(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)
	mock.ExpectQuery(`SELECT .+ FROM message WHERE id = \$1`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := s.Get(context.Background(), 99)
	assert.ErrorIs(t, err, message.ErrNotFound)
}

func TestGetUnknownStatusIsCorrupt(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	mock.ExpectQuery(`SELECT .+ FROM message WHERE id = \?`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(4, "builds", "x", 9, start, nil, nil, nil))

	_, err := s.Get(context.Background(), 4)
	assert.ErrorIs(t, err, message.ErrCorruptState)
}

func TestListWithStatus(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM message WHERE queue = $1 AND status = $2 ORDER BY id`)).
		WithArgs("builds", 1).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "builds", "a", 1, start, nil, nil, nil).
			AddRow(2, "builds", "b", 1, start, nil, `{"n":2}`, nil))

	pending := message.StatusPending
	list, err := s.List(context.Background(), "builds", &pending)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[1].Subject)
	assert.Nil(t, list[0].RequestBody)
	assert.JSONEq(t, `{"n":2}`, string(list[1].RequestBody))
}

func TestListEmptyIsNotNil(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM message WHERE queue = ? ORDER BY id`)).
		WithArgs("builds").
		WillReturnRows(sqlmock.NewRows(cols))

	list, err := s.List(context.Background(), "builds", nil)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestResolveFeedbackIsConditional(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)
	end := start.Add(time.Minute)
	update := regexp.QuoteMeta(`UPDATE message SET status = $1, timeEnd = $2, responseBody = $3 WHERE id = $4 AND status = $5`)

	mock.ExpectExec(update).
		WithArgs(3, end, `{"ok":true}`, 5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs(4, end, nil, 5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.Resolve(context.Background(), 5, storage.Resolution{
		Status: message.StatusCompleted, TimeEnd: &end, ResponseBody: json.RawMessage(`{"ok":true}`),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Resolve(context.Background(), 5, storage.Resolution{Status: message.StatusFailed, TimeEnd: &end})
	require.NoError(t, err)
	assert.False(t, ok, "second writer must lose the compare-and-swap")
}

func TestResolveCancelLeavesEndUntouched(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE message SET status = ? WHERE id = ? AND status = ?`)).
		WithArgs(2, 8, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.Resolve(context.Background(), 8, storage.Resolution{Status: message.StatusCancelled})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM message WHERE id = ?`)).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM message WHERE id = ?`)).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertExclusivePostgres(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)
	lock := subjectLockName("builds", "build-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(lock).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM message WHERE queue = \$1 AND subject = \$2 AND status = \$3`).
		WithArgs("builds", "build-1", 1).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(`INSERT INTO message .+ RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectCommit()

	msgID, err := s.InsertExclusive(context.Background(), storage.Draft{Queue: "builds", Subject: "build-1", TimeStart: start})
	require.NoError(t, err)
	assert.Equal(t, int64(21), msgID)
}

func TestInsertExclusivePostgresDuplicate(t *testing.T) {
	s, mock := newMock(t, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM message WHERE queue = \$1 AND subject = \$2 AND status = \$3`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(20, "builds", "build-1", 1, start, nil, nil, nil))
	mock.ExpectRollback()

	_, err := s.InsertExclusive(context.Background(), storage.Draft{Queue: "builds", Subject: "build-1", TimeStart: start})
	assert.ErrorIs(t, err, message.ErrAlreadyScheduled)
}

func TestInsertExclusiveMySQL(t *testing.T) {
	s, mock := newMock(t, DialectMySQL)
	lock := subjectLockName("builds", "build-1")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT GET_LOCK(?, ?)`)).
		WithArgs(lock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))
	mock.ExpectQuery(`FROM message WHERE queue = \? AND subject = \? AND status = \?`).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectExec(`INSERT INTO message`).
		WillReturnResult(sqlmock.NewResult(30, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT RELEASE_LOCK(?)`)).
		WithArgs(lock).
		WillReturnResult(sqlmock.NewResult(0, 0))

	msgID, err := s.InsertExclusive(context.Background(), storage.Draft{Queue: "builds", Subject: "build-1", TimeStart: start})
	require.NoError(t, err)
	assert.Equal(t, int64(30), msgID)
}

func TestMigrationsEmbedded(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectMySQL} {
		fsys, err := MigrationsFS(d)
		require.NoError(t, err)
		b, err := fs.ReadFile(fsys, "00001_create_message.sql")
		require.NoError(t, err, d)
		assert.Contains(t, string(b), "-- +goose Up")
	}
}
