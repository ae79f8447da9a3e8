package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnResult(sqlmock.NewResult(0, 0))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_logs").WillReturnError(errors.New("table creation failed"))

		logger, err := NewDBLogger(db)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "failed to ensure audit_logs table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLogger_Record(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		entry := NewEntry("admin", ActionPluginRejected, "acme.widget", "incomplete")

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(entry.ID, sqlmock.AnyArg(), "admin", "plugin.rejected", "acme.widget", "incomplete").
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, logger.Record(context.Background(), entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

		err := logger.Record(context.Background(), NewEntry("admin", ActionPluginEdited, "x.y", ""))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit log")
	})
}

func TestDBLogger_List(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	logger := &DBLogger{db: db}
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "timestamp", "actor", "action", "target", "reason"}).
		AddRow("a1", ts, "admin", "plugin.rejected", "acme.widget", "incomplete").
		AddRow("a2", ts.Add(time.Second), "admin", "plugin.rejected", "acme.gadget", nil)

	mock.ExpectQuery(`SELECT id, timestamp, actor, action, target, reason FROM audit_logs WHERE action = \$1 ORDER BY timestamp ASC, id ASC LIMIT \$2`).
		WithArgs("plugin.rejected", 10).
		WillReturnRows(rows)

	entries, err := logger.List(context.Background(), Filter{Action: ActionPluginRejected, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "incomplete", entries[0].Reason)
	assert.Equal(t, "", entries[1].Reason)
	assert.Equal(t, ActionPluginRejected, entries[1].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildListQuery(Filter{Actor: "admin", Target: "x.y", Since: &since})

	assert.Contains(t, query, "WHERE actor = $1 AND target = $2 AND timestamp >= $3")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []interface{}{"admin", "x.y", since}, args)
}
