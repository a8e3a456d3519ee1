package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

func TestDB_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, db.HealthCheck(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := db.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "health check failed")
	})

	t.Run("query fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))

		err := db.HealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query check failed")
	})
}

func TestDB_InitSchema(t *testing.T) {
	t.Run("runs every statement in one transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS monitoring_entries").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_monitoring_entries_event_type").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_monitoring_entries_timestamp").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, db.InitSchema(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("statement failure rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS monitoring_entries").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX").WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		err := db.InitSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize archive schema")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionManager_InTransaction(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("repository writes join the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO monitoring_entries").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO monitoring_entries").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context) error {
			if err := repo.Insert(ctx, &models.MonitoringEntry{ID: "a", EventType: "replay", Status: "initiated", Timestamp: ts}); err != nil {
				return err
			}
			return repo.Insert(ctx, &models.MonitoringEntry{ID: "b", EventType: "replay", Status: "initiated", Timestamp: ts})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call reuses the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.InTransaction(context.Background(), func(ctx context.Context) error {
			return tm.InTransaction(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("panic rolls back and re-panics", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = tm.InTransaction(context.Background(), func(context.Context) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := tm.InTransaction(context.Background(), func(context.Context) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestMonitoringArchiveRepository_Insert(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("with details", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO monitoring_entries").
			WithArgs("m1", "event_processed", "success", "Processed event e1 with 0 actions triggered", ts).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry := &models.MonitoringEntry{
			ID:        "m1",
			EventType: "event_processed",
			Status:    "success",
			Timestamp: ts,
			Details:   "Processed event e1 with 0 actions triggered",
		}
		require.NoError(t, repo.Insert(context.Background(), entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty details stored as NULL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO monitoring_entries").
			WithArgs("m2", "replay", "initiated", nil, ts).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry := &models.MonitoringEntry{ID: "m2", EventType: "replay", Status: "initiated", Timestamp: ts}
		require.NoError(t, repo.Insert(context.Background(), entry))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error is wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO monitoring_entries").WillReturnError(errors.New("disk full"))

		err := repo.Insert(context.Background(), &models.MonitoringEntry{ID: "m3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert monitoring entry")
	})
}

func TestMonitoringArchiveRepository_ListByEventType(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	columns := []string{"id", "event_type", "status", "details", "timestamp"}

	t.Run("filtered", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectQuery("WHERE event_type = \\$1").
			WithArgs("replay", 10, 0).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("m1", "replay", "initiated", "Replay initiated for event x", ts).
				AddRow("m2", "replay", "initiated", nil, ts.Add(time.Second)))

		entries, err := repo.ListByEventType(context.Background(), "replay", 10, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "Replay initiated for event x", entries[0].Details)
		assert.Empty(t, entries[1].Details)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unfiltered", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM monitoring_entries").
			WithArgs(5, 5).
			WillReturnRows(sqlmock.NewRows(columns).AddRow("m6", "event_processed", "success", nil, ts))

		entries, err := repo.ListByEventType(context.Background(), "", 5, 5)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "m6", entries[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMonitoringArchiveRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM monitoring_entries").WillReturnError(errors.New("timeout"))

		_, err := repo.ListByEventType(context.Background(), "", 5, 0)
		assert.Error(t, err)
	})
}
