package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
)

// MonitoringArchiveRepository implements the repositories.MonitoringArchive interface
type MonitoringArchiveRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMonitoringArchiveRepository creates a new monitoring archive repository
func NewMonitoringArchiveRepository(db *DB, logger *zap.Logger) repositories.MonitoringArchive {
	return &MonitoringArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists one monitoring entry. Re-archiving the same id is a no-op
func (r *MonitoringArchiveRepository) Insert(ctx context.Context, entry *models.MonitoringEntry) error {
	query := `
		INSERT INTO monitoring_entries (id, event_type, status, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	var details sql.NullString
	if entry.Details != "" {
		details = sql.NullString{String: entry.Details, Valid: true}
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.EventType,
		entry.Status,
		details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert monitoring entry: %w", err)
	}

	r.logger.Debug("monitoring entry archived",
		zap.String("id", entry.ID),
		zap.String("event_type", entry.EventType))
	return nil
}

// ListByEventType retrieves archived entries oldest first with pagination
func (r *MonitoringArchiveRepository) ListByEventType(ctx context.Context, eventType string, limit, offset int) ([]*models.MonitoringEntry, error) {
	if eventType == "" {
		query := `
			SELECT id, event_type, status, details, timestamp
			FROM monitoring_entries
			ORDER BY timestamp ASC, archived_at ASC
			LIMIT $1 OFFSET $2
		`
		return r.queryEntries(ctx, query, limit, offset)
	}

	query := `
		SELECT id, event_type, status, details, timestamp
		FROM monitoring_entries
		WHERE event_type = $1
		ORDER BY timestamp ASC, archived_at ASC
		LIMIT $2 OFFSET $3
	`
	return r.queryEntries(ctx, query, eventType, limit, offset)
}

func (r *MonitoringArchiveRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.MonitoringEntry, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitoring entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MonitoringEntry
	for rows.Next() {
		entry := &models.MonitoringEntry{}
		var details sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.Status,
			&details,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan monitoring entry: %w", err)
		}
		entry.Details = details.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitoring entry rows: %w", err)
	}

	return entries, nil
}
