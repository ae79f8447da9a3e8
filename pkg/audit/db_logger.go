package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBLogger implements audit logging to a SQL database (PostgreSQL or SQLite)
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{
		db: db,
	}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}

	return logger, nil
}

// ensureTable creates the audit_logs table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(32) PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		actor VARCHAR(64) NOT NULL,
		action VARCHAR(64) NOT NULL,
		target VARCHAR(128) NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs(target);
	`

	_, err := l.db.Exec(query)
	return err
}

// Record implements Logger
func (l *DBLogger) Record(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_logs (id, timestamp, actor, action, target, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, entry.Actor, string(entry.Action), entry.Target, nullString(entry.Reason),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// List implements Logger
func (l *DBLogger) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	query, args := buildListQuery(filter)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry  Entry
			action string
			reason sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Actor, &action, &entry.Target, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.Action = Action(action)
		entry.Reason = reason.String
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return entries, nil
}

// buildListQuery renders the filter as a parameterized SELECT
func buildListQuery(filter Filter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Actor != "" {
		add("actor = $%d", filter.Actor)
	}
	if filter.Action != "" {
		add("action = $%d", string(filter.Action))
	}
	if filter.Target != "" {
		add("target = $%d", filter.Target)
	}
	if filter.Since != nil {
		add("timestamp >= $%d", *filter.Since)
	}
	if filter.Until != nil {
		add("timestamp <= $%d", *filter.Until)
	}

	query := "SELECT id, timestamp, actor, action, target, reason FROM audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return query, args
}

// Close is a no-op; the caller owns the database handle
func (l *DBLogger) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
