package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

func schemaStatements(d Dialect) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(64) PRIMARY KEY,
			` + d.SeqColumn + `
			password_hash TEXT NOT NULL,
			role VARCHAR(32) NOT NULL,
			active BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS plugins (
			id VARCHAR(64) PRIMARY KEY,
			` + d.SeqColumn + `
			name VARCHAR(120) NOT NULL,
			compatibility VARCHAR(120) NOT NULL,
			owner VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			orphaned BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_plugins_owner ON plugins(owner)`,
		`CREATE TABLE IF NOT EXISTS plugin_versions (
			plugin_id VARCHAR(64) NOT NULL REFERENCES plugins(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			version VARCHAR(64) NOT NULL,
			package_url TEXT NOT NULL,
			sha256 VARCHAR(64) NOT NULL,
			signature TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (plugin_id, position)
		)`,
	}
}

// Migrate creates the portal tables if they do not exist
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range schemaStatements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
