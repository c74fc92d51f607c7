package postgres

import (
	"context"
	"database/sql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		report_hash CHAR(64)     NOT NULL,
		created_at  TIMESTAMPTZ  NOT NULL,
		UNIQUE (name, report_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		id                VARCHAR(64)  NOT NULL PRIMARY KEY,
		project_id        VARCHAR(64)  NOT NULL REFERENCES projects (id),
		position          INTEGER      NOT NULL,
		scanner           VARCHAR(32)  NOT NULL,
		title             VARCHAR(255) NOT NULL,
		level             VARCHAR(16)  NOT NULL,
		description       TEXT,
		location          TEXT,
		analysis          TEXT,
		poc               TEXT,
		enrichment_status VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
		enrichment_error  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_findings_project ON findings (project_id)`,
}

// Migrate creates the two tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range migrations {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
