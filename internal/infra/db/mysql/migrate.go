package mysql

import (
	"context"
	"database/sql"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		report_hash CHAR(64)     NOT NULL,
		created_at  TIMESTAMP    NOT NULL,
		UNIQUE KEY uniq_name_hash (name, report_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS findings (
		id                VARCHAR(64)  NOT NULL PRIMARY KEY,
		project_id        VARCHAR(64)  NOT NULL,
		position          INT          NOT NULL,
		scanner           VARCHAR(32)  NOT NULL,
		title             VARCHAR(255) NOT NULL,
		level             VARCHAR(16)  NOT NULL,
		description       TEXT,
		location          TEXT,
		analysis          MEDIUMTEXT,
		poc               MEDIUMTEXT,
		enrichment_status VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
		enrichment_error  TEXT,
		KEY idx_findings_project (project_id),
		CONSTRAINT fk_findings_project FOREIGN KEY (project_id) REFERENCES projects (id)
	)`,
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
