package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Change records: one row per recorded file mutation
CREATE TABLE IF NOT EXISTS changes (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    ts INTEGER NOT NULL,
    file_path TEXT NOT NULL,
    abs_path TEXT,
    language TEXT,
    kind TEXT NOT NULL,
    diff TEXT,
    lines_added INTEGER DEFAULT 0,
    lines_deleted INTEGER DEFAULT 0,
    line_count INTEGER DEFAULT 0,
    content_before TEXT,
    content_after TEXT,
    symbols TEXT,
    imports TEXT,
    git_branch TEXT,
    git_commit TEXT,
    git_author TEXT,
    embedding_id TEXT,
    summary TEXT,
    search_text TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_changes_workspace_ts ON changes(workspace_id, ts);
CREATE INDEX IF NOT EXISTS idx_changes_ts ON changes(ts);
CREATE INDEX IF NOT EXISTS idx_changes_file ON changes(workspace_id, file_path);
CREATE INDEX IF NOT EXISTS idx_changes_kind ON changes(kind);
CREATE INDEX IF NOT EXISTS idx_changes_embedding ON changes(embedding_id);

-- Full-text search over change records
CREATE VIRTUAL TABLE IF NOT EXISTS changes_fts USING fts5(
    file_path, symbols, summary, search_text,
    content='changes'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS changes_ai AFTER INSERT ON changes BEGIN
    INSERT INTO changes_fts(rowid, file_path, symbols, summary, search_text)
    VALUES (new.rowid, new.file_path, new.symbols, new.summary, new.search_text);
END;

CREATE TRIGGER IF NOT EXISTS changes_ad AFTER DELETE ON changes BEGIN
    INSERT INTO changes_fts(changes_fts, rowid, file_path, symbols, summary, search_text)
    VALUES ('delete', old.rowid, old.file_path, old.symbols, old.summary, old.search_text);
END;

CREATE TRIGGER IF NOT EXISTS changes_au AFTER UPDATE ON changes BEGIN
    INSERT INTO changes_fts(changes_fts, rowid, file_path, symbols, summary, search_text)
    VALUES ('delete', old.rowid, old.file_path, old.symbols, old.summary, old.search_text);
    INSERT INTO changes_fts(rowid, file_path, symbols, summary, search_text)
    VALUES (new.rowid, new.file_path, new.symbols, new.summary, new.search_text);
END;

-- Embeddings table
CREATE TABLE IF NOT EXISTS change_embeddings (
    id TEXT PRIMARY KEY,
    change_id TEXT NOT NULL UNIQUE,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (change_id) REFERENCES changes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_change_embeddings_change ON change_embeddings(change_id);
CREATE INDEX IF NOT EXISTS idx_change_embeddings_provider ON change_embeddings(provider, model);
`

const migrationV1Down = `
-- Drop all tables in reverse order of dependencies
DROP TRIGGER IF EXISTS changes_au;
DROP TRIGGER IF EXISTS changes_ad;
DROP TRIGGER IF EXISTS changes_ai;

DROP TABLE IF EXISTS change_embeddings;
DROP TABLE IF EXISTS changes_fts;
DROP TABLE IF EXISTS changes;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	var currentVersion string
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("no migrations to rollback: %w", err)
	}

	var migration *Migration
	for i := range AllMigrations {
		if AllMigrations[i].Version == currentVersion {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", currentVersion)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", currentVersion, err)
	}

	_, err = db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", currentVersion)
	if err != nil {
		return fmt.Errorf("failed to unrecord migration %s: %w", currentVersion, err)
	}

	return nil
}
