package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaStatements returns the DDL for d, one statement per entry.
func schemaStatements(d dialect) []string {
	ts := d.timestampType
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			parent_id TEXT,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			created_at {{ts}} NOT NULL,
			FOREIGN KEY(parent_id) REFERENCES folders(id)
		)`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT,
			folder_id TEXT,
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			favorite BOOLEAN NOT NULL DEFAULT FALSE,
			summary TEXT NOT NULL DEFAULT '',
			sentiment TEXT NOT NULL DEFAULT '',
			analyzed_at {{ts}},
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL,
			deleted_at {{ts}},
			FOREIGN KEY(folder_id) REFERENCES folders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_folder ON bookmarks(folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_user_url ON bookmarks(user_id, url)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id)`,
		`CREATE TABLE IF NOT EXISTS playbooks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			price_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'draft',
			items TEXT NOT NULL DEFAULT '[]',
			likes INTEGER NOT NULL DEFAULT 0,
			acquisitions INTEGER NOT NULL DEFAULT 0,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			playbook_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at {{ts}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_playbook ON comments(playbook_id)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at {{ts}} NOT NULL,
			delivered_at {{ts}}
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id TEXT PRIMARY KEY,
			playbook_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			price_cents BIGINT NOT NULL DEFAULT 0,
			created_at {{ts}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id, playbook_id)`,
	}
	for i, stmt := range stmts {
		stmts[i] = strings.ReplaceAll(stmt, "{{ts}}", ts)
	}
	return stmts
}

// columnMigration is a column added after the first schema release.
type columnMigration struct {
	table      string
	column     string
	definition string
}

func columnMigrations(d dialect) []columnMigration {
	return []columnMigration{
		{"bookmarks", "icon", "TEXT"},
		{"bookmarks", "favorite", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{"bookmarks", "summary", "TEXT NOT NULL DEFAULT ''"},
		{"bookmarks", "sentiment", "TEXT NOT NULL DEFAULT ''"},
		{"bookmarks", "analyzed_at", d.timestampType},
		{"bookmarks", "deleted_at", d.timestampType},
		{"folders", "color", "TEXT NOT NULL DEFAULT ''"},
		{"folders", "icon", "TEXT NOT NULL DEFAULT ''"},
	}
}

func initSchema(ctx context.Context, db *sql.DB, d dialect) error {
	for _, stmt := range schemaStatements(d) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	for _, m := range columnMigrations(d) {
		if err := addColumn(ctx, db, d, m); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func addColumn(ctx context.Context, db *sql.DB, d dialect, m columnMigration) error {
	if d.numbered {
		_, err := db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s`, m.table, m.column, m.definition))
		return err
	}

	// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN,
	// so we check if the column exists first
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		_, err = db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, m.table, m.column, m.definition))
		return err
	}
	return nil
}
