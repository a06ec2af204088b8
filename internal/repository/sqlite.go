package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteRepository opens (or creates) the SQLite database at dbPath and
// applies the schema.
func NewSQLiteRepository(ctx context.Context, dbPath string) (Repository, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := initSchema(ctx, db, sqliteDialect); err != nil {
		db.Close()
		return nil, err
	}

	return newSQLRepository(db, sqliteDialect), nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}
