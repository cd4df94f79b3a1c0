package store

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const migrationTable = "schema_migrations"

// applyMigrations executes embedded *.sql files in name order, each at
// most once, recorded in a schema_migrations ledger. Idempotent DDL
// ("already exists", "duplicate column") is tolerated so a wiped ledger
// does not brick an existing database.
func applyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return goerr.Wrap(err, "failed to read migrations dir")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return goerr.Wrap(err, "failed to ensure migration table")
	}

	for _, file := range files {
		applied, err := isApplied(ctx, db, file)
		if err != nil {
			return goerr.Wrap(err, "failed to check migration", goerr.V("file", file))
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return goerr.Wrap(err, "failed to read migration", goerr.V("file", file))
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return goerr.Wrap(err, "failed to begin migration tx", goerr.V("file", file))
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			if !isAlreadyExists(err) {
				_ = tx.Rollback()
				return goerr.Wrap(err, "failed to apply migration", goerr.V("file", file))
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return goerr.Wrap(err, "failed to record migration", goerr.V("file", file))
		}

		if err := tx.Commit(); err != nil {
			return goerr.Wrap(err, "failed to commit migration", goerr.V("file", file))
		}
	}

	return nil
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}
