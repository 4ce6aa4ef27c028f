// Package sqlite provides SQLite-backed blog storage.
//
// Two database files back the service: the event journal (plus snapshots) on
// the write side, and the posts view (plus projection cursors) on the read
// side. Keeping them separate lets the projector run in its own process
// without contending on the journal's write lock.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/storage/sqlite/migrations"
	"github.com/postfold/postfold/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store persists blog state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// OpenEvents opens the event journal store and applies embedded migrations.
func OpenEvents(path string) (*Store, error) {
	return open(path, migrations.EventsFS, "events")
}

// OpenViews opens the read-model store and applies embedded migrations.
func OpenViews(path string) (*Store, error) {
	return open(path, migrations.ViewsFS, "views")
}

func open(path string, migrationFS fs.FS, migrationRoot string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrationFS, migrationRoot); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Only uniqueness violations signal a lost append race. Other constraint
	// failures (NOT NULL, CHECK) are plain errors and must not be retried.
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}
