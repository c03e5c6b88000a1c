// Package sqlite implements the history store driver on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the history database.
//
// Connection settings:
// - WAL journal mode prevents reader/writer locking issues.
// - busy_timeout gives writers a grace period instead of failing fast.
// - A single connection serializes writes, which is what makes the
//   read-modify-write in RecordAction safe without extra locking.
//
// Note: with the `modernc.org/sqlite` driver each pragma must be
// prefixed with `_pragma=`.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DatabaseURL == "" {
		return nil, errors.New("database url required")
	}

	sqliteDB, err := sql.Open("sqlite", profile.DatabaseURL+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with url: %s", profile.DatabaseURL)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the action_templates schema when missing.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			normalized_text TEXT NOT NULL,
			avg_time_minutes REAL NOT NULL,
			occurrences INTEGER NOT NULL DEFAULT 1,
			last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, normalized_text)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_action
			ON action_templates(user_id, normalized_text)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate action_templates")
		}
	}
	return nil
}
