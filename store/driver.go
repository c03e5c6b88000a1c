package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema when it does not exist yet.
	Migrate(ctx context.Context) error

	// GetAverageTime resolves the stored average duration for a
	// normalized action, preferring the user's own template over the
	// global one. ok is false when neither exists.
	GetAverageTime(ctx context.Context, userID int64, normalizedText string) (minutes int, ok bool, err error)

	// RecordAction folds one observation into the user's template,
	// creating it on first sight.
	RecordAction(ctx context.Context, userID int64, normalizedText string, timeMinutes int) error

	// GetUserStats counts a user's templates and recorded actions.
	GetUserStats(ctx context.Context, userID int64) (*UserStats, error)
}
