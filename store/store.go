// Package store persists per-user action history and exposes it to the
// analysis pipeline.
package store

import (
	"context"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/nlp"
)

// Store provides database access to the action history.
type Store struct {
	profile *profile.Profile
	driver  Driver
	pre     *nlp.Preprocessor
}

// New creates a new instance of Store. Action text is normalized here so
// drivers only ever see canonical keys.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		profile: profile,
		driver:  driver,
		pre:     nlp.NewPreprocessor(false),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate creates the schema if needed.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// GetAverageTime returns the historical average duration for an action,
// floored to whole minutes. ok is false when the user and the global
// templates both miss.
func (s *Store) GetAverageTime(ctx context.Context, userID int64, action string) (int, bool, error) {
	return s.driver.GetAverageTime(ctx, userID, s.pre.NormalizeText(action))
}

// RecordAction folds one observed duration into the user's running
// average for the action.
func (s *Store) RecordAction(ctx context.Context, userID int64, action string, timeMinutes int) error {
	return s.driver.RecordAction(ctx, userID, s.pre.NormalizeText(action), timeMinutes)
}

// GetUserStats returns template and action counts for a user.
func (s *Store) GetUserStats(ctx context.Context, userID int64) (*UserStats, error) {
	return s.driver.GetUserStats(ctx, userID)
}
