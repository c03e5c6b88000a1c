package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/diarysense/store"
)

// GetAverageTime prefers the user's own template over the global one and
// floors the stored average to whole minutes.
func (d *DB) GetAverageTime(ctx context.Context, userID int64, normalizedText string) (int, bool, error) {
	var avg float64
	err := d.db.QueryRowContext(ctx, `
		SELECT avg_time_minutes
		FROM action_templates
		WHERE (user_id = ? OR user_id = ?)
		  AND normalized_text = ?
		ORDER BY user_id DESC
		LIMIT 1`,
		userID, store.GlobalUserID, normalizedText,
	).Scan(&avg)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to get average time")
	}
	return int(avg), true, nil
}

// RecordAction updates the running mean inside a transaction. The single
// connection pool serializes concurrent writers, so the read-modify-write
// cannot interleave.
func (d *DB) RecordAction(ctx context.Context, userID int64, normalizedText string, timeMinutes int) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	tpl := store.ActionTemplate{UserID: userID, NormalizedText: normalizedText}
	err = tx.QueryRowContext(ctx, `
		SELECT id, avg_time_minutes, occurrences
		FROM action_templates
		WHERE user_id = ? AND normalized_text = ?`,
		userID, normalizedText,
	).Scan(&tpl.ID, &tpl.AvgTimeMinutes, &tpl.Occurrences)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO action_templates (user_id, normalized_text, avg_time_minutes, occurrences)
			VALUES (?, ?, ?, 1)`,
			userID, normalizedText, float64(timeMinutes),
		)
		if err != nil {
			return errors.Wrap(err, "failed to insert action template")
		}
	case err != nil:
		return errors.Wrap(err, "failed to read action template")
	default:
		newAvg := (tpl.AvgTimeMinutes*float64(tpl.Occurrences) + float64(timeMinutes)) / float64(tpl.Occurrences+1)
		_, err = tx.ExecContext(ctx, `
			UPDATE action_templates
			SET avg_time_minutes = ?,
			    occurrences = ?,
			    last_seen = CURRENT_TIMESTAMP
			WHERE id = ?`,
			newAvg, tpl.Occurrences+1, tpl.ID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to update action template")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit action template")
}

// GetUserStats counts the user's templates and total recorded actions.
func (d *DB) GetUserStats(ctx context.Context, userID int64) (*store.UserStats, error) {
	stats := &store.UserStats{UserID: userID}
	var totalActions sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(occurrences)
		FROM action_templates
		WHERE user_id = ?`,
		userID,
	).Scan(&stats.TotalTemplates, &totalActions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user stats")
	}
	stats.TotalActions = totalActions.Int64
	return stats, nil
}
