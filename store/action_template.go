package store

import "time"

// GlobalUserID owns the shared action templates that back off lookups
// for users with no history of their own.
const GlobalUserID int64 = 0

// ActionTemplate is one row of accumulated duration history for a
// normalized action text.
type ActionTemplate struct {
	ID             int64
	UserID         int64
	NormalizedText string
	AvgTimeMinutes float64
	Occurrences    int64
	LastSeen       time.Time
}

// UserStats summarizes a user's recorded history.
type UserStats struct {
	UserID         int64 `json:"user_id"`
	TotalTemplates int64 `json:"total_templates"`
	TotalActions   int64 `json:"total_actions"`
}
