package store

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// InMemoryDriver keeps history in a map of ActionTemplate rows. It backs
// tests and local runs without a database file.
type InMemoryDriver struct {
	mu   sync.Mutex
	data map[templateKey]*ActionTemplate
}

type templateKey struct {
	userID int64
	text   string
}

func NewInMemoryDriver() *InMemoryDriver {
	return &InMemoryDriver{data: make(map[templateKey]*ActionTemplate)}
}

func (d *InMemoryDriver) GetDB() *sql.DB { return nil }

func (d *InMemoryDriver) Close() error { return nil }

func (d *InMemoryDriver) Migrate(_ context.Context) error { return nil }

func (d *InMemoryDriver) GetAverageTime(_ context.Context, userID int64, normalizedText string) (int, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if tpl, ok := d.data[templateKey{userID, normalizedText}]; ok {
		return int(tpl.AvgTimeMinutes), true, nil
	}
	if tpl, ok := d.data[templateKey{GlobalUserID, normalizedText}]; ok {
		return int(tpl.AvgTimeMinutes), true, nil
	}
	return 0, false, nil
}

func (d *InMemoryDriver) RecordAction(_ context.Context, userID int64, normalizedText string, timeMinutes int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := templateKey{userID, normalizedText}
	if tpl, ok := d.data[key]; ok {
		tpl.AvgTimeMinutes = (tpl.AvgTimeMinutes*float64(tpl.Occurrences) + float64(timeMinutes)) / float64(tpl.Occurrences+1)
		tpl.Occurrences++
		tpl.LastSeen = time.Now()
		return nil
	}
	d.data[key] = &ActionTemplate{
		ID:             int64(len(d.data) + 1),
		UserID:         userID,
		NormalizedText: normalizedText,
		AvgTimeMinutes: float64(timeMinutes),
		Occurrences:    1,
		LastSeen:       time.Now(),
	}
	return nil
}

func (d *InMemoryDriver) GetUserStats(_ context.Context, userID int64) (*UserStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := &UserStats{UserID: userID}
	for key, tpl := range d.data {
		if key.userID == userID {
			stats.TotalTemplates++
			stats.TotalActions += tpl.Occurrences
		}
	}
	return stats, nil
}
