package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/store"
)

func newTestDriver(t *testing.T) store.Driver {
	t.Helper()

	p := &profile.Profile{
		DatabaseURL: filepath.Join(t.TempDir(), "diarysense_test.db"),
	}
	driver, err := NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := newTestDriver(t)
	require.NoError(t, d.Migrate(context.Background()))
}

func TestRecordAndGetAverageTime(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	_, ok, err := d.GetAverageTime(ctx, 1, "читал книгу")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.RecordAction(ctx, 1, "читал книгу", 30))
	require.NoError(t, d.RecordAction(ctx, 1, "читал книгу", 60))

	minutes, ok, err := d.GetAverageTime(ctx, 1, "читал книгу")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 45, minutes)
}

func TestGlobalTemplateFallback(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.RecordAction(ctx, store.GlobalUserID, "бегал", 20))
	require.NoError(t, d.RecordAction(ctx, 1, "бегал", 50))

	// The user's own template wins over the global one.
	minutes, ok, err := d.GetAverageTime(ctx, 1, "бегал")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50, minutes)

	// Users without their own template fall back to the global one.
	minutes, ok, err = d.GetAverageTime(ctx, 2, "бегал")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, minutes)
}

func TestGetUserStats(t *testing.T) {
	d := newTestDriver(t)
	ctx := context.Background()

	stats, err := d.GetUserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalTemplates)
	assert.Equal(t, int64(0), stats.TotalActions)

	require.NoError(t, d.RecordAction(ctx, 1, "читал книгу", 30))
	require.NoError(t, d.RecordAction(ctx, 1, "читал книгу", 45))
	require.NoError(t, d.RecordAction(ctx, 1, "бегал", 20))

	stats, err = d.GetUserStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalTemplates)
	assert.Equal(t, int64(3), stats.TotalActions)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	p := &profile.Profile{
		DatabaseURL: filepath.Join(t.TempDir(), "diarysense_test.db"),
	}

	d, err := NewDB(p)
	require.NoError(t, err)
	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, d.RecordAction(ctx, 1, "читал книгу", 30))
	require.NoError(t, d.Close())

	d, err = NewDB(p)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	minutes, ok, err := d.GetAverageTime(ctx, 1, "читал книгу")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, minutes)
}
