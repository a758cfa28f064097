package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/existflow/irontrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestTimerState_RoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	data, err := database.LoadTimerState(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "nothing persisted yet")

	require.NoError(t, database.SaveTimerState(ctx, []byte(`{"isRunning":true}`)))
	require.NoError(t, database.SaveTimerState(ctx, []byte(`{"isRunning":false}`)))

	data, err = database.LoadTimerState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isRunning":false}`, string(data))
}

func TestTimerState_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveTimerState(ctx, []byte(`{"activeLogId":42}`)))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	data, err := second.LoadTimerState(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"activeLogId":42}`, string(data))
}

func TestLogCache_ReplaceReadInvalidate(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	projectID, taskID := int64(3), int64(9)

	_, ok, err := database.CachedLogs(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, database.CacheLogs(ctx, []model.TimeLog{
		{ID: 1, StartTime: start, EndTime: &end, ProjectID: &projectID, TaskID: &taskID, DurationSeconds: 5400, ClosedReason: model.ClosedFinalized},
		{ID: 2, StartTime: end},
	}))

	logs, ok, err := database.CachedLogs(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(2), logs[0].ID, "newest first")
	assert.Nil(t, logs[0].EndTime)
	require.NotNil(t, logs[1].ProjectID)
	assert.Equal(t, int64(3), *logs[1].ProjectID)
	assert.True(t, logs[1].EndTime.Equal(end))

	require.NoError(t, database.InvalidateLogs(ctx))
	_, ok, err = database.CachedLogs(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogCache_OrdersFractionalSeconds(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	whole := time.Date(2026, 3, 1, 9, 0, 5, 0, time.UTC)
	half := whole.Add(500 * time.Millisecond)

	require.NoError(t, database.CacheLogs(ctx, []model.TimeLog{
		{ID: 1, StartTime: half},
		{ID: 2, StartTime: whole},
	}))

	logs, ok, err := database.CachedLogs(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(1), logs[0].ID, "09:00:05.5 is newer than 09:00:05")
	assert.True(t, logs[0].StartTime.Equal(half))
	assert.True(t, logs[1].StartTime.Equal(whole))
}
