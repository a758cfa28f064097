package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/existflow/irontrack/internal/model"
)

// cacheTimeLayout is fixed width so stored instants sort lexically in time order
const cacheTimeLayout = "2006-01-02T15:04:05.000000000Z"

// CacheLogs replaces the cached log listing with logs
func (db *DB) CacheLogs(ctx context.Context, logs []model.TimeLog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM log_cache`); err != nil {
		return fmt.Errorf("clearing log cache: %w", err)
	}

	fetchedAt := formatCacheTime(time.Now())
	for _, l := range logs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO log_cache (id, start_time, end_time, project_id, task_id,
				description, duration_seconds, closed_reason, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID,
			formatCacheTime(l.StartTime),
			nullableTime(l.EndTime),
			nullableInt(l.ProjectID),
			nullableInt(l.TaskID),
			l.Description,
			l.DurationSeconds,
			l.ClosedReason,
			fetchedAt,
		)
		if err != nil {
			return fmt.Errorf("caching log %d: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing log cache: %w", err)
	}
	return nil
}

// CachedLogs returns the cached listing, newest first. ok is false when the
// cache is empty or was invalidated.
func (db *DB) CachedLogs(ctx context.Context) (logs []model.TimeLog, ok bool, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, start_time, end_time, project_id, task_id, description, duration_seconds, closed_reason
		FROM log_cache ORDER BY start_time DESC, id DESC`)
	if err != nil {
		return nil, false, fmt.Errorf("reading log cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l                 model.TimeLog
			start             string
			end               sql.NullString
			projectID, taskID sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &start, &end, &projectID, &taskID, &l.Description, &l.DurationSeconds, &l.ClosedReason); err != nil {
			return nil, false, fmt.Errorf("scanning cached log: %w", err)
		}
		l.StartTime, err = parseCacheTime(start)
		if err != nil {
			return nil, false, fmt.Errorf("parsing cached start time: %w", err)
		}
		l.EndTime = parseNullableTime(end)
		if projectID.Valid {
			l.ProjectID = &projectID.Int64
		}
		if taskID.Valid {
			l.TaskID = &taskID.Int64
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return logs, len(logs) > 0, nil
}

// InvalidateLogs drops the cached listing so the next read refetches
func (db *DB) InvalidateLogs(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM log_cache`); err != nil {
		return fmt.Errorf("invalidating log cache: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatCacheTime(*t)
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := parseCacheTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatCacheTime(t time.Time) string {
	return t.UTC().Format(cacheTimeLayout)
}

func parseCacheTime(s string) (time.Time, error) {
	return time.Parse(cacheTimeLayout, s)
}
