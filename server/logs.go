package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/labstack/echo/v4"
)

// errInvalidCategory is returned when a finalize names a task that cannot
// take time: missing, outside the project, or done.
type errInvalidCategory struct {
	reason string
}

func (e *errInvalidCategory) Error() string {
	return e.reason
}

const logColumns = `id, user_id, start_time, end_time, project_id, task_id, description, duration_seconds, closed_reason`

func scanLog(row interface{ Scan(...any) error }) (*model.TimeLog, error) {
	var (
		l         model.TimeLog
		start     string
		end       sql.NullString
		projectID sql.NullInt64
		taskID    sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.UserID, &start, &end, &projectID, &taskID,
		&l.Description, &l.DurationSeconds, &l.ClosedReason); err != nil {
		return nil, err
	}

	var err error
	if l.StartTime, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("log %d: bad start_time: %w", l.ID, err)
	}
	if l.EndTime, err = parseNullTime(end); err != nil {
		return nil, fmt.Errorf("log %d: bad end_time: %w", l.ID, err)
	}
	l.ProjectID = nullInt(projectID)
	l.TaskID = nullInt(taskID)
	return &l, nil
}

func (s *Server) getLog(ctx context.Context, q querier, userID string, id int64) (*model.TimeLog, error) {
	l, err := scanLog(s.queryRow(ctx, q,
		`SELECT `+logColumns+` FROM time_logs WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrLogNotFound
	}
	return l, err
}

// createLog closes the user's open logs as superseded and opens a new one
func (s *Server) createLog(ctx context.Context, userID string) (*model.TimeLog, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()

	open, err := s.openLogs(ctx, tx, `WHERE user_id = $1 AND end_time IS NULL`, userID)
	if err != nil {
		return nil, 0, err
	}
	for _, l := range open {
		if err := s.closeLog(ctx, tx, l, now, model.ClosedSuperseded); err != nil {
			return nil, 0, err
		}
	}

	var id int64
	err = s.queryRow(ctx, tx, `
		INSERT INTO time_logs (user_id, start_time)
		VALUES ($1, $2)
		RETURNING id`,
		userID, formatTime(now),
	).Scan(&id)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}

	return &model.TimeLog{ID: id, UserID: userID, StartTime: now}, len(open), nil
}

func (s *Server) openLogs(ctx context.Context, q querier, where string, args ...any) ([]*model.TimeLog, error) {
	rows, err := s.query(ctx, q, `SELECT `+logColumns+` FROM time_logs `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.TimeLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// closeLog ends an open log at end. It is a no-op if the log closed meanwhile.
func (s *Server) closeLog(ctx context.Context, q querier, l *model.TimeLog, end time.Time, reason string) error {
	_, err := s.exec(ctx, q, `
		UPDATE time_logs
		SET end_time = $1, duration_seconds = $2, closed_reason = $3
		WHERE id = $4 AND end_time IS NULL`,
		formatTime(end), model.DurationBetween(l.StartTime, end), reason, l.ID)
	return err
}

// checkCategory verifies the task belongs to a project the user can book
// time against, and that the task can still take time.
func (s *Server) checkCategory(ctx context.Context, q querier, userID string, req model.FinalizeRequest) error {
	var (
		projectID int64
		status    string
	)
	err := s.queryRow(ctx, q, `SELECT project_id, status FROM tasks WHERE id = $1`, req.TaskID).
		Scan(&projectID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return &errInvalidCategory{reason: fmt.Sprintf("task %d not found", req.TaskID)}
	}
	if err != nil {
		return err
	}
	if projectID != req.ProjectID {
		return &errInvalidCategory{reason: fmt.Sprintf("task %d does not belong to project %d", req.TaskID, req.ProjectID)}
	}
	if model.TaskStatus(status) == model.TaskDone {
		return &errInvalidCategory{reason: fmt.Sprintf("task %d is done", req.TaskID)}
	}

	var access int
	err = s.queryRow(ctx, q, `
		SELECT COUNT(*) FROM projects p
		WHERE p.id = $1
		  AND (p.owner_id = $2
		       OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $3))`,
		req.ProjectID, userID, userID).Scan(&access)
	if err != nil {
		return err
	}
	if access == 0 {
		return &errInvalidCategory{reason: fmt.Sprintf("project %d is not accessible", req.ProjectID)}
	}
	return nil
}

// finalizeLog closes and categorizes a log. A log closed elsewhere keeps its
// end and duration; an already categorized closed log is returned unchanged.
func (s *Server) finalizeLog(ctx context.Context, userID string, id int64, req model.FinalizeRequest) (*model.TimeLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	l, err := s.getLog(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if !l.IsOpen() && l.IsCategorized() {
		return l, nil
	}
	if err := s.checkCategory(ctx, tx, userID, req); err != nil {
		return nil, err
	}

	if l.IsOpen() {
		end := s.now().UTC()
		_, err = s.exec(ctx, tx, `
			UPDATE time_logs
			SET end_time = $1, duration_seconds = $2, closed_reason = $3,
			    project_id = $4, task_id = $5, description = $6
			WHERE id = $7`,
			formatTime(end), model.DurationBetween(l.StartTime, end), model.ClosedFinalized,
			req.ProjectID, req.TaskID, req.Description, id)
	} else {
		_, err = s.exec(ctx, tx, `
			UPDATE time_logs
			SET project_id = $1, task_id = $2, description = $3
			WHERE id = $4`,
			req.ProjectID, req.TaskID, req.Description, id)
	}
	if err != nil {
		return nil, err
	}

	l, err = s.getLog(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	return l, tx.Commit()
}

func (s *Server) listLogs(ctx context.Context, userID string, limit int) ([]model.TimeLog, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+logColumns+` FROM time_logs
		WHERE user_id = $1
		ORDER BY start_time DESC, id DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.TimeLog{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (s *Server) handleCreateLog(c echo.Context) error {
	userID := currentUser(c)

	l, superseded, err := s.createLog(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to create log", logger.F("user", userID), logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to create log")
	}

	logger.Info("Log started",
		logger.F("user", userID),
		logger.F("logId", l.ID),
		logger.F("superseded", superseded))
	return c.JSON(http.StatusCreated, l)
}

func (s *Server) handleGetLog(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid log id")
	}

	l, err := s.getLog(c.Request().Context(), s.db, currentUser(c), id)
	if errors.Is(err, model.ErrLogNotFound) {
		return errorJSON(c, http.StatusNotFound, "log not found")
	}
	if err != nil {
		logger.Error("Failed to load log", logger.F("logId", id), logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to load log")
	}
	return c.JSON(http.StatusOK, l)
}

func (s *Server) handleFinalizeLog(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid log id")
	}

	var req model.FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	if !req.Complete() {
		return errorJSON(c, http.StatusBadRequest, "project_id and task_id are required")
	}

	userID := currentUser(c)
	l, err := s.finalizeLog(c.Request().Context(), userID, id, req)

	var invalid *errInvalidCategory
	switch {
	case errors.Is(err, model.ErrLogNotFound):
		return errorJSON(c, http.StatusNotFound, "log not found")
	case errors.As(err, &invalid):
		return errorJSON(c, http.StatusUnprocessableEntity, invalid.Error())
	case err != nil:
		logger.Error("Failed to finalize log", logger.F("logId", id), logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to finalize log")
	}

	logger.Info("Log finalized",
		logger.F("user", userID),
		logger.F("logId", l.ID),
		logger.F("durationSeconds", l.DurationSeconds))
	return c.JSON(http.StatusOK, l)
}

func (s *Server) handleListLogs(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errorJSON(c, http.StatusBadRequest, "invalid limit")
		}
		limit = min(n, 500)
	}

	logs, err := s.listLogs(c.Request().Context(), currentUser(c), limit)
	if err != nil {
		logger.Error("Failed to list logs", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to list logs")
	}
	return c.JSON(http.StatusOK, map[string]any{"logs": logs})
}
