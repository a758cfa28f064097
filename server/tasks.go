package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/labstack/echo/v4"
)

const taskColumns = `id, project_id, title, status, created_by, assignee_id, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var (
		t                model.Task
		status           string
		assignee         sql.NullString
		created, updated string
	)
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &t.CreatedBy, &assignee, &created, &updated); err != nil {
		return t, err
	}
	t.Status = model.TaskStatus(status)
	t.AssigneeID = assignee.String

	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	t.UpdatedAt, err = parseTime(updated)
	return t, err
}

func (s *Server) listTasks(ctx context.Context, userID, scope string) ([]model.Task, error) {
	column := "created_by"
	if scope == model.TaskScopeAssigned {
		column = "assignee_id"
	}

	rows, err := s.query(ctx, s.db,
		`SELECT `+taskColumns+` FROM tasks WHERE `+column+` = $1 ORDER BY title, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Server) getTask(ctx context.Context, id int64) (model.Task, error) {
	return scanTask(s.queryRow(ctx, s.db, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (s *Server) projectExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM projects WHERE id = $1`, id).Scan(&n)
	return n > 0, err
}

func (s *Server) handleListTasks(c echo.Context) error {
	scope := c.QueryParam("scope")
	if scope == "" {
		scope = model.TaskScopeCreated
	}
	if scope != model.TaskScopeCreated && scope != model.TaskScopeAssigned {
		return errorJSON(c, http.StatusBadRequest, "scope must be created or assigned")
	}

	tasks, err := s.listTasks(c.Request().Context(), currentUser(c), scope)
	if err != nil {
		logger.Error("Failed to list tasks", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to list tasks")
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req model.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.ProjectID <= 0 {
		return errorJSON(c, http.StatusBadRequest, "project_id and title are required")
	}

	ctx := c.Request().Context()
	ok, err := s.projectExists(ctx, req.ProjectID)
	if err != nil {
		logger.Error("Failed to look up project", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to create task")
	}
	if !ok {
		return errorJSON(c, http.StatusUnprocessableEntity, "project not found")
	}

	now := s.now().UTC()
	t := model.Task{
		ProjectID:  req.ProjectID,
		Title:      req.Title,
		Status:     model.TaskTodo,
		CreatedBy:  currentUser(c),
		AssigneeID: strings.TrimSpace(req.AssigneeID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	assignee := sql.NullString{String: t.AssigneeID, Valid: t.AssigneeID != ""}

	err = s.queryRow(ctx, s.db, `
		INSERT INTO tasks (project_id, title, status, created_by, assignee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		t.ProjectID, t.Title, string(t.Status), t.CreatedBy, assignee, formatTime(now), formatTime(now),
	).Scan(&t.ID)
	if err != nil {
		logger.Error("Failed to create task", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to create task")
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid task id")
	}

	var req model.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	if !req.Status.Valid() {
		return errorJSON(c, http.StatusBadRequest, "status must be todo, in_progress or done")
	}

	ctx := c.Request().Context()
	res, err := s.exec(ctx, s.db,
		`UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`,
		string(req.Status), formatTime(s.now()), id)
	if err != nil {
		logger.Error("Failed to update task", logger.F("taskId", id), logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to update task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}

	t, err := s.getTask(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return errorJSON(c, http.StatusNotFound, "task not found")
	}
	if err != nil {
		logger.Error("Failed to load task", logger.F("taskId", id), logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to update task")
	}
	return c.JSON(http.StatusOK, t)
}
