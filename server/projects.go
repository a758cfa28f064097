package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/labstack/echo/v4"
)

func scanProject(row interface{ Scan(...any) error }) (model.Project, error) {
	var (
		p       model.Project
		created string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Color, &p.OwnerID, &created); err != nil {
		return p, err
	}
	var err error
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func (s *Server) listProjects(ctx context.Context, userID, scope string) ([]model.Project, error) {
	query := `SELECT id, name, color, owner_id, created_at FROM projects WHERE owner_id = $1 ORDER BY name, id`
	if scope == model.ProjectScopeMember {
		query = `
			SELECT p.id, p.name, p.color, p.owner_id, p.created_at
			FROM projects p
			JOIN project_members m ON m.project_id = p.id
			WHERE m.user_id = $1
			ORDER BY p.name, p.id`
	}

	rows, err := s.query(ctx, s.db, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Server) createProject(ctx context.Context, userID string, req model.CreateProjectRequest) (model.Project, error) {
	p := model.Project{
		Name:      req.Name,
		Color:     req.Color,
		OwnerID:   userID,
		CreatedAt: s.now().UTC(),
	}
	if p.Color == "" {
		p.Color = model.DefaultProjectColor
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer func() { _ = tx.Rollback() }()

	err = s.queryRow(ctx, tx, `
		INSERT INTO projects (name, color, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Name, p.Color, p.OwnerID, formatTime(p.CreatedAt),
	).Scan(&p.ID)
	if err != nil {
		return p, err
	}

	seen := map[string]bool{}
	for _, member := range req.Members {
		member = strings.TrimSpace(member)
		if member == "" || seen[member] {
			continue
		}
		seen[member] = true
		if _, err := s.exec(ctx, tx,
			`INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)`, p.ID, member); err != nil {
			return p, err
		}
	}

	return p, tx.Commit()
}

func (s *Server) handleListProjects(c echo.Context) error {
	scope := c.QueryParam("scope")
	if scope == "" {
		scope = model.ProjectScopeOwned
	}
	if scope != model.ProjectScopeOwned && scope != model.ProjectScopeMember {
		return errorJSON(c, http.StatusBadRequest, "scope must be owned or member")
	}

	projects, err := s.listProjects(c.Request().Context(), currentUser(c), scope)
	if err != nil {
		logger.Error("Failed to list projects", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to list projects")
	}
	return c.JSON(http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req model.CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errorJSON(c, http.StatusBadRequest, "name is required")
	}

	p, err := s.createProject(c.Request().Context(), currentUser(c), req)
	if err != nil {
		logger.Error("Failed to create project", logger.Err(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to create project")
	}
	return c.JSON(http.StatusCreated, p)
}
