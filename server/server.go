package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the time-log server
type Server struct {
	db      *sql.DB
	dialect dialect
	cfg     Config
	now     func() time.Time
	echo    *echo.Echo

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
}

// Option customizes a Server
type Option func(*Server)

// WithNow overrides the server clock
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New opens the database, runs migrations and builds the router
func New(cfg Config, opts ...Option) (*Server, error) {
	db, d, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:      db,
		dialect: d,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Setup Echo
	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	user := api.Group("")
	user.Use(userMiddleware)

	user.POST("/logs", s.handleCreateLog)
	user.GET("/logs", s.handleListLogs)
	user.GET("/logs/:id", s.handleGetLog)
	user.POST("/logs/:id/finalize", s.handleFinalizeLog)

	user.GET("/projects", s.handleListProjects)
	user.POST("/projects", s.handleCreateProject)

	user.GET("/tasks", s.handleListTasks)
	user.POST("/tasks", s.handleCreateTask)
	user.PATCH("/tasks/:id", s.handleUpdateTask)

	s.echo = e
}

// Close stops the sweeper and closes the database connection
func (s *Server) Close() error {
	s.stopSweeper()
	return s.db.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start runs the sweeper and serves HTTP until Shutdown
func (s *Server) Start(addr string) error {
	s.startSweeper()
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopSweeper()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Server) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Server) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
