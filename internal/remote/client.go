package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/google/uuid"
)

// APIError is a non-2xx response from the log service
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps 404 to model.ErrLogNotFound
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return model.ErrLogNotFound
	}
	return nil
}

// Client talks to the IronTrack server
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient creates a client for serverURL acting as userID
func NewClient(serverURL, userID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/") + "/api/v1",
		userID:     userID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Create opens a new, uncategorized log
func (c *Client) Create(ctx context.Context) (*model.TimeLog, error) {
	var l model.TimeLog
	if err := c.do(ctx, http.MethodPost, "/logs", nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Finalize closes logID against a project and task
func (c *Client) Finalize(ctx context.Context, logID int64, req model.FinalizeRequest) (*model.TimeLog, error) {
	var l model.TimeLog
	if err := c.do(ctx, http.MethodPost, "/logs/"+strconv.FormatInt(logID, 10)+"/finalize", req, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Get fetches a log. Unknown IDs return an error matching model.ErrLogNotFound.
func (c *Client) Get(ctx context.Context, logID int64) (*model.TimeLog, error) {
	var l model.TimeLog
	if err := c.do(ctx, http.MethodGet, "/logs/"+strconv.FormatInt(logID, 10), nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLogs returns the user's most recent logs, newest first
func (c *Client) ListLogs(ctx context.Context, limit int) ([]model.TimeLog, error) {
	var out struct {
		Logs []model.TimeLog `json:"logs"`
	}
	path := "/logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

// ListProjects returns projects in scope (owned or member)
func (c *Client) ListProjects(ctx context.Context, scope string) ([]model.Project, error) {
	var out struct {
		Projects []model.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects?scope="+url.QueryEscape(scope), nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// ListTasks returns tasks in scope (created or assigned)
func (c *Client) ListTasks(ctx context.Context, scope string) ([]model.Task, error) {
	var out struct {
		Tasks []model.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks?scope="+url.QueryEscape(scope), nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// CreateProject creates a project owned by the current user
func (c *Client) CreateProject(ctx context.Context, req model.CreateProjectRequest) (*model.Project, error) {
	var p model.Project
	if err := c.do(ctx, http.MethodPost, "/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTask creates a task in a project
func (c *Client) CreateTask(ctx context.Context, req model.CreateTaskRequest) (*model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTaskStatus moves a task to status
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID int64, status model.TaskStatus) (*model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+strconv.FormatInt(taskID, 10),
		model.UpdateTaskRequest{Status: status}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Health pings the server
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Remote call",
		logger.F("method", method),
		logger.F("path", path),
		logger.F("status", resp.StatusCode),
		logger.F("requestId", requestID),
		logger.F("duration", time.Since(start).String()))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
