package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/existflow/irontrack/internal/model"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	*Server
	clock *testClock
}

// newTestServer returns a server on a private in-memory SQLite database
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &testClock{now: t0}
	srv, err := New(Config{
		DatabaseURL:     "sqlite::memory:",
		MaxOpenDuration: 12 * time.Hour,
	}, WithNow(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return &testServer{Server: srv, clock: clock}
}

func (ts *testServer) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) mustProject(t *testing.T, user, name string, members ...string) model.Project {
	t.Helper()
	rec := ts.do(t, user, http.MethodPost, "/api/v1/projects", model.CreateProjectRequest{Name: name, Members: members})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Project](t, rec)
}

func (ts *testServer) mustTask(t *testing.T, user string, projectID int64, title, assignee string) model.Task {
	t.Helper()
	rec := ts.do(t, user, http.MethodPost, "/api/v1/tasks", model.CreateTaskRequest{ProjectID: projectID, Title: title, AssigneeID: assignee})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Task](t, rec)
}

func (ts *testServer) mustStart(t *testing.T, user string) model.TimeLog {
	t.Helper()
	rec := ts.do(t, user, http.MethodPost, "/api/v1/logs", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.TimeLog](t, rec)
}

func (ts *testServer) mustGet(t *testing.T, user string, id int64) model.TimeLog {
	t.Helper()
	rec := ts.do(t, user, http.MethodGet, logPath(id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[model.TimeLog](t, rec)
}

func logPath(id int64) string {
	return "/api/v1/logs/" + strconv.FormatInt(id, 10)
}
