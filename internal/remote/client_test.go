package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
	"github.com/existflow/irontrack/server"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := server.New(server.Config{DatabaseURL: "sqlite::memory:", MaxOpenDuration: 12 * time.Hour})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

// seed creates a project with one open task for user
func seed(t *testing.T, c *Client) (*model.Project, *model.Task) {
	t.Helper()
	ctx := context.Background()
	p, err := c.CreateProject(ctx, model.CreateProjectRequest{Name: "Website"})
	require.NoError(t, err)
	task, err := c.CreateTask(ctx, model.CreateTaskRequest{ProjectID: p.ID, Title: "Landing page"})
	require.NoError(t, err)
	return p, task
}

func TestClient_LogLifecycle(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "alice", 5*time.Second)
	ctx := context.Background()
	p, task := seed(t, c)

	require.NoError(t, c.Health(ctx))

	created, err := c.Create(ctx)
	require.NoError(t, err)
	assert.True(t, created.IsOpen())
	assert.False(t, created.StartTime.IsZero())

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())

	closed, err := c.Finalize(ctx, created.ID, model.FinalizeRequest{ProjectID: p.ID, TaskID: task.ID, Description: "copy"})
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
	assert.Equal(t, model.ClosedFinalized, closed.ClosedReason)

	logs, err := c.ListLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "copy", logs[0].Description)
}

func TestClient_NotFoundMatchesErrLogNotFound(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "alice", 5*time.Second)

	_, err := c.Get(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrLogNotFound)
	assert.True(t, IsStatus(err, http.StatusNotFound))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "log not found", apiErr.Message)
}

func TestClient_UnprocessableIsNotNotFound(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "alice", 5*time.Second)
	ctx := context.Background()
	p, task := seed(t, c)

	_, err := c.UpdateTaskStatus(ctx, task.ID, model.TaskDone)
	require.NoError(t, err)

	l, err := c.Create(ctx)
	require.NoError(t, err)

	_, err = c.Finalize(ctx, l.ID, model.FinalizeRequest{ProjectID: p.ID, TaskID: task.ID})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))
	assert.NotErrorIs(t, err, model.ErrLogNotFound)
	assert.Contains(t, err.Error(), "is done")
}

func TestClient_Scopes(t *testing.T) {
	ts := newTestServer(t)
	alice := NewClient(ts.URL, "alice", 5*time.Second)
	bob := NewClient(ts.URL, "bob", 5*time.Second)
	ctx := context.Background()

	p, err := alice.CreateProject(ctx, model.CreateProjectRequest{Name: "Website", Members: []string{"bob"}})
	require.NoError(t, err)
	_, err = alice.CreateTask(ctx, model.CreateTaskRequest{ProjectID: p.ID, Title: "Landing page", AssigneeID: "bob"})
	require.NoError(t, err)

	projects, err := bob.ListProjects(ctx, model.ProjectScopeMember)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	tasks, err := bob.ListTasks(ctx, model.TaskScopeAssigned)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, p.ID, tasks[0].ProjectID)
}

func TestClient_SendsIdentityHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "alice", time.Second)
	require.NoError(t, c.Health(context.Background()))

	got := <-headers
	assert.Equal(t, "alice", got.Get("X-User-ID"))
	_, err := uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestClient_PlainTextErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "alice", time.Second).Create(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
}

func TestClient_ConnectionErrorIsNotAPIError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, "alice", time.Second).Get(context.Background(), 1)
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.NotErrorIs(t, err, model.ErrLogNotFound)
}

func TestController_AgainstServer(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, "alice", 5*time.Second)
	ctx := context.Background()
	p, task := seed(t, c)

	store := timer.NewStore(nil)
	ctrl := timer.NewController(store, c, timer.Options{})
	defer ctrl.Close()
	require.NoError(t, ctrl.Mount(ctx))

	log, err := ctrl.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, log.ID, ctrl.Snapshot().ActiveLogID)

	closed, err := ctrl.Stop(ctx, model.FinalizeRequest{ProjectID: p.ID, TaskID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, log.ID, closed.ID)
	assert.Equal(t, timer.Snapshot{}, ctrl.Snapshot())
}

func TestController_ReconcilesSupersededLog(t *testing.T) {
	ts := newTestServer(t)
	laptop := NewClient(ts.URL, "alice", 5*time.Second)
	phone := NewClient(ts.URL, "alice", 5*time.Second)
	ctx := context.Background()

	store := timer.NewStore(nil)
	ctrl := timer.NewController(store, laptop, timer.Options{})
	defer ctrl.Close()
	require.NoError(t, ctrl.Mount(ctx))

	_, err := ctrl.Start(ctx)
	require.NoError(t, err)

	_, err = phone.Create(ctx)
	require.NoError(t, err)

	reset, err := ctrl.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.False(t, ctrl.Snapshot().IsRunning)
}

type memState struct {
	data []byte
}

func (m *memState) LoadTimerState(context.Context) ([]byte, error) { return m.data, nil }

func (m *memState) SaveTimerState(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	return nil
}

func TestController_SwitchingUserKeepsRunningTimer(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	state := &memState{}

	asAlice := timer.NewController(timer.NewStore(state), NewClient(ts.URL, "alice", 5*time.Second), timer.Options{})
	require.NoError(t, asAlice.Mount(ctx))
	started, err := asAlice.Start(ctx)
	require.NoError(t, err)
	asAlice.Close()

	asBob := timer.NewController(timer.NewStore(state), NewClient(ts.URL, "bob", 5*time.Second), timer.Options{})
	defer asBob.Close()
	require.NoError(t, asBob.Mount(ctx))

	snap := asBob.Snapshot()
	assert.True(t, snap.IsRunning, "a log this user cannot see is not proof it ended")
	assert.Equal(t, started.ID, snap.ActiveLogID)

	l, err := NewClient(ts.URL, "alice", 5*time.Second).Get(ctx, started.ID)
	require.NoError(t, err)
	assert.True(t, l.IsOpen())
}
