package categorize

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStopper struct {
	mu        sync.Mutex
	running   bool
	awaiting  bool
	stopErr   error
	stopped   []model.FinalizeRequest
	cancelled int
}

func (s *fakeStopper) BeginCategorization() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return timer.ErrNotRunning
	}
	s.awaiting = true
	return nil
}

func (s *fakeStopper) CancelCategorization() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting = false
	s.cancelled++
}

func (s *fakeStopper) Stop(_ context.Context, req model.FinalizeRequest) (*model.TimeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopErr != nil {
		return nil, s.stopErr
	}
	s.stopped = append(s.stopped, req)
	s.running, s.awaiting = false, false
	return &model.TimeLog{ID: 7, ProjectID: &req.ProjectID, TaskID: &req.TaskID}, nil
}

type fakeSource struct {
	projects map[string][]model.Project
	tasks    map[string][]model.Task
	err      error
}

func (s *fakeSource) ListProjects(_ context.Context, scope string) ([]model.Project, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.projects[scope], nil
}

func (s *fakeSource) ListTasks(_ context.Context, scope string) ([]model.Task, error) {
	return s.tasks[scope], nil
}

func newSource() *fakeSource {
	website := model.Project{ID: 3, Name: "Website"}
	ops := model.Project{ID: 4, Name: "ops"}
	shared := model.Project{ID: 5, Name: "Archive"}

	landing := model.Task{ID: 9, ProjectID: 3, Title: "Landing page", Status: model.TaskInProgress}
	footer := model.Task{ID: 10, ProjectID: 3, Title: "Footer", Status: model.TaskTodo}
	shipped := model.Task{ID: 11, ProjectID: 3, Title: "Shipped", Status: model.TaskDone}
	backup := model.Task{ID: 12, ProjectID: 4, Title: "Backups", Status: model.TaskTodo}

	return &fakeSource{
		projects: map[string][]model.Project{
			model.ProjectScopeOwned:  {website, ops},
			model.ProjectScopeMember: {shared, website},
		},
		tasks: map[string][]model.Task{
			model.TaskScopeCreated:  {landing, footer, shipped},
			model.TaskScopeAssigned: {landing, backup},
		},
	}
}

func openDialog(t *testing.T) (*Dialog, *fakeStopper) {
	t.Helper()
	stopper := &fakeStopper{running: true}
	d := New(stopper, newSource())
	require.NoError(t, d.Open(context.Background()))
	return d, stopper
}

func taskIDs(tasks []model.Task) []int64 {
	var ids []int64
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestMergeTasks_Dedup(t *testing.T) {
	a := model.Task{ID: 1, Title: "Write", Status: model.TaskTodo}
	b := model.Task{ID: 2, Title: "Review"}
	stale := model.Task{ID: 1, Title: "Write (stale copy)"}

	merged := MergeTasks([]model.Task{a, b}, []model.Task{stale})
	require.Len(t, merged, 2)
	assert.Equal(t, []int64{2, 1}, taskIDs(merged), "sorted by title")
	assert.Equal(t, "Write", merged[1].Title, "first appearance wins")
}

func TestMergeProjects_SortsCaseInsensitively(t *testing.T) {
	merged := MergeProjects(
		[]model.Project{{ID: 1, Name: "beta"}, {ID: 2, Name: "Alpha"}},
		[]model.Project{{ID: 1, Name: "beta"}, {ID: 3, Name: "Gamma"}},
	)
	var names []string
	for _, p := range merged {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Alpha", "beta", "Gamma"}, names)
}

func TestDialog_OpenLoadsMergedLists(t *testing.T) {
	d, stopper := openDialog(t)

	assert.True(t, d.IsOpen())
	assert.True(t, stopper.awaiting)

	var ids []int64
	for _, p := range d.Projects() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{5, 4, 3}, ids, "deduplicated and sorted by name")
}

func TestDialog_TaskInBothListsAppearsOnce(t *testing.T) {
	d, _ := openDialog(t)

	tasks := d.TasksFor(3)
	count := 0
	for _, task := range tasks {
		if task.ID == 9 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDialog_DoneTasksAreNotSelectable(t *testing.T) {
	d, _ := openDialog(t)

	assert.Equal(t, []int64{10, 9}, taskIDs(d.TasksFor(3)))

	require.NoError(t, d.SelectProject(3))
	err := d.SelectTask(11)
	assert.ErrorIs(t, err, ErrNotSelectable)
}

func TestDialog_SelectionRules(t *testing.T) {
	d, _ := openDialog(t)

	assert.False(t, d.CanConfirm())
	assert.ErrorIs(t, d.SelectProject(99), ErrNotSelectable)
	assert.ErrorIs(t, d.SelectTask(9), ErrNotSelectable, "no project chosen yet")

	require.NoError(t, d.SelectProject(3))
	assert.False(t, d.CanConfirm())
	require.NoError(t, d.SelectTask(9))
	assert.True(t, d.CanConfirm())

	assert.ErrorIs(t, d.SelectTask(12), ErrNotSelectable, "task of another project")

	require.NoError(t, d.SelectProject(3))
	_, taskID, _ := d.Selection()
	assert.Equal(t, int64(9), taskID, "reselecting the same project keeps the task")

	require.NoError(t, d.SelectProject(4))
	projectID, taskID, _ := d.Selection()
	assert.Equal(t, int64(4), projectID)
	assert.Zero(t, taskID, "switching project clears the task")
	assert.False(t, d.CanConfirm())
}

func TestDialog_ConfirmStopsTimer(t *testing.T) {
	d, stopper := openDialog(t)
	require.NoError(t, d.SelectProject(3))
	require.NoError(t, d.SelectTask(9))
	d.SetNote("  hero copy ")

	log, err := d.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), log.ID)
	assert.Equal(t, []model.FinalizeRequest{{ProjectID: 3, TaskID: 9, Description: "hero copy"}}, stopper.stopped)
	assert.False(t, d.IsOpen())
}

func TestDialog_ConfirmRequiresSelection(t *testing.T) {
	d, stopper := openDialog(t)
	require.NoError(t, d.SelectProject(3))

	_, err := d.Confirm(context.Background())
	assert.ErrorIs(t, err, timer.ErrCategorizationRequired)
	assert.Empty(t, stopper.stopped)
}

func TestDialog_ConfirmFailureStaysOpen(t *testing.T) {
	d, stopper := openDialog(t)
	require.NoError(t, d.SelectProject(3))
	require.NoError(t, d.SelectTask(9))

	stopper.stopErr = errors.New("server returned 500")
	_, err := d.Confirm(context.Background())
	require.Error(t, err)

	assert.True(t, d.IsOpen())
	assert.Equal(t, err, d.Err())
	assert.False(t, d.Submitting())
	assert.True(t, d.CanConfirm(), "confirm can be retried")

	stopper.stopErr = nil
	_, err = d.Confirm(context.Background())
	require.NoError(t, err)
	assert.False(t, d.IsOpen())
}

func TestDialog_CancelLeavesTimerRunning(t *testing.T) {
	d, stopper := openDialog(t)
	require.NoError(t, d.SelectProject(3))

	d.Cancel()

	assert.False(t, d.IsOpen())
	assert.True(t, stopper.running)
	assert.False(t, stopper.awaiting)
	assert.Equal(t, 1, stopper.cancelled)
	assert.Empty(t, stopper.stopped)

	d.Cancel()
	assert.Equal(t, 1, stopper.cancelled, "cancel on a closed dialog is a no-op")
}

func TestDialog_OpenRequiresRunningTimer(t *testing.T) {
	d := New(&fakeStopper{}, newSource())

	assert.ErrorIs(t, d.Open(context.Background()), timer.ErrNotRunning)
	assert.False(t, d.IsOpen())
}

func TestDialog_OpenLoadFailureReturnsToRunning(t *testing.T) {
	stopper := &fakeStopper{running: true}
	src := newSource()
	src.err = errors.New("connection refused")
	d := New(stopper, src)

	err := d.Open(context.Background())
	require.Error(t, err)
	assert.False(t, d.IsOpen())
	assert.False(t, stopper.awaiting)
	assert.Equal(t, 1, stopper.cancelled)
}

func TestDialog_ClosedDialogRejectsSelection(t *testing.T) {
	d := New(&fakeStopper{running: true}, newSource())

	assert.ErrorIs(t, d.SelectProject(3), ErrClosed)
	_, err := d.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialog_WithController(t *testing.T) {
	ctrl := timer.NewController(timer.NewStore(nil), &stubLogs{}, timer.Options{})
	defer ctrl.Close()
	require.NoError(t, ctrl.Mount(context.Background()))
	_, err := ctrl.Start(context.Background())
	require.NoError(t, err)

	d := New(ctrl, newSource())
	require.NoError(t, d.Open(context.Background()))
	assert.Equal(t, timer.PhaseAwaitingCategorization, ctrl.Phase())

	d.Cancel()
	assert.Equal(t, timer.PhaseRunning, ctrl.Phase())

	require.NoError(t, d.Open(context.Background()))
	require.NoError(t, d.SelectProject(3))
	require.NoError(t, d.SelectTask(9))
	_, err = d.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timer.PhaseIdle, ctrl.Phase())
	assert.Equal(t, timer.Snapshot{}, ctrl.Snapshot())
}

type stubLogs struct{}

func (stubLogs) Create(context.Context) (*model.TimeLog, error) {
	return &model.TimeLog{ID: 7}, nil
}

func (stubLogs) Finalize(_ context.Context, id int64, _ model.FinalizeRequest) (*model.TimeLog, error) {
	return &model.TimeLog{ID: id}, nil
}

func (stubLogs) Get(context.Context, int64) (*model.TimeLog, error) {
	return nil, model.ErrLogNotFound
}
