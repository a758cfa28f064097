package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLogs struct {
	finalized []model.FinalizeRequest
}

func (s *stubLogs) Create(context.Context) (*model.TimeLog, error) {
	return &model.TimeLog{ID: 7, StartTime: time.Now()}, nil
}

func (s *stubLogs) Finalize(_ context.Context, id int64, req model.FinalizeRequest) (*model.TimeLog, error) {
	s.finalized = append(s.finalized, req)
	return &model.TimeLog{ID: id, DurationSeconds: 65}, nil
}

func (s *stubLogs) Get(context.Context, int64) (*model.TimeLog, error) {
	return nil, model.ErrLogNotFound
}

type stubSource struct{}

func (stubSource) ListProjects(_ context.Context, scope string) ([]model.Project, error) {
	if scope != model.ProjectScopeOwned {
		return nil, nil
	}
	return []model.Project{{ID: 3, Name: "Website"}}, nil
}

func (stubSource) ListTasks(_ context.Context, scope string) ([]model.Task, error) {
	if scope != model.TaskScopeCreated {
		return nil, nil
	}
	return []model.Task{
		{ID: 9, ProjectID: 3, Title: "Landing page", Status: model.TaskTodo},
		{ID: 11, ProjectID: 3, Title: "Archived", Status: model.TaskDone},
	}, nil
}

func newTestModel(t *testing.T) (Model, *timer.Controller, *stubLogs) {
	t.Helper()
	logs := &stubLogs{}
	ctrl := timer.NewController(timer.NewStore(nil), logs, timer.Options{})
	require.NoError(t, ctrl.Mount(context.Background()))
	t.Cleanup(ctrl.Close)

	m := NewModel(Options{
		Controller: ctrl,
		Dialog:     categorize.New(ctrl, stubSource{}),
		Source:     stubSource{},
	})
	t.Cleanup(m.Close)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), ctrl, logs
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// run executes cmd and feeds its message back into the model
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_RendersIdleTimer(t *testing.T) {
	m, _, _ := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, "00:00:00")
	assert.Contains(t, view, "idle")
}

func TestModel_StartAndStop(t *testing.T) {
	m, ctrl, logs := newTestModel(t)

	m, cmd := press(t, m, runeKey('s'))
	m = run(t, m, cmd)
	require.True(t, ctrl.Snapshot().IsRunning)
	m = run(t, m, m.waitForDisplay())
	assert.True(t, m.display.IsRunning)

	m, cmd = press(t, m, runeKey('x'))
	m = run(t, m, cmd)
	require.Equal(t, ModeCategorize, m.mode)
	assert.Equal(t, timer.PhaseAwaitingCategorization, ctrl.Phase())
	assert.Contains(t, m.View(), "Landing page")
	assert.NotContains(t, m.View(), "Archived")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}) // project
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}) // task
	require.Equal(t, PaneNote, m.pane)
	m, _ = press(t, m, runeKey('h'))
	m, _ = press(t, m, runeKey('i'))

	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)

	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, timer.Snapshot{}, ctrl.Snapshot())
	assert.Equal(t, []model.FinalizeRequest{{ProjectID: 3, TaskID: 9, Description: "hi"}}, logs.finalized)
	assert.Contains(t, m.message, "00:01:05")
}

func TestModel_EscapeKeepsTimerRunning(t *testing.T) {
	m, ctrl, logs := newTestModel(t)

	m, cmd := press(t, m, runeKey('s'))
	m = run(t, m, cmd)
	m = run(t, m, m.waitForDisplay())

	m, cmd = press(t, m, runeKey('x'))
	m = run(t, m, cmd)
	require.Equal(t, ModeCategorize, m.mode)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, timer.PhaseRunning, ctrl.Phase())
	assert.True(t, ctrl.Snapshot().IsRunning)
	assert.Empty(t, logs.finalized)
}

func TestModel_StopWhileIdleDoesNothing(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, cmd := press(t, m, runeKey('x'))
	assert.Nil(t, cmd)
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, "No timer running", m.message)
}

func TestModel_ConfirmNeedsSelection(t *testing.T) {
	m, _, logs := newTestModel(t)

	m, cmd := press(t, m, runeKey('s'))
	m = run(t, m, cmd)
	m = run(t, m, m.waitForDisplay())
	m, cmd = press(t, m, runeKey('x'))
	m = run(t, m, cmd)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, PaneNote, m.pane)

	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, ModeCategorize, m.mode)
	assert.Contains(t, m.message, "Pick a project")
	assert.Empty(t, logs.finalized)
}

func TestModel_RemoteCloseWhileDialogLoads(t *testing.T) {
	m, ctrl, logs := newTestModel(t)

	m, cmd := press(t, m, runeKey('s'))
	m = run(t, m, cmd)
	m = run(t, m, m.waitForDisplay())

	m, cmd = press(t, m, runeKey('x'))
	require.NotNil(t, cmd)
	opened := cmd()

	// The timer ends before the dialog finishes loading
	_, err := ctrl.Discard(context.Background())
	require.NoError(t, err)

	updated, _ := m.Update(opened)
	m = updated.(Model)
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, "Timer was closed on the server", m.message)
	assert.False(t, m.dialog.IsOpen())
	assert.Equal(t, timer.PhaseIdle, ctrl.Phase())
	assert.Empty(t, logs.finalized)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Landing...", truncate("Landing page copy", 10))
	assert.Equal(t, "ünï...", truncate("ünïcode text", 6))
}
