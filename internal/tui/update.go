package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
)

// displayMsg carries a controller display update
type displayMsg timer.Display

type startedMsg struct {
	log *model.TimeLog
	err error
}

type dialogOpenedMsg struct {
	err error
}

type stoppedMsg struct {
	log *model.TimeLog
	err error
}

type logsMsg struct {
	logs []model.TimeLog
	err  error
}

type catalogMsg struct {
	projects []model.Project
	tasks    []model.Task
	err      error
}

// Init starts listening for display updates and loads the history list
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForDisplay(), m.loadLogs(), m.loadCatalog())
}

// waitForDisplay listens for controller display updates
func (m Model) waitForDisplay() tea.Cmd {
	ch := m.displayChan
	return func() tea.Msg {
		return displayMsg(<-ch)
	}
}

func (m Model) loadLogs() tea.Cmd {
	if m.recentLogs == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		logs, err := m.recentLogs(ctx)
		return logsMsg{logs: logs, err: err}
	}
}

func (m Model) loadCatalog() tea.Cmd {
	if m.source == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		var msg catalogMsg
		owned, err := m.source.ListProjects(ctx, model.ProjectScopeOwned)
		if err != nil {
			return catalogMsg{err: err}
		}
		member, err := m.source.ListProjects(ctx, model.ProjectScopeMember)
		if err != nil {
			return catalogMsg{err: err}
		}
		created, err := m.source.ListTasks(ctx, model.TaskScopeCreated)
		if err != nil {
			return catalogMsg{err: err}
		}
		assigned, err := m.source.ListTasks(ctx, model.TaskScopeAssigned)
		if err != nil {
			return catalogMsg{err: err}
		}
		msg.projects = categorize.MergeProjects(owned, member)
		msg.tasks = categorize.MergeTasks(created, assigned)
		return msg
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case displayMsg:
		m.display = timer.Display(msg)
		// Closed elsewhere while the dialog was open
		if m.mode == ModeCategorize && !m.display.IsRunning && !m.busy {
			m.dialog.Cancel()
			m.mode = ModeNormal
			m.message = "Timer was closed on the server"
			return m, tea.Batch(m.waitForDisplay(), m.loadLogs())
		}
		return m, m.waitForDisplay()

	case startedMsg:
		m.busy = false
		if msg.err != nil {
			m.message = "Start failed: " + msg.err.Error()
			return m, nil
		}
		m.message = fmt.Sprintf("Timer started (log %d)", msg.log.ID)
		return m, nil

	case dialogOpenedMsg:
		m.busy = false
		if msg.err != nil {
			m.message = "Cannot stop: " + msg.err.Error()
			return m, nil
		}
		// Closed elsewhere while the lists were loading
		if !m.ctrl.Display().IsRunning {
			m.dialog.Cancel()
			m.message = "Timer was closed on the server"
			return m, m.loadLogs()
		}
		m.mode = ModeCategorize
		m.pane = PaneProjects
		m.projCursor, m.taskCursor = 0, 0
		m.input.SetValue("")
		m.input.Blur()
		m.message = ""
		return m, nil

	case stoppedMsg:
		m.busy = false
		if msg.err != nil {
			m.message = "Stop failed: " + msg.err.Error()
			return m, nil
		}
		m.mode = ModeNormal
		m.input.Blur()
		m.message = fmt.Sprintf("Logged %s", timer.FormatElapsed(msg.log.DurationSeconds))
		return m, m.loadLogs()

	case logsMsg:
		if msg.err != nil {
			logger.Warn("Failed to load recent logs", logger.Err(msg.err))
			return m, nil
		}
		m.logs = msg.logs
		return m, nil

	case catalogMsg:
		if msg.err != nil {
			logger.Warn("Failed to load projects and tasks", logger.Err(msg.err))
			return m, nil
		}
		for _, p := range msg.projects {
			m.projectNames[p.ID] = p.Name
		}
		for _, t := range msg.tasks {
			m.taskNames[t.ID] = t.Title
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeCategorize:
			return m.handleCategorizeKeys(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	case key.Matches(msg, keys.Refresh):
		m.message = "Refreshing..."
		return m, tea.Batch(m.loadLogs(), m.loadCatalog())
	case key.Matches(msg, keys.Start):
		return m.startTimer()
	case key.Matches(msg, keys.Stop):
		return m.openDialog()
	}
	return m, nil
}

func (m Model) startTimer() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if m.display.IsRunning {
		m.message = "Timer already running"
		return m, nil
	}
	m.busy = true
	m.message = "Starting..."
	ctrl := m.ctrl
	return m, func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		log, err := ctrl.Start(ctx)
		return startedMsg{log: log, err: err}
	}
}

func (m Model) openDialog() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if !m.display.IsRunning {
		m.message = "No timer running"
		return m, nil
	}
	m.busy = true
	m.message = "Loading projects..."
	dialog := m.dialog
	return m, func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		return dialogOpenedMsg{err: dialog.Open(ctx)}
	}
}

func (m Model) handleCategorizeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Escape):
		m.dialog.Cancel()
		m.mode = ModeNormal
		m.input.Blur()
		m.message = "Stop cancelled, timer still running"
		return m, nil
	case msg.Type == tea.KeyCtrlC:
		m.dialog.Cancel()
		return m, tea.Quit
	case key.Matches(msg, keys.Tab):
		m.nextPane()
		return m, nil
	}

	if m.pane == PaneNote {
		if key.Matches(msg, keys.Enter) {
			return m.confirm()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.dialog.SetNote(m.input.Value())
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Up):
		m.handleUp()
	case key.Matches(msg, keys.Down):
		m.handleDown()
	case key.Matches(msg, keys.Enter):
		m.handleSelect()
	}
	return m, nil
}

func (m *Model) nextPane() {
	switch m.pane {
	case PaneProjects:
		m.pane = PaneTasks
	case PaneTasks:
		m.pane = PaneNote
		m.input.Focus()
	default:
		m.pane = PaneProjects
		m.input.Blur()
	}
}

func (m *Model) handleUp() {
	switch m.pane {
	case PaneProjects:
		if m.projCursor > 0 {
			m.projCursor--
			m.taskCursor = 0
		}
	case PaneTasks:
		if m.taskCursor > 0 {
			m.taskCursor--
		}
	}
}

func (m *Model) handleDown() {
	switch m.pane {
	case PaneProjects:
		if m.projCursor < len(m.dialog.Projects())-1 {
			m.projCursor++
			m.taskCursor = 0
		}
	case PaneTasks:
		if m.taskCursor < len(m.currentTasks())-1 {
			m.taskCursor++
		}
	}
}

func (m *Model) handleSelect() {
	switch m.pane {
	case PaneProjects:
		p := m.currentProject()
		if p == nil {
			return
		}
		if err := m.dialog.SelectProject(p.ID); err != nil {
			m.message = err.Error()
			return
		}
		m.pane = PaneTasks
	case PaneTasks:
		t := m.currentTask()
		if t == nil {
			m.message = "No open tasks in this project"
			return
		}
		if err := m.dialog.SelectTask(t.ID); err != nil {
			m.message = err.Error()
			return
		}
		m.pane = PaneNote
		m.input.Focus()
	}
}

func (m Model) confirm() (tea.Model, tea.Cmd) {
	if !m.dialog.CanConfirm() {
		m.message = "Pick a project and a task first"
		return m, nil
	}
	m.busy = true
	m.message = "Stopping..."
	dialog := m.dialog
	return m, func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		log, err := dialog.Confirm(ctx)
		if err != nil && errors.Is(err, timer.ErrNotRunning) {
			err = fmt.Errorf("timer is no longer running")
		}
		return stoppedMsg{log: log, err: err}
	}
}
