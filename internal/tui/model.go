package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
)

// Pane is the focused part of the categorization modal
type Pane int

const (
	PaneProjects Pane = iota
	PaneTasks
	PaneNote
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeCategorize
	ModeHelp
)

// RecentLogsFunc returns the latest logs for the history list
type RecentLogsFunc func(ctx context.Context) ([]model.TimeLog, error)

// Options wires the model to the timer core
type Options struct {
	Controller     *timer.Controller
	Dialog         *categorize.Dialog
	Source         categorize.Source
	RecentLogs     RecentLogsFunc
	RequestTimeout time.Duration
}

// Model is the main TUI model
type Model struct {
	ctrl       *timer.Controller
	dialog     *categorize.Dialog
	source     categorize.Source
	recentLogs RecentLogsFunc
	timeout    time.Duration

	// displayChan carries controller display updates into the program
	displayChan chan timer.Display
	unsubscribe func()

	display timer.Display
	logs    []model.TimeLog

	// Names for rendering the history list
	projectNames map[int64]string
	taskNames    map[int64]string

	// UI state
	width  int
	height int
	mode   Mode
	pane   Pane
	busy   bool

	// Categorization cursors
	projCursor int
	taskCursor int

	// Input
	input textinput.Model

	message string
}

// NewModel creates a new TUI model
func NewModel(opts Options) Model {
	logger.Info("Initializing TUI model")

	ti := textinput.New()
	ti.Placeholder = "What did you work on? (optional)"
	ti.CharLimit = 256
	ti.Width = 40

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	m := Model{
		ctrl:         opts.Controller,
		dialog:       opts.Dialog,
		source:       opts.Source,
		recentLogs:   opts.RecentLogs,
		timeout:      opts.RequestTimeout,
		displayChan:  make(chan timer.Display, 1),
		display:      opts.Controller.Display(),
		projectNames: make(map[int64]string),
		taskNames:    make(map[int64]string),
		input:        ti,
	}

	// Keep only the newest display: a slow frame must not block ticking.
	ch := m.displayChan
	m.unsubscribe = opts.Controller.SubscribeDisplay(func(d timer.Display) {
		for {
			select {
			case ch <- d:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})

	return m
}

// Close detaches the model from the controller
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *Model) currentProject() *model.Project {
	projects := m.dialog.Projects()
	if m.projCursor < len(projects) {
		p := projects[m.projCursor]
		return &p
	}
	return nil
}

func (m *Model) currentTasks() []model.Task {
	p := m.currentProject()
	if p == nil {
		return nil
	}
	return m.dialog.TasksFor(p.ID)
}

func (m *Model) currentTask() *model.Task {
	tasks := m.currentTasks()
	if m.taskCursor < len(tasks) {
		t := tasks[m.taskCursor]
		return &t
	}
	return nil
}
