// Package categorize collects the project and task a running timer is
// finalized against.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/timer"
)

var (
	// ErrClosed is returned by operations on a dialog that is not open
	ErrClosed = errors.New("categorization dialog is not open")
	// ErrNotSelectable is returned when a project or task cannot be chosen
	ErrNotSelectable = errors.New("not selectable")
)

// Source lists the projects and tasks a log can be booked against
type Source interface {
	ListProjects(ctx context.Context, scope string) ([]model.Project, error)
	ListTasks(ctx context.Context, scope string) ([]model.Task, error)
}

// Stopper is the part of the timer controller the dialog drives
type Stopper interface {
	BeginCategorization() error
	CancelCategorization()
	Stop(ctx context.Context, req model.FinalizeRequest) (*model.TimeLog, error)
}

// Dialog holds the selection state of one stop-categorization round
type Dialog struct {
	ctrl Stopper
	src  Source

	mu         sync.Mutex
	open       bool
	submitting bool
	projects   []model.Project
	tasks      []model.Task
	projectID  int64
	taskID     int64
	note       string
	err        error
}

// New creates a closed dialog
func New(ctrl Stopper, src Source) *Dialog {
	return &Dialog{ctrl: ctrl, src: src}
}

// Open moves the timer into AwaitingCategorization and loads the
// selectable projects and tasks. A load failure returns the timer to Running.
func (d *Dialog) Open(ctx context.Context) error {
	if err := d.ctrl.BeginCategorization(); err != nil {
		return err
	}

	projects, tasks, err := d.load(ctx)
	if err != nil {
		d.ctrl.CancelCategorization()
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
	d.submitting = false
	d.projects = projects
	d.tasks = tasks
	d.projectID, d.taskID, d.note, d.err = 0, 0, "", nil
	return nil
}

// load fetches all four source lists concurrently
func (d *Dialog) load(ctx context.Context) ([]model.Project, []model.Task, error) {
	var (
		wg             sync.WaitGroup
		owned, member  []model.Project
		created, given []model.Task
		errs           [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		owned, errs[0] = d.src.ListProjects(ctx, model.ProjectScopeOwned)
	}()
	go func() {
		defer wg.Done()
		member, errs[1] = d.src.ListProjects(ctx, model.ProjectScopeMember)
	}()
	go func() {
		defer wg.Done()
		created, errs[2] = d.src.ListTasks(ctx, model.TaskScopeCreated)
	}()
	go func() {
		defer wg.Done()
		given, errs[3] = d.src.ListTasks(ctx, model.TaskScopeAssigned)
	}()
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		logger.Warn("Failed to load categorization choices", logger.Err(err))
		return nil, nil, fmt.Errorf("loading projects and tasks: %w", err)
	}

	projects := MergeProjects(owned, member)
	tasks := MergeTasks(created, given)
	return projects, tasks, nil
}

// MergeProjects concatenates lists, keeping the first occurrence of each ID,
// and sorts the result by name.
func MergeProjects(lists ...[]model.Project) []model.Project {
	seen := make(map[int64]bool)
	var out []model.Project
	for _, list := range lists {
		for _, p := range list {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// MergeTasks is MergeProjects for tasks, sorted by title
func MergeTasks(lists ...[]model.Task) []model.Task {
	seen := make(map[int64]bool)
	var out []model.Task
	for _, list := range lists {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}

// SelectableTasks returns the tasks of projectID that can take time
func SelectableTasks(tasks []model.Task, projectID int64) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.ProjectID == projectID && !t.IsDone() {
			out = append(out, t)
		}
	}
	return out
}

// IsOpen reports whether the dialog is showing
func (d *Dialog) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Projects returns the merged project list
func (d *Dialog) Projects() []model.Project {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Project(nil), d.projects...)
}

// TasksFor returns the selectable tasks of projectID
func (d *Dialog) TasksFor(projectID int64) []model.Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SelectableTasks(d.tasks, projectID)
}

// Selection returns the chosen project, task and note
func (d *Dialog) Selection() (projectID, taskID int64, note string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.projectID, d.taskID, d.note
}

// Err returns the error of the last failed confirm
func (d *Dialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// SelectProject chooses a project. A task selection from another project is
// cleared.
func (d *Dialog) SelectProject(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrClosed
	}
	found := false
	for _, p := range d.projects {
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("project %d: %w", id, ErrNotSelectable)
	}

	if d.projectID != id {
		d.projectID = id
		d.taskID = 0
	}
	return nil
}

// SelectTask chooses a task of the selected project
func (d *Dialog) SelectTask(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrClosed
	}
	for _, t := range SelectableTasks(d.tasks, d.projectID) {
		if t.ID == id {
			d.taskID = id
			return nil
		}
	}
	return fmt.Errorf("task %d: %w", id, ErrNotSelectable)
}

// SetNote sets the optional description
func (d *Dialog) SetNote(note string) {
	d.mu.Lock()
	d.note = note
	d.mu.Unlock()
}

// CanConfirm reports whether both a project and a task are chosen and no
// submit is in flight
func (d *Dialog) CanConfirm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open && !d.submitting && d.projectID > 0 && d.taskID > 0
}

// Submitting reports whether a confirm is in flight
func (d *Dialog) Submitting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitting
}

// Confirm stops the timer with the current selection. The dialog closes on
// success and stays open with the error otherwise.
func (d *Dialog) Confirm(ctx context.Context) (*model.TimeLog, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	if d.submitting {
		d.mu.Unlock()
		return nil, timer.ErrRequestInFlight
	}
	if d.projectID == 0 || d.taskID == 0 {
		d.mu.Unlock()
		return nil, timer.ErrCategorizationRequired
	}
	req := model.FinalizeRequest{
		ProjectID:   d.projectID,
		TaskID:      d.taskID,
		Description: strings.TrimSpace(d.note),
	}
	d.submitting = true
	d.err = nil
	d.mu.Unlock()

	log, err := d.ctrl.Stop(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitting = false
	if err != nil {
		d.err = err
		return nil, err
	}
	d.reset()
	return log, nil
}

// Cancel closes the dialog and returns the timer to Running
func (d *Dialog) Cancel() {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return
	}
	d.reset()
	d.mu.Unlock()

	d.ctrl.CancelCategorization()
}

func (d *Dialog) reset() {
	d.open = false
	d.projects, d.tasks = nil, nil
	d.projectID, d.taskID, d.note, d.err = 0, 0, "", nil
}
