package model

import "time"

// TaskStatus is the workflow state of a task
type TaskStatus string

// Task statuses. Done is terminal: time must not be booked against it.
const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Task scopes understood by the log service
const (
	TaskScopeCreated  = "created"
	TaskScopeAssigned = "assigned"
)

// Task represents a unit of work inside a project
type Task struct {
	ID         int64      `json:"id"`
	ProjectID  int64      `json:"project_id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	CreatedBy  string     `json:"created_by"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsDone returns true if the task reached the terminal status
func (t *Task) IsDone() bool {
	return t.Status == TaskDone
}

// CreateTaskRequest is the body of POST /tasks
type CreateTaskRequest struct {
	ProjectID  int64  `json:"project_id"`
	Title      string `json:"title"`
	AssigneeID string `json:"assignee_id,omitempty"`
}

// UpdateTaskRequest is the body of PATCH /tasks/:id
type UpdateTaskRequest struct {
	Status TaskStatus `json:"status"`
}
