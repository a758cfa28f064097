package model

import (
	"errors"
	"time"
)

// ErrLogNotFound is returned when the log service has no record for an ID
var ErrLogNotFound = errors.New("time log not found")

// Reasons a log was closed
const (
	ClosedFinalized  = "finalized"
	ClosedTimeout    = "timeout"
	ClosedSuperseded = "superseded"
)

// TimeLog is the server's record of a tracked interval. An open log has no
// EndTime; the duration is computed by the server when the log closes.
type TimeLog struct {
	ID              int64      `json:"id"`
	UserID          string     `json:"user_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ProjectID       *int64     `json:"project_id,omitempty"`
	TaskID          *int64     `json:"task_id,omitempty"`
	Description     string     `json:"description,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	ClosedReason    string     `json:"closed_reason,omitempty"`
}

// IsOpen returns true while the log has no end instant
func (l *TimeLog) IsOpen() bool {
	return l.EndTime == nil
}

// IsCategorized returns true once a project and task are attached
func (l *TimeLog) IsCategorized() bool {
	return l.ProjectID != nil && l.TaskID != nil
}

// FinalizeRequest closes an open log against a project and task
type FinalizeRequest struct {
	ProjectID   int64  `json:"project_id"`
	TaskID      int64  `json:"task_id"`
	Description string `json:"description,omitempty"`
}

// Complete reports whether both mandatory categorization fields are set
func (r FinalizeRequest) Complete() bool {
	return r.ProjectID > 0 && r.TaskID > 0
}

// DurationBetween returns whole seconds between start and end, never negative
func DurationBetween(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
