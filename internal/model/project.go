package model

import "time"

// Project groups tasks that tracked time can be booked against
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultProjectColor is used when a project is created without a color
const DefaultProjectColor = "#4ECDC4"

// Project list scopes understood by the log service
const (
	ProjectScopeOwned  = "owned"
	ProjectScopeMember = "member"
)

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	Name    string   `json:"name"`
	Color   string   `json:"color,omitempty"`
	Members []string `json:"members,omitempty"`
}
