package server

import "fmt"

// migrate runs database migrations
func (s *Server) migrate() error {
	pk := s.dialect.serialPK()
	migrations := []string{
		fmt.Sprintf(migrationProjects, pk),
		migrationProjectMembers,
		fmt.Sprintf(migrationTasks, pk),
		fmt.Sprintf(migrationTimeLogs, pk),
		migrationTimeLogIndexes,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

const migrationProjects = `
CREATE TABLE IF NOT EXISTS projects (
    id %s,
    name TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '#4ECDC4',
    owner_id TEXT NOT NULL,
    created_at TEXT NOT NULL
)`

const migrationProjectMembers = `
CREATE TABLE IF NOT EXISTS project_members (
    project_id BIGINT NOT NULL REFERENCES projects(id),
    user_id TEXT NOT NULL,
    PRIMARY KEY (project_id, user_id)
)`

const migrationTasks = `
CREATE TABLE IF NOT EXISTS tasks (
    id %s,
    project_id BIGINT NOT NULL REFERENCES projects(id),
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'todo',
    created_by TEXT NOT NULL,
    assignee_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

const migrationTimeLogs = `
CREATE TABLE IF NOT EXISTS time_logs (
    id %s,
    user_id TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    project_id BIGINT REFERENCES projects(id),
    task_id BIGINT REFERENCES tasks(id),
    description TEXT NOT NULL DEFAULT '',
    duration_seconds BIGINT NOT NULL DEFAULT 0,
    closed_reason TEXT NOT NULL DEFAULT ''
)`

const migrationTimeLogIndexes = `
CREATE INDEX IF NOT EXISTS idx_time_logs_user ON time_logs(user_id, start_time)`
