package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ShayCichocki/gm/pkg/models"
)

const sessionColumns = `
	id, project_id, team_name, task, branch, worktree_path, status, merge_status,
	exit_code, pid, started_at, completed_at, merge_order_index, artifact_filename
`

// CreateSession inserts a new agent session row.
func (s *Store) CreateSession(a *models.AgentSession) error {
	_, err := s.Exec(`
		INSERT INTO agent_sessions (
			id, project_id, team_name, task, branch, worktree_path, status, merge_status,
			exit_code, pid, started_at, completed_at, merge_order_index, artifact_filename
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ProjectID, a.TeamName, a.Task, a.Branch, a.WorktreePath, string(a.Status), string(a.MergeStatus),
		a.ExitCode, a.PID, formatTime(a.StartedAt), formatNullableTime(a.CompletedAt), a.MergeOrderIndex, a.ArtifactFilename)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, returning (nil, nil) if not found.
func (s *Store) GetSession(id string) (*models.AgentSession, error) {
	row := s.QueryRow(`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// UpdateSessionStatus updates a session's own execution status and exit code.
func (s *Store) UpdateSessionStatus(id string, status models.SessionStatus, exitCode int) error {
	var completedAt any
	if status == models.SessionCompleted || status == models.SessionFailed || status == models.SessionCancelled {
		completedAt = formatTime(time.Now())
	}
	_, err := s.Exec(`
		UPDATE agent_sessions SET status = ?, exit_code = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ?
	`, string(status), exitCode, completedAt, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// UpdateMergeStatus updates a session's merge outcome.
func (s *Store) UpdateMergeStatus(id string, status models.MergeStatus) error {
	_, err := s.Exec(`UPDATE agent_sessions SET merge_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update merge status: %w", err)
	}
	return nil
}

// SetMergeOrderIndex records a session's position in its project's merge
// order; the merging phase sets it when it attempts that session's merge.
func (s *Store) SetMergeOrderIndex(id string, index int) error {
	_, err := s.Exec(`UPDATE agent_sessions SET merge_order_index = ? WHERE id = ?`, index, id)
	if err != nil {
		return fmt.Errorf("set merge order index: %w", err)
	}
	return nil
}

// SetArtifactFilename records the JSON output file the launcher wrote for a
// finished session.
func (s *Store) SetArtifactFilename(id, filename string) error {
	_, err := s.Exec(`UPDATE agent_sessions SET artifact_filename = ? WHERE id = ?`, filename, id)
	if err != nil {
		return fmt.Errorf("set artifact filename: %w", err)
	}
	return nil
}

// ListSessionsByProject lists all sessions for a project, oldest first.
func (s *Store) ListSessionsByProject(projectID string) ([]models.AgentSession, error) {
	rows, err := s.Query(`
		SELECT `+sessionColumns+` FROM agent_sessions WHERE project_id = ? ORDER BY started_at
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions by project: %w", err)
	}
	defer rows.Close()

	var sessions []models.AgentSession
	for rows.Next() {
		a, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *a)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*models.AgentSession, error) {
	var a models.AgentSession
	var task, worktreePath, artifactFilename sql.NullString
	var pid sql.NullInt64
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&a.ID, &a.ProjectID, &a.TeamName, &task, &a.Branch, &worktreePath, &a.Status, &a.MergeStatus,
		&a.ExitCode, &pid, &startedAt, &completedAt, &a.MergeOrderIndex, &artifactFilename)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if task.Valid {
		a.Task = task.String
	}
	if worktreePath.Valid {
		a.WorktreePath = worktreePath.String
	}
	if artifactFilename.Valid {
		a.ArtifactFilename = artifactFilename.String
	}
	if pid.Valid {
		a.PID = int(pid.Int64)
	}
	a.StartedAt, _ = parseTime(startedAt)
	a.CompletedAt = parseNullableTime(completedAt)
	return &a, nil
}
