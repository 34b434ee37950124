package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/gm/pkg/models"
)

const projectColumns = `
	id, name, repo_path, base_branch, description, build_cmd, test_cmd, phase,
	created_at, started_at, completed_at, error,
	agents_launched, agents_completed, agents_failed, merged_count,
	build_fix_attempts, test_fix_attempts, merge_order, current_merging_id
`

// CreateProject inserts a new project row.
func (s *Store) CreateProject(p *models.Project) error {
	_, err := s.Exec(`
		INSERT INTO projects (
			id, name, repo_path, base_branch, description, build_cmd, test_cmd, phase,
			created_at, started_at, completed_at, error,
			agents_launched, agents_completed, agents_failed, merged_count,
			build_fix_attempts, test_fix_attempts, merge_order, current_merging_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.RepoPath, p.BaseBranch, p.Description, p.BuildCmd, p.TestCmd, string(p.Phase),
		formatTime(p.CreatedAt), formatNullableTime(p.StartedAt), formatNullableTime(p.CompletedAt), p.Error,
		p.Counters.AgentsLaunched, p.Counters.AgentsCompleted, p.Counters.AgentsFailed, p.Counters.Merged,
		p.BuildFixAttempts, p.TestFixAttempts, strings.Join(p.MergeOrder, ","), p.CurrentMergingID)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID, returning (nil, nil) if not found.
func (s *Store) GetProject(id string) (*models.Project, error) {
	row := s.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// UpdatePhase sets a project's phase, stamping started_at on first entry past
// created and completed_at once the phase becomes terminal.
func (s *Store) UpdatePhase(id string, phase models.Phase, errMsg string) error {
	p, err := s.GetProject(id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("update phase: project %s not found", id)
	}

	startedAt := formatNullableTime(p.StartedAt)
	if p.StartedAt == nil && phase != models.PhaseCreated {
		startedAt = formatTime(time.Now())
	}
	completedAt := formatNullableTime(p.CompletedAt)
	if phase.Terminal() {
		completedAt = formatTime(time.Now())
	}

	_, err = s.Exec(`
		UPDATE projects SET phase = ?, started_at = ?, completed_at = ?, error = ? WHERE id = ?
	`, string(phase), startedAt, completedAt, errMsg, id)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return nil
}

// SetAgentCounts updates a project's launched/completed/failed agent tallies.
func (s *Store) SetAgentCounts(id string, launched, completed, failed int) error {
	_, err := s.Exec(`
		UPDATE projects SET agents_launched = ?, agents_completed = ?, agents_failed = ? WHERE id = ?
	`, launched, completed, failed, id)
	if err != nil {
		return fmt.Errorf("set agent counts: %w", err)
	}
	return nil
}

// IncrementMergedCount bumps a project's merged branch tally by one and
// returns the new total.
func (s *Store) IncrementMergedCount(id string) (int, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("increment merged count: project %s not found", id)
	}
	total := p.Counters.Merged + 1
	if _, err := s.Exec(`UPDATE projects SET merged_count = ? WHERE id = ?`, total, id); err != nil {
		return 0, fmt.Errorf("increment merged count: %w", err)
	}
	return total, nil
}

// SetMergeOrder persists the session ID sequence analyzeMergeOrder computed.
func (s *Store) SetMergeOrder(id string, order []string) error {
	_, err := s.Exec(`UPDATE projects SET merge_order = ? WHERE id = ?`, strings.Join(order, ","), id)
	if err != nil {
		return fmt.Errorf("set merge order: %w", err)
	}
	return nil
}

// SetCurrentMerging records which session is presently being merged, or
// clears it when sessionID is "".
func (s *Store) SetCurrentMerging(id, sessionID string) error {
	_, err := s.Exec(`UPDATE projects SET current_merging_id = ? WHERE id = ?`, sessionID, id)
	if err != nil {
		return fmt.Errorf("set current merging: %w", err)
	}
	return nil
}

// SetBuildFixAttempts persists the build repair attempt number most recently
// reached by one of the project's build gate runs.
func (s *Store) SetBuildFixAttempts(id string, attempts int) error {
	_, err := s.Exec(`UPDATE projects SET build_fix_attempts = ? WHERE id = ?`, attempts, id)
	if err != nil {
		return fmt.Errorf("set build fix attempts: %w", err)
	}
	return nil
}

// SetTestFixAttempts persists the test repair attempt number most recently
// reached by one of the project's test gate runs.
func (s *Store) SetTestFixAttempts(id string, attempts int) error {
	_, err := s.Exec(`UPDATE projects SET test_fix_attempts = ? WHERE id = ?`, attempts, id)
	if err != nil {
		return fmt.Errorf("set test fix attempts: %w", err)
	}
	return nil
}

// ListProjects lists all projects, most recent first, optionally filtered by phase.
func (s *Store) ListProjects(phase *models.Phase) ([]models.Project, error) {
	var rows *sql.Rows
	var err error
	if phase != nil {
		rows, err = s.Query(`
			SELECT `+projectColumns+` FROM projects WHERE phase = ? ORDER BY created_at DESC
		`, string(*phase))
	} else {
		rows, err = s.Query(`
			SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var createdAt, mergeOrder string
	var startedAt, completedAt, errMsg, description sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.RepoPath, &p.BaseBranch, &description, &p.BuildCmd, &p.TestCmd, &p.Phase,
		&createdAt, &startedAt, &completedAt, &errMsg,
		&p.Counters.AgentsLaunched, &p.Counters.AgentsCompleted, &p.Counters.AgentsFailed, &p.Counters.Merged,
		&p.BuildFixAttempts, &p.TestFixAttempts, &mergeOrder, &p.CurrentMergingID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if description.Valid {
		p.Description = description.String
	}
	if errMsg.Valid {
		p.Error = errMsg.String
	}
	if mergeOrder != "" {
		p.MergeOrder = strings.Split(mergeOrder, ",")
	}
	p.CreatedAt, _ = parseTime(createdAt)
	p.StartedAt = parseNullableTime(startedAt)
	p.CompletedAt = parseNullableTime(completedAt)
	return &p, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
