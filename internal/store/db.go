// Package store provides SQLite-based persistence for General Manager
// projects, agent sessions, and log entries.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps an SQLite database connection with GM-specific operations.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the project-local store path, rooted under the
// repository's .gm directory.
func DefaultPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".gm", "state.db")
}

// Open opens a SQLite database at path, creating parent directories as
// needed, and enables WAL mode plus foreign key enforcement.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations, recording each applied
// version in schema_version so Migrate is safe to call on every startup.
func (s *Store) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Projects},
		{2, migrationV2Sessions},
		{3, migrationV3Logs},
		{4, migrationV4HistoricalExecutions},
		{5, migrationV5ProjectAndSessionDetail},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Projects = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	repo_path TEXT NOT NULL,
	base_branch TEXT NOT NULL,
	description TEXT,
	phase TEXT NOT NULL DEFAULT 'created',
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_projects_phase ON projects(phase);
`

const migrationV2Sessions = `
CREATE TABLE IF NOT EXISTS agent_sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	team_name TEXT NOT NULL,
	task TEXT,
	branch TEXT NOT NULL,
	worktree_path TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	merge_status TEXT NOT NULL DEFAULT 'pending',
	exit_code INTEGER NOT NULL DEFAULT 0,
	pid INTEGER,
	started_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON agent_sessions(project_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON agent_sessions(status);
`

const migrationV3Logs = `
CREATE TABLE IF NOT EXISTS log_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	session_id TEXT,
	level TEXT NOT NULL DEFAULT 'info',
	message TEXT NOT NULL,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logs_project_id ON log_entries(project_id);
`

const migrationV4HistoricalExecutions = `
CREATE TABLE IF NOT EXISTS historical_executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL UNIQUE,
	timestamp DATETIME NOT NULL,
	mode TEXT NOT NULL DEFAULT 'unknown',
	global_client_mode TEXT,
	agent_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	fail_count INTEGER NOT NULL DEFAULT 0,
	estimated_cost REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS historical_agent_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES historical_executions(id) ON DELETE CASCADE,
	agent TEXT NOT NULL,
	status TEXT NOT NULL,
	output TEXT,
	error TEXT,
	client_mode TEXT,
	timestamp TEXT,
	estimated_cost REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_historical_results_execution ON historical_agent_results(execution_id);
`

const migrationV5ProjectAndSessionDetail = `
ALTER TABLE projects ADD COLUMN name TEXT NOT NULL DEFAULT '';
ALTER TABLE projects ADD COLUMN build_cmd TEXT NOT NULL DEFAULT '';
ALTER TABLE projects ADD COLUMN test_cmd TEXT NOT NULL DEFAULT '';
ALTER TABLE projects ADD COLUMN agents_launched INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN agents_completed INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN agents_failed INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN merged_count INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN build_fix_attempts INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN test_fix_attempts INTEGER NOT NULL DEFAULT 0;
ALTER TABLE projects ADD COLUMN merge_order TEXT NOT NULL DEFAULT '';
ALTER TABLE projects ADD COLUMN current_merging_id TEXT NOT NULL DEFAULT '';

ALTER TABLE agent_sessions ADD COLUMN merge_order_index INTEGER NOT NULL DEFAULT -1;
ALTER TABLE agent_sessions ADD COLUMN artifact_filename TEXT NOT NULL DEFAULT '';
`

// Exec executes a query that doesn't return rows.
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (s *Store) Query(query string, args ...any) (*sql.Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (s *Store) QueryRow(query string, args ...any) *sql.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.QueryRow(query, args...)
}

// Transaction runs fn within a transaction, rolling back on error.
func (s *Store) Transaction(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// PurgeOldProjects deletes terminal-phase projects created before the cutoff,
// cascading to their sessions and log entries. Returns the number deleted.
func (s *Store) PurgeOldProjects(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := s.Exec(`
		DELETE FROM projects
		WHERE created_at < ? AND phase IN ('completed', 'failed')
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old projects: %w", err)
	}
	return result.RowsAffected()
}
