package store

import (
	"database/sql"
	"fmt"

	"github.com/ShayCichocki/gm/pkg/models"
)

// AppendLog records a single log entry for a project (and optionally a session).
func (s *Store) AppendLog(entry *models.LogEntry) error {
	var sessionID any
	if entry.SessionID != "" {
		sessionID = entry.SessionID
	}
	_, err := s.Exec(`
		INSERT INTO log_entries (project_id, session_id, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ProjectID, sessionID, string(entry.Level), entry.Message, formatTime(entry.Timestamp))
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogs returns a project's log entries in chronological order, optionally
// limited to those after (exclusive of) afterID for incremental polling.
func (s *Store) ListLogs(projectID string, afterID int64) ([]models.LogEntry, error) {
	rows, err := s.Query(`
		SELECT id, project_id, session_id, level, message, timestamp
		FROM log_entries WHERE project_id = ? AND id > ? ORDER BY id
	`, projectID, afterID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var sessionID sql.NullString
		var ts string
		if err := rows.Scan(&e.ID, &e.ProjectID, &sessionID, &e.Level, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if sessionID.Valid {
			e.SessionID = sessionID.String
		}
		e.Timestamp, _ = parseTime(ts)
		entries = append(entries, e)
	}
	return entries, nil
}
