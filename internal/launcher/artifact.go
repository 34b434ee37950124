package launcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/gm/pkg/models"
)

// artifact is the shape written to outputsDir for each finished session,
// matching the historical-backfill contract consumed by the directory
// watcher.
type artifact struct {
	SessionID   string    `json:"session_id"`
	TeamName    string    `json:"team_name"`
	Status      string    `json:"status"`
	ExitCode    int       `json:"exit_code"`
	Output      string    `json:"output"`
	CompletedAt time.Time `json:"completed_at"`
}

// writeArtifact best-effort writes a session's result as a JSON file under
// outputsDir, returning the filename written (relative to outputsDir) so the
// caller can persist it against the session row, or "" if nothing was
// written. A write failure here must never fail the session itself.
func (l *Launcher) writeArtifact(task Task, status models.SessionStatus, exitCode int, output string) string {
	if l.outputsDir == "" {
		return ""
	}
	if err := os.MkdirAll(l.outputsDir, 0755); err != nil {
		return ""
	}

	a := artifact{
		SessionID:   task.SessionID,
		TeamName:    task.TeamName,
		Status:      string(status),
		ExitCode:    exitCode,
		Output:      output,
		CompletedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return ""
	}

	filename := "teams-" + task.SessionID + ".json"
	if err := os.WriteFile(filepath.Join(l.outputsDir, filename), data, 0644); err != nil {
		return ""
	}
	return filename
}
