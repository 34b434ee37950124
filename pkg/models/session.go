package models

import "time"

// SessionStatus is the status of a single agent session's own execution,
// independent of whether its branch has been merged yet.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// MergeStatus records what happened when a completed session's branch was
// folded back into the project's base branch.
type MergeStatus string

const (
	MergePending  MergeStatus = "pending"
	MergeResolved MergeStatus = "merged_resolved"
	MergeClean    MergeStatus = "merged"
	MergeSkipped  MergeStatus = "skipped"
)

// AgentSession is one team's worktree-isolated run within a project.
type AgentSession struct {
	ID           string
	ProjectID    string
	TeamName     string
	Task         string
	Branch       string
	WorktreePath string
	Status       SessionStatus
	MergeStatus  MergeStatus
	ExitCode     int
	PID          int
	StartedAt    time.Time
	CompletedAt  *time.Time

	// MergeOrderIndex is this session's position in the project's merge
	// order, or -1 until the merging phase has attempted its merge.
	MergeOrderIndex int
	// ArtifactFilename is the name of the JSON output file the launcher
	// wrote under the repository's outputs directory, or "" if none was
	// ever written.
	ArtifactFilename string
}

// NewSessionBranch returns the branch name a session's worktree is created on.
func NewSessionBranch(sessionID string) string {
	return "team/" + sessionID
}
