package models

import "time"

// Project is a single General Manager run: one or more agent sessions
// launched against a shared repository and merged back onto its base branch.
type Project struct {
	ID          string
	Name        string
	RepoPath    string
	BaseBranch  string
	Description string
	BuildCmd    string
	TestCmd     string
	Phase       Phase
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string

	Counters Counters

	// BuildFixAttempts and TestFixAttempts record the repair-agent attempt
	// number reached by the most recent build/test gate run that needed
	// repair. Each such run (interleaved per-merge check or final gate)
	// overwrites the value; a run that passes without repair leaves it as is.
	BuildFixAttempts int
	TestFixAttempts  int

	// MergeOrder is the session ID sequence analyzeMergeOrder committed to,
	// persisted with the project row. Neither `gm status` nor `gm watch`
	// displays it.
	MergeOrder []string
	// CurrentMergingID is the session currently being merged, cleared once
	// the merge loop finishes.
	CurrentMergingID string
}

// NewProjectID builds a project identifier from a timestamp and a short
// random suffix, matching the scheme the original orchestrator uses for
// both project and session IDs (e.g. "20260731-143012-a1b2c3").
func NewProjectID(now time.Time, suffix string) string {
	return now.UTC().Format("20060102-150405") + "-" + suffix
}

// Counters summarizes a project's session and merge outcomes for status
// reporting: how many agents were launched, how many of those finished
// successfully or failed, and how many branches actually merged.
type Counters struct {
	AgentsLaunched  int
	AgentsCompleted int
	AgentsFailed    int
	Merged          int
}
