package models

import "time"

// EventType tags the concrete payload carried by an Event.
type EventType string

const (
	EventProjectStarted        EventType = "project_started"
	EventPhaseChanged          EventType = "phase_changed"
	EventAgentLaunched         EventType = "agent_launched"
	EventAgentCompleted        EventType = "agent_completed"
	EventSessionStarted        EventType = "session_started"
	EventSessionOutput         EventType = "session_output"
	EventSessionFinished       EventType = "session_finished"
	EventMergeOrderDetermined  EventType = "merge_order_determined"
	EventMergeStarted          EventType = "merge_started"
	EventMergeConflict         EventType = "merge_conflict"
	EventMergeResolved         EventType = "merge_resolved"
	EventMergeCompleted        EventType = "merge_completed"
	EventMergeSkipped          EventType = "merge_skipped"
	EventBuildStarted          EventType = "build_started"
	EventBuildResult           EventType = "build_result"
	EventBuildFixAttempt       EventType = "build_fix_attempt"
	EventTestStarted           EventType = "test_started"
	EventTestResult            EventType = "test_result"
	EventTestFixAttempt        EventType = "test_fix_attempt"
	EventResourceError         EventType = "resource_error"
	EventProjectDone           EventType = "project_done"
	EventLog                   EventType = "log"
)

// Event is the envelope published on the event bus. Exactly one of the
// pointer fields below is populated, matching Type.
type Event struct {
	Type      EventType
	ProjectID string
	Time      time.Time

	ProjectStarted       *ProjectStartedPayload       `json:",omitempty"`
	PhaseChanged         *PhaseChangedPayload         `json:",omitempty"`
	AgentLaunched        *AgentLaunchedPayload        `json:",omitempty"`
	AgentCompleted       *AgentCompletedPayload       `json:",omitempty"`
	SessionStarted       *SessionStartedPayload       `json:",omitempty"`
	SessionOutput        *SessionOutputPayload        `json:",omitempty"`
	SessionFinished      *SessionFinishedPayload      `json:",omitempty"`
	MergeOrderDetermined *MergeOrderDeterminedPayload `json:",omitempty"`
	MergeStarted         *MergeStartedPayload         `json:",omitempty"`
	MergeConflict        *MergeConflictPayload        `json:",omitempty"`
	MergeResolved        *MergeResolvedPayload        `json:",omitempty"`
	MergeCompleted       *MergeCompletedPayload       `json:",omitempty"`
	MergeSkipped         *MergeSkippedPayload         `json:",omitempty"`
	BuildStarted         *BuildStartedPayload         `json:",omitempty"`
	BuildResult          *BuildResultPayload          `json:",omitempty"`
	BuildFixAttempt      *BuildFixAttemptPayload      `json:",omitempty"`
	TestStarted          *TestStartedPayload          `json:",omitempty"`
	TestResult           *TestResultPayload           `json:",omitempty"`
	TestFixAttempt       *TestFixAttemptPayload       `json:",omitempty"`
	ResourceError        *ResourceErrorPayload        `json:",omitempty"`
	ProjectDone          *ProjectDonePayload          `json:",omitempty"`
	Log                  *LogPayload                  `json:",omitempty"`
}

type ProjectStartedPayload struct {
	Name       string
	AgentCount int
}

type PhaseChangedPayload struct {
	From Phase
	To   Phase
}

// AgentLaunchedPayload marks a session's launch having been accepted by the
// pipeline (a worktree exists and the session row is persisted). It is
// published just before the launcher starts the subprocess, and is distinct
// from the launcher's own per-process SessionStarted event.
type AgentLaunchedPayload struct {
	SessionID string
	TeamName  string
}

// AgentCompletedPayload is published once waitForCompletion first observes a
// session in a terminal status.
type AgentCompletedPayload struct {
	SessionID string
	Status    SessionStatus
}

type SessionStartedPayload struct {
	SessionID string
	TeamName  string
}

// SessionOutputPayload carries one line of a session's stdout or stderr,
// matching the original's team_progress stream events.
type SessionOutputPayload struct {
	SessionID string
	Stream    string // "stdout" or "stderr"
	Line      string
}

type SessionFinishedPayload struct {
	SessionID string
	Status    SessionStatus
	ExitCode  int
}

type MergeOrderDeterminedPayload struct {
	Order  []string
	Scores map[string]int
}

type MergeStartedPayload struct {
	SessionID string
	Index     int
}

type MergeConflictPayload struct {
	SessionID       string
	ConflictedFiles []string
}

type MergeResolvedPayload struct {
	SessionID string
	ByAgent   bool
}

// MergeCompletedPayload marks a plain, conflict-free merge landing cleanly.
// Conflicted merges that get resolved publish MergeResolvedPayload instead;
// merges that are abandoned publish MergeSkippedPayload.
type MergeCompletedPayload struct {
	SessionID string
}

type MergeSkippedPayload struct {
	SessionID string
	Reason    string
}

type BuildStartedPayload struct {
	Attempt int
}

type BuildResultPayload struct {
	Attempt int
	Success bool
	Output  string
}

type BuildFixAttemptPayload struct {
	Attempt int
}

type TestStartedPayload struct {
	Attempt int
}

type TestResultPayload struct {
	Attempt int
	Success bool
	Output  string
}

type TestFixAttemptPayload struct {
	Attempt int
}

type ResourceErrorPayload struct {
	SessionID string
	Pattern   string
}

type ProjectDonePayload struct {
	Phase Phase
	Error string
}

type LogPayload struct {
	Level   LogLevel
	Message string
}
