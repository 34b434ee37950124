package models

import "time"

// LogLevel is the severity of a LogEntry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one line of the project's audit trail, persisted so a project's
// full history survives process restarts and can be replayed by a late
// subscriber.
type LogEntry struct {
	ID        int64
	ProjectID string
	SessionID string // empty when the entry isn't scoped to a single session
	Level     LogLevel
	Message   string
	Timestamp time.Time
}

// GateDecision is the operator's resolution of a DecisionGate.
type GateDecision string

const (
	GateApprove GateDecision = "approve"
	GateRetry   GateDecision = "retry"
	GateAbort   GateDecision = "abort"
)

// DecisionGate is a point where the pipeline stalled waiting on an operator
// decision — currently only reached when a project lands in PhaseFailed and
// awaits Retry, Push, or abandonment.
type DecisionGate struct {
	ProjectID string
	Phase     Phase
	Reason    string
	RaisedAt  time.Time
	Decision  GateDecision
	DecidedAt *time.Time
}
