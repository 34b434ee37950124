// Package models holds the shared data types for the General Manager pipeline:
// projects, agent sessions, log entries, and the events published about them.
package models

// Phase is a project's externally visible lifecycle state.
type Phase string

const (
	PhaseCreated   Phase = "created"
	PhaseLaunching Phase = "launching"
	PhaseWaiting   Phase = "waiting"
	PhaseAnalyzing Phase = "analyzing"
	PhaseMerging   Phase = "merging"
	PhaseBuilding  Phase = "building"
	PhaseTesting   Phase = "testing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Valid returns true if p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseCreated, PhaseLaunching, PhaseWaiting, PhaseAnalyzing, PhaseMerging,
		PhaseBuilding, PhaseTesting, PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if p is an absorbing state.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// transitions enumerates the legal edges of the phase DAG (see SPEC_FULL.md §4.4).
// Every non-terminal phase can also transition directly to failed.
var transitions = map[Phase][]Phase{
	PhaseCreated:   {PhaseLaunching},
	PhaseLaunching: {PhaseWaiting, PhaseFailed},
	PhaseWaiting:   {PhaseAnalyzing, PhaseFailed},
	PhaseAnalyzing: {PhaseMerging, PhaseFailed},
	PhaseMerging:   {PhaseBuilding, PhaseTesting, PhaseCompleted, PhaseFailed},
	PhaseBuilding:  {PhaseTesting, PhaseCompleted, PhaseFailed},
	PhaseTesting:   {PhaseCompleted, PhaseFailed},
}

// CanTransition reports whether moving from p to next is a legal edge of the
// phase DAG. Terminal phases never transition except via an explicit retry,
// which callers model as a fresh walk starting from the retried phase.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}
