package models

import "testing"

func TestPhaseValid(t *testing.T) {
	if !PhaseMerging.Valid() {
		t.Error("PhaseMerging should be valid")
	}
	if Phase("bogus").Valid() {
		t.Error("unknown phase should not be valid")
	}
}

func TestPhaseTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseCompleted, PhaseFailed} {
		if !p.Terminal() {
			t.Errorf("%s should be terminal", p)
		}
	}
	for _, p := range []Phase{PhaseCreated, PhaseLaunching, PhaseWaiting, PhaseAnalyzing, PhaseMerging, PhaseBuilding, PhaseTesting} {
		if p.Terminal() {
			t.Errorf("%s should not be terminal", p)
		}
	}
}

func TestCanTransitionHappyPath(t *testing.T) {
	path := []Phase{PhaseCreated, PhaseLaunching, PhaseWaiting, PhaseAnalyzing, PhaseMerging, PhaseBuilding, PhaseTesting, PhaseCompleted}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Errorf("%s -> %s should be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransitionSkippingBuildAndTest(t *testing.T) {
	if !PhaseMerging.CanTransition(PhaseCompleted) {
		t.Error("merging should be able to skip directly to completed when no build/test command is declared")
	}
	if !PhaseBuilding.CanTransition(PhaseCompleted) {
		t.Error("building should be able to skip directly to completed when no test command is declared")
	}
}

func TestCanTransitionToFailedFromAnyNonTerminalPhase(t *testing.T) {
	for _, p := range []Phase{PhaseCreated, PhaseLaunching, PhaseWaiting, PhaseAnalyzing, PhaseMerging, PhaseBuilding, PhaseTesting} {
		if !p.CanTransition(PhaseFailed) {
			t.Errorf("%s should be able to transition to failed", p)
		}
	}
}

func TestCanTransitionFromTerminalPhaseIsAlwaysIllegal(t *testing.T) {
	if PhaseCompleted.CanTransition(PhaseFailed) {
		t.Error("completed should not transition anywhere")
	}
	if PhaseFailed.CanTransition(PhaseCompleted) {
		t.Error("failed should not transition anywhere")
	}
}

func TestCanTransitionRejectsInvalidJump(t *testing.T) {
	if PhaseCreated.CanTransition(PhaseMerging) {
		t.Error("created should not be able to jump directly to merging")
	}
}
