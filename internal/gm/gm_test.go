package gm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/gm/internal/events"
	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/store"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// fakeGitRunner is a minimal git.Runner stand-in: only the operations the
// merge/analyze paths actually call are wired to behave meaningfully.
type fakeGitRunner struct {
	git.Runner

	changedFiles map[string][]string // sessionID -> files
	mergeErr     map[string]error    // branch -> error
	conflicted   []string
}

func (f *fakeGitRunner) MergeBase(branch1, branch2 string) (string, error) { return "base", nil }

func (f *fakeGitRunner) ChangedFilesBetween(ref1, ref2 string) ([]string, error) {
	// ref2 is the session branch "team/<id>".
	id := ref2
	if len(id) > 5 {
		id = id[5:]
	}
	return f.changedFiles[id], nil
}

func (f *fakeGitRunner) MergeNoFFMessage(branch, message string) error {
	if err, ok := f.mergeErr[branch]; ok {
		return err
	}
	return nil
}

func (f *fakeGitRunner) ConflictedFiles() ([]string, error) { return f.conflicted, nil }

func (f *fakeGitRunner) WorktreeRemoveOptionalForce(path string, force bool) error { return nil }
func (f *fakeGitRunner) DeleteBranch(name string) error                           { return nil }
func (f *fakeGitRunner) MergeAbort() error                                        { return nil }

func setupManagerStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedSession(t *testing.T, st *store.Store, projectID, sessionID string, status models.SessionStatus) {
	t.Helper()
	err := st.CreateSession(&models.AgentSession{
		ID:          sessionID,
		ProjectID:   projectID,
		TeamName:    "team-" + sessionID,
		Branch:      models.NewSessionBranch(sessionID),
		Status:      status,
		MergeStatus: models.MergePending,
		StartedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateSession(%s): %v", sessionID, err)
	}
}

func newTestManager(t *testing.T, st *store.Store) *Manager {
	t.Helper()
	return New(st, events.New(), nil, nil)
}

func seedProjectForGM(t *testing.T, st *store.Store, id string) *models.Project {
	t.Helper()
	p := &models.Project{
		ID:         id,
		RepoPath:   t.TempDir(),
		BaseBranch: "main",
		Phase:      models.PhaseCreated,
		CreatedAt:  time.Now(),
	}
	if err := st.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func TestAnalyzeMergeOrderSortsLeastConflictingFirst(t *testing.T) {
	st := setupManagerStore(t)
	m := newTestManager(t, st)
	seedProjectForGM(t, st, "proj1")

	seedSession(t, st, "proj1", "sessA", models.SessionCompleted)
	seedSession(t, st, "proj1", "sessB", models.SessionCompleted)
	seedSession(t, st, "proj1", "sessC", models.SessionCompleted)
	seedSession(t, st, "proj1", "sessD", models.SessionFailed)

	fg := &fakeGitRunner{changedFiles: map[string][]string{
		"sessA": {"a.go", "shared.go"},
		"sessB": {"b.go", "shared.go"},
		"sessC": {"c.go"},
	}}
	wt := worktree.New(t.TempDir(), fg)

	order, err := m.analyzeMergeOrder("proj1", wt, "main")
	if err != nil {
		t.Fatalf("analyzeMergeOrder: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries (sessD excluded)", order)
	}
	if order[0] != "sessC" {
		t.Errorf("order[0] = %q, want sessC (zero overlap)", order[0])
	}

	skipped, err := st.GetSession("sessD")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if skipped.MergeStatus != models.MergeSkipped {
		t.Errorf("sessD merge status = %v, want skipped", skipped.MergeStatus)
	}
}

func TestMergeSessionRecordsCleanMerge(t *testing.T) {
	st := setupManagerStore(t)
	m := newTestManager(t, st)
	project := seedProjectForGM(t, st, "proj1")
	seedSession(t, st, "proj1", "sessA", models.SessionCompleted)

	fg := &fakeGitRunner{}
	wt := worktree.New(project.RepoPath, fg)

	m.mergeSession(context.Background(), project, wt, "sessA", 0)

	s, err := st.GetSession("sessA")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.MergeStatus != models.MergeClean {
		t.Errorf("MergeStatus = %v, want merged", s.MergeStatus)
	}
}

func TestMergeSessionSkipsWhenMergeFailsWithoutConflictMarkers(t *testing.T) {
	st := setupManagerStore(t)
	m := newTestManager(t, st)
	project := seedProjectForGM(t, st, "proj1")
	seedSession(t, st, "proj1", "sessA", models.SessionCompleted)

	fg := &fakeGitRunner{mergeErr: map[string]error{"team/sessA": errUnresolvable}}
	wt := worktree.New(project.RepoPath, fg)

	m.mergeSession(context.Background(), project, wt, "sessA", 0)

	s, err := st.GetSession("sessA")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.MergeStatus != models.MergeSkipped {
		t.Errorf("MergeStatus = %v, want skipped", s.MergeStatus)
	}
}

func TestMergeSessionSkipsWhenConflictsCannotBeResolved(t *testing.T) {
	st := setupManagerStore(t)
	m := newTestManager(t, st)
	project := seedProjectForGM(t, st, "proj1")
	seedSession(t, st, "proj1", "sessA", models.SessionCompleted)

	// A merge failure with conflicted files triggers the repair-agent path,
	// which shells out to the real `claude` binary — unavailable in tests,
	// so resolution always fails and the session should end up skipped.
	fg := &fakeGitRunner{
		mergeErr:   map[string]error{"team/sessA": errUnresolvable},
		conflicted: []string{"x.go"},
	}
	wt := worktree.New(project.RepoPath, fg)

	m.mergeSession(context.Background(), project, wt, "sessA", 0)

	s, err := st.GetSession("sessA")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.MergeStatus != models.MergeSkipped {
		t.Errorf("MergeStatus = %v, want skipped", s.MergeStatus)
	}
}

var errUnresolvable = fmtError("merge conflict")

type fmtError string

func (e fmtError) Error() string { return string(e) }

// fakeCommandRunner is a gmexec.CommandRunner stand-in that returns scripted
// results instead of shelling out.
type fakeCommandRunner struct {
	calls   int
	results []bool
	output  string
}

func (f *fakeCommandRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	return nil, nil
}

func (f *fakeCommandRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	if f.results[idx] {
		return []byte(f.output), nil
	}
	return []byte(f.output), fmtError("command failed")
}

func (f *fakeCommandRunner) Exists(ctx context.Context, workDir, path string) bool { return false }

func TestRunBuildGateSkippedWhenNoBuildCommand(t *testing.T) {
	st := setupManagerStore(t)
	m := New(st, events.New(), nil, &fakeCommandRunner{})
	project := seedProjectForGM(t, st, "proj1")

	if !m.runBuildGate(context.Background(), project) {
		t.Error("expected runBuildGate to pass when no build command is configured")
	}
}

func TestRunBuildGatePassesOnFirstTry(t *testing.T) {
	st := setupManagerStore(t)
	runner := &fakeCommandRunner{results: []bool{true}}
	m := New(st, events.New(), nil, runner)
	project := seedProjectForGM(t, st, "proj1")
	project.BuildCmd = "make build"

	if !m.runBuildGate(context.Background(), project) {
		t.Error("expected runBuildGate to pass")
	}
	if runner.calls != 1 {
		t.Errorf("calls = %d, want 1", runner.calls)
	}
}

func TestRunBuildGateFailsAfterExhaustingRepairAttempts(t *testing.T) {
	st := setupManagerStore(t)
	runner := &fakeCommandRunner{results: []bool{false, false, false}, output: "compile error"}
	m := New(st, events.New(), nil, runner)
	project := seedProjectForGM(t, st, "proj1")
	project.BuildCmd = "make build"

	if m.runBuildGate(context.Background(), project) {
		t.Error("expected runBuildGate to fail when every attempt fails and repair is unavailable")
	}
	if runner.calls != maxBuildFixAttempts+1 {
		t.Errorf("calls = %d, want %d", runner.calls, maxBuildFixAttempts+1)
	}
}

func TestAllTerminalEmptyIsTrue(t *testing.T) {
	if !allTerminal(nil) {
		t.Error("no sessions should be vacuously terminal")
	}
}

func TestAllTerminalMixedIsFalse(t *testing.T) {
	sessions := []models.AgentSession{
		{Status: models.SessionCompleted},
		{Status: models.SessionRunning},
	}
	if allTerminal(sessions) {
		t.Error("expected false when a session is still running")
	}
}

func TestAllTerminalAllDoneIsTrue(t *testing.T) {
	sessions := []models.AgentSession{
		{Status: models.SessionCompleted},
		{Status: models.SessionFailed},
		{Status: models.SessionCancelled},
	}
	if !allTerminal(sessions) {
		t.Error("expected true when every session reached a terminal status")
	}
}

func TestFailUpdatesPhaseAndPublishesProjectDone(t *testing.T) {
	st := setupManagerStore(t)
	bus := events.New()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()
	m := New(st, bus, nil, nil)
	seedProjectForGM(t, st, "proj1")
	_ = st.UpdatePhase("proj1", models.PhaseBuilding, "")

	m.fail("proj1", models.PhaseBuilding, "boom")

	p, err := st.GetProject("proj1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Phase != models.PhaseFailed {
		t.Errorf("phase = %v, want failed", p.Phase)
	}
	if p.Error != "boom" {
		t.Errorf("error = %q, want boom", p.Error)
	}

	sawPhaseChange, sawDone := false, false
	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.Events:
			switch ev.Type {
			case models.EventPhaseChanged:
				sawPhaseChange = true
			case models.EventProjectDone:
				sawDone = true
				if ev.ProjectDone.Phase != models.PhaseFailed {
					t.Errorf("ProjectDone.Phase = %v, want failed", ev.ProjectDone.Phase)
				}
			}
		case <-time.After(time.Second):
			break
		}
	}
	if !sawPhaseChange || !sawDone {
		t.Errorf("sawPhaseChange=%v sawDone=%v", sawPhaseChange, sawDone)
	}
}

func TestFinalizeMarksProjectCompleted(t *testing.T) {
	st := setupManagerStore(t)
	m := New(st, events.New(), nil, nil)
	seedProjectForGM(t, st, "proj1")
	_ = st.UpdatePhase("proj1", models.PhaseTesting, "")

	m.finalize("proj1")

	p, err := st.GetProject("proj1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p.Phase != models.PhaseCompleted {
		t.Errorf("phase = %v, want completed", p.Phase)
	}
}

func TestWaitReturnsImmediatelyForUnknownProject(t *testing.T) {
	st := setupManagerStore(t)
	m := New(st, events.New(), nil, nil)
	if err := m.Wait(context.Background(), "never-launched"); err != nil {
		t.Errorf("Wait on unknown project = %v, want nil", err)
	}
}

func TestWaitUnblocksWhenActiveProjectIsRemoved(t *testing.T) {
	st := setupManagerStore(t)
	m := New(st, events.New(), nil, nil)

	done := make(chan struct{})
	m.mu.Lock()
	m.active["proj1"] = activeProject{cancel: func() {}, done: done}
	m.mu.Unlock()

	waitDone := make(chan error, 1)
	go func() { waitDone <- m.Wait(context.Background(), "proj1") }()

	close(done)

	select {
	case err := <-waitDone:
		if err != nil {
			t.Errorf("Wait returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after done was closed")
	}
}
