package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/gm/internal/events"
	"github.com/ShayCichocki/gm/pkg/models"
)

// Launch shells out to the real `claude` binary, which is never present in a
// test environment. That failure is itself a well-defined code path (the
// subprocess never starts), so these tests exercise the bookkeeping around
// Launch/Cancel rather than a successful agent run.

func TestLaunchPublishesStartedAndFinishedEvents(t *testing.T) {
	bus := events.New()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	l := New(t.TempDir(), "", bus)
	resultCh := l.Launch(context.Background(), Task{
		SessionID:    "sess1",
		ProjectID:    "proj1",
		TeamName:     "backend",
		Description:  "do work",
		WorktreePath: t.TempDir(),
	})

	var result Result
	select {
	case result = <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for launch result")
	}

	if result.Status != models.SessionFailed {
		t.Errorf("status = %v, want SessionFailed (claude binary is unavailable in tests)", result.Status)
	}

	var gotStarted, gotFinished bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events:
			switch ev.Type {
			case models.EventSessionStarted:
				gotStarted = true
				if ev.SessionStarted.SessionID != "sess1" {
					t.Errorf("SessionStarted.SessionID = %q, want sess1", ev.SessionStarted.SessionID)
				}
			case models.EventSessionFinished:
				gotFinished = true
				if ev.SessionFinished.SessionID != "sess1" {
					t.Errorf("SessionFinished.SessionID = %q, want sess1", ev.SessionFinished.SessionID)
				}
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	if !gotStarted || !gotFinished {
		t.Errorf("gotStarted=%v gotFinished=%v", gotStarted, gotFinished)
	}
}

func TestCancelOnUnknownSessionIsANoOp(t *testing.T) {
	l := New(t.TempDir(), "", events.New())
	l.Cancel("never-launched", 10*time.Millisecond)
}

func TestCancelAllWithNoRunningSessionsReturnsImmediately(t *testing.T) {
	l := New(t.TempDir(), "", events.New())
	done := make(chan struct{})
	go func() {
		l.CancelAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CancelAll blocked with nothing running")
	}
}

func TestLaunchRemovesSessionFromRunningAfterFinish(t *testing.T) {
	bus := events.New()
	l := New(t.TempDir(), "", bus)
	resultCh := l.Launch(context.Background(), Task{
		SessionID:    "sess1",
		ProjectID:    "proj1",
		TeamName:     "backend",
		WorktreePath: t.TempDir(),
	})
	<-resultCh

	l.mu.Lock()
	_, stillRunning := l.running["sess1"]
	l.mu.Unlock()
	if stillRunning {
		t.Error("expected session to be removed from running map after it finished")
	}
}

func TestNewSessionIDIsUniquePerCall(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	a := NewSessionID(now)
	b := NewSessionID(now)
	if a == b {
		t.Error("expected distinct session ids even for the same timestamp")
	}
	wantPrefix := "20260305-143000-"
	if len(a) < len(wantPrefix) || a[:len(wantPrefix)] != wantPrefix {
		t.Errorf("NewSessionID = %q, want prefix %q", a, wantPrefix)
	}
}

func TestSessionEnvIncludesAgentTeamsFlag(t *testing.T) {
	env := sessionEnv(t.TempDir(), t.TempDir())
	found := false
	for _, kv := range env {
		if kv == "CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS=1" {
			found = true
		}
	}
	if !found {
		t.Error("expected CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS=1 in session env")
	}
}

func TestSessionEnvAddsCargoTargetDirForRustProjects(t *testing.T) {
	worktree := t.TempDir()
	if err := os.WriteFile(filepath.Join(worktree, "Cargo.toml"), []byte("[package]\n"), 0644); err != nil {
		t.Fatalf("write Cargo.toml: %v", err)
	}
	repo := t.TempDir()

	env := sessionEnv(worktree, repo)
	found := false
	for _, kv := range env {
		if kv == "CARGO_TARGET_DIR="+filepath.Join(repo, ".shared-target") {
			found = true
		}
	}
	if !found {
		t.Error("expected CARGO_TARGET_DIR to be set for a Rust worktree")
	}
}
