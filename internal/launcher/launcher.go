// Package launcher spawns and supervises the one-shot `claude` CLI
// subprocesses that carry out a single agent session's work inside its
// worktree.
package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/gm/internal/events"
	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/pkg/models"
)

// allowedTools is the fixed tool list handed to every launched agent.
const allowedTools = "Edit,Write,Bash,Read,Glob,Grep"

// cancelGrace is how long a cancelled session's subprocess has to exit after
// SIGTERM before it is killed with SIGKILL.
const cancelGrace = 10 * time.Second

// Result is the outcome of a single Launch call, delivered once the
// subprocess and its auto-commit bookkeeping have finished.
type Result struct {
	SessionID        string
	Status           models.SessionStatus
	ExitCode         int
	Output           string
	ArtifactFilename string
	Error            error
}

// Task describes one agent session to launch.
type Task struct {
	SessionID    string
	ProjectID    string
	TeamName     string
	Description  string
	WorktreePath string
}

// Launcher spawns agent sessions and tracks the ones currently running so
// they can be cancelled.
type Launcher struct {
	repoPath   string
	outputsDir string
	bus        *events.Bus

	mu      sync.Mutex
	running map[string]*running
}

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Launcher whose sessions write artifacts under outputsDir.
func New(repoPath, outputsDir string, bus *events.Bus) *Launcher {
	return &Launcher{
		repoPath:   repoPath,
		outputsDir: outputsDir,
		bus:        bus,
		running:    make(map[string]*running),
	}
}

// Launch starts one agent session in the background and returns a channel
// that receives its single Result once the session finishes.
func (l *Launcher) Launch(ctx context.Context, task Task) <-chan Result {
	resultCh := make(chan Result, 1)

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.mu.Lock()
	l.running[task.SessionID] = &running{cancel: cancel, done: done}
	l.mu.Unlock()

	l.bus.Publish(models.Event{
		Type:      models.EventSessionStarted,
		ProjectID: task.ProjectID,
		Time:      time.Now(),
		SessionStarted: &models.SessionStartedPayload{
			SessionID: task.SessionID,
			TeamName:  task.TeamName,
		},
	})

	go func() {
		defer close(done)
		defer close(resultCh)
		defer func() {
			l.mu.Lock()
			delete(l.running, task.SessionID)
			l.mu.Unlock()
		}()

		result := l.run(sessionCtx, task)

		l.bus.Publish(models.Event{
			Type:      models.EventSessionFinished,
			ProjectID: task.ProjectID,
			Time:      time.Now(),
			SessionFinished: &models.SessionFinishedPayload{
				SessionID: task.SessionID,
				Status:    result.Status,
				ExitCode:  result.ExitCode,
			},
		})

		resultCh <- result
	}()

	return resultCh
}

// Cancel cancels a running session: its subprocess receives SIGTERM and is
// killed with SIGKILL if it is still running cancelGrace later. Cancel blocks
// until the session's goroutine has finished or timeout has elapsed,
// whichever comes first.
func (l *Launcher) Cancel(sessionID string, timeout time.Duration) {
	l.mu.Lock()
	r, ok := l.running[sessionID]
	l.mu.Unlock()
	if !ok {
		return
	}

	r.cancel()

	select {
	case <-r.done:
	case <-time.After(timeout):
	}
}

// CancelAll cancels every currently running session, waiting up to 5 seconds
// for each one to finish.
func (l *Launcher) CancelAll() {
	l.mu.Lock()
	ids := make([]string, 0, len(l.running))
	for id := range l.running {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		l.Cancel(id, 5*time.Second)
	}
}

func (l *Launcher) run(ctx context.Context, task Task) Result {
	prompt := fmt.Sprintf("Team: %s\nTask: %s", task.TeamName, task.Description)

	cmd := exec.CommandContext(ctx, "claude", "--allowedTools", allowedTools, "-p", prompt)
	cmd.Dir = task.WorktreePath
	cmd.Env = sessionEnv(task.WorktreePath, l.repoPath)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = cancelGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{SessionID: task.SessionID, Status: models.SessionFailed, Error: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{SessionID: task.SessionID, Status: models.SessionFailed, Error: err}
	}

	if err := cmd.Start(); err != nil {
		return Result{SessionID: task.SessionID, Status: models.SessionFailed, Error: err}
	}

	output, killed := l.watch(task, cmd, stdout, stderr)

	err = cmd.Wait()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil && exitCode == 0 {
		exitCode = -1
	}

	status := models.SessionCompleted
	if killed || exitCode != 0 {
		status = models.SessionFailed
	}
	if ctx.Err() == context.Canceled {
		status = models.SessionCancelled
	}

	l.autoCommit(task)
	l.cleanupBuildDir(task.WorktreePath)
	filename := l.writeArtifact(task, status, exitCode, output)

	return Result{
		SessionID:        task.SessionID,
		Status:           status,
		ExitCode:         exitCode,
		Output:           output,
		ArtifactFilename: filename,
	}
}

// sessionEnv builds the environment a launched session runs under: the
// parent's environment, plus the flag enabling experimental agent-team mode,
// plus a shared Cargo build cache when the repo is a Rust project so
// concurrent sessions don't each rebuild dependencies from scratch.
func sessionEnv(worktreePath, repoPath string) []string {
	env := append(os.Environ(), "CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS=1")
	if _, err := os.Stat(filepath.Join(worktreePath, "Cargo.toml")); err == nil {
		env = append(env, "CARGO_TARGET_DIR="+filepath.Join(repoPath, ".shared-target"))
	}
	return env
}

// autoCommit commits any changes a session left uncommitted in its worktree.
// Sessions are expected to commit their own work; this is a safety net so an
// agent that merely edited files without committing still contributes a
// mergeable branch.
func (l *Launcher) autoCommit(task Task) {
	runner := git.NewRunner(task.WorktreePath)
	hasChanges, err := runner.HasChanges()
	if err != nil || !hasChanges {
		return
	}
	_ = runner.Add(".")
	_ = runner.Commit(fmt.Sprintf("feat: %s session %s", task.TeamName, task.SessionID))
}

// cleanupBuildDir best-effort removes a worktree-local target/ directory so
// stale build artifacts don't survive into the merge.
func (l *Launcher) cleanupBuildDir(worktreePath string) {
	_ = os.RemoveAll(filepath.Join(worktreePath, "target"))
}

// NewSessionID mirrors the timestamp-plus-random-suffix scheme used for
// project IDs.
func NewSessionID(now time.Time) string {
	return now.UTC().Format("20060102-150405") + "-" + uuid.New().String()[:6]
}
