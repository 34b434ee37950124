// Package gm implements the General Manager pipeline: the state machine
// that launches a project's agent sessions, waits for them, merges their
// branches back onto the base branch in least-conflicting-first order, and
// gates completion on a clean build and test run.
package gm

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/gm/internal/events"
	gmexec "github.com/ShayCichocki/gm/internal/exec"
	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/launcher"
	"github.com/ShayCichocki/gm/internal/store"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// pollInterval is how often the orchestration loop checks whether a
// project's sessions have all finished.
const pollInterval = 5 * time.Second

// Team describes one launchable agent team definition, loaded from
// configuration.
type Team struct {
	Name        string
	Description string
}

// Manager drives General Manager projects end to end.
type Manager struct {
	store    *store.Store
	bus      *events.Bus
	launcher *launcher.Launcher
	runner   gmexec.CommandRunner

	mu     sync.Mutex
	active map[string]activeProject
}

type activeProject struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Manager.
func New(st *store.Store, bus *events.Bus, l *launcher.Launcher, runner gmexec.CommandRunner) *Manager {
	return &Manager{
		store:    st,
		bus:      bus,
		launcher: l,
		runner:   runner,
		active:   make(map[string]activeProject),
	}
}

// LaunchProject creates a project record, launches one agent session per
// requested team, and starts the orchestration pipeline in the background.
// It returns the new project's ID immediately; callers subscribe to the
// event bus or poll the store for progress. buildCmd and testCmd are shell
// commands run (via a shell) from the repository root: buildCmd after every
// successful merge and at the final build gate, testCmd only at the final
// test gate.
//
// If every team fails to launch, the project is immediately marked failed
// and orchestration never starts — there is nothing to merge, build, or
// test.
func (m *Manager) LaunchProject(ctx context.Context, name, repoPath, baseBranch, description, buildCmd, testCmd string, teams []Team) (string, error) {
	now := time.Now()
	projectID := models.NewProjectID(now, uuid.New().String()[:6])

	project := &models.Project{
		ID:          projectID,
		Name:        name,
		RepoPath:    repoPath,
		BaseBranch:  baseBranch,
		Description: description,
		BuildCmd:    buildCmd,
		TestCmd:     testCmd,
		Phase:       models.PhaseCreated,
		CreatedAt:   now,
	}
	if err := m.store.CreateProject(project); err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseLaunching, ""); err != nil {
		return "", fmt.Errorf("enter launching phase: %w", err)
	}
	m.publishPhase(projectID, models.PhaseCreated, models.PhaseLaunching)
	m.bus.Publish(models.Event{
		Type:      models.EventProjectStarted,
		ProjectID: projectID,
		Time:      time.Now(),
		ProjectStarted: &models.ProjectStartedPayload{
			Name:       name,
			AgentCount: len(teams),
		},
	})
	m.logf(projectID, "", models.LogInfo, "GM project %q (%s) started with %d agents", name, projectID, len(teams))

	wt := worktree.New(repoPath, git.NewRunner(repoPath))

	launched := 0
	for _, team := range teams {
		if err := m.launchSession(ctx, wt, projectID, team); err != nil {
			log.Printf("[gm] project %s: launch %s failed: %v", projectID, team.Name, err)
			m.logf(projectID, "", models.LogError, "failed to launch team %s: %v", team.Name, err)
			m.recordLaunchFailure(projectID, team.Name)
			continue
		}
		launched++
	}

	if launched == 0 {
		m.fail(projectID, models.PhaseLaunching, "No agents launched successfully")
		return projectID, nil
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseWaiting, ""); err != nil {
		log.Printf("[gm] project %s: %v", projectID, err)
	}
	m.publishPhase(projectID, models.PhaseLaunching, models.PhaseWaiting)

	projectCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.active[projectID] = activeProject{cancel: cancel, done: done}
	m.mu.Unlock()

	go m.orchestrate(projectCtx, projectID)

	return projectID, nil
}

// recordLaunchFailure inserts a placeholder session row for a team whose
// launch never produced a worktree or subprocess, so it still shows up in
// `gm status` instead of silently vanishing from the project.
func (m *Manager) recordLaunchFailure(projectID, teamName string) {
	session := &models.AgentSession{
		ID:              "failed-" + teamName,
		ProjectID:       projectID,
		TeamName:        teamName,
		Status:          models.SessionFailed,
		MergeStatus:     models.MergeSkipped,
		StartedAt:       time.Now(),
		MergeOrderIndex: -1,
	}
	if err := m.store.CreateSession(session); err != nil {
		log.Printf("[gm] project %s: record launch failure for %s: %v", projectID, teamName, err)
		return
	}
	now := time.Now()
	session.CompletedAt = &now
	_ = m.store.UpdateSessionStatus(session.ID, models.SessionFailed, -1)
}

// Wait blocks until the named project's orchestration goroutine has exited,
// or ctx is cancelled first. It returns immediately (nil) if the project is
// not currently active, whether because it already finished or was never
// launched by this Manager instance.
func (m *Manager) Wait(ctx context.Context, projectID string) error {
	m.mu.Lock()
	ap, ok := m.active[projectID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-ap.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) launchSession(ctx context.Context, wt *worktree.Manager, projectID string, team Team) error {
	sessionID := launcher.NewSessionID(time.Now())
	path, branch, err := wt.Create(sessionID)
	if err != nil {
		return err
	}

	session := &models.AgentSession{
		ID:              sessionID,
		ProjectID:       projectID,
		TeamName:        team.Name,
		Task:            team.Description,
		Branch:          branch,
		WorktreePath:    path,
		Status:          models.SessionRunning,
		MergeStatus:     models.MergePending,
		StartedAt:       time.Now(),
		MergeOrderIndex: -1,
	}
	if err := m.store.CreateSession(session); err != nil {
		wt.Discard(sessionID)
		return fmt.Errorf("persist session: %w", err)
	}

	m.bus.Publish(models.Event{
		Type:      models.EventAgentLaunched,
		ProjectID: projectID,
		Time:      time.Now(),
		AgentLaunched: &models.AgentLaunchedPayload{
			SessionID: sessionID,
			TeamName:  team.Name,
		},
	})

	resultCh := m.launcher.Launch(ctx, launcher.Task{
		SessionID:    sessionID,
		ProjectID:    projectID,
		TeamName:     team.Name,
		Description:  team.Description,
		WorktreePath: path,
	})

	go func() {
		result := <-resultCh
		if err := m.store.UpdateSessionStatus(sessionID, result.Status, result.ExitCode); err != nil {
			log.Printf("[gm] session %s: persist status: %v", sessionID, err)
		}
		if result.ArtifactFilename != "" {
			if err := m.store.SetArtifactFilename(sessionID, result.ArtifactFilename); err != nil {
				log.Printf("[gm] session %s: persist artifact filename: %v", sessionID, err)
			}
		}
	}()

	return nil
}

// CancelProject stops a project's in-flight orchestration and every
// currently running session belonging to it.
func (m *Manager) CancelProject(projectID string) {
	m.mu.Lock()
	ap, ok := m.active[projectID]
	m.mu.Unlock()
	if ok {
		ap.cancel()
	}

	sessions, err := m.store.ListSessionsByProject(projectID)
	if err != nil {
		return
	}
	for _, s := range sessions {
		if s.Status == models.SessionRunning {
			m.launcher.Cancel(s.ID, 5*time.Second)
		}
	}
}

// CancelAll stops every active project.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.CancelProject(id)
	}
}

// PushProject pushes the repository's current branch to its remote, surfacing
// git's own output on failure.
func (m *Manager) PushProject(projectID string) (string, error) {
	project, err := m.store.GetProject(projectID)
	if err != nil {
		return "", err
	}
	if project == nil {
		return "", fmt.Errorf("project %s not found", projectID)
	}

	runner := git.NewRunner(project.RepoPath)
	out, err := runner.Run("push")
	if err != nil {
		return out, fmt.Errorf("push: %w", err)
	}
	return out, nil
}

func (m *Manager) publishPhase(projectID string, from, to models.Phase) {
	m.bus.Publish(models.Event{
		Type:      models.EventPhaseChanged,
		ProjectID: projectID,
		Time:      time.Now(),
		PhaseChanged: &models.PhaseChangedPayload{
			From: from,
			To:   to,
		},
	})
}

func (m *Manager) logf(projectID, sessionID string, level models.LogLevel, format string, args ...any) {
	entry := &models.LogEntry{
		ProjectID: projectID,
		SessionID: sessionID,
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
	if err := m.store.AppendLog(entry); err != nil {
		log.Printf("[gm] append log: %v", err)
	}
	m.bus.Publish(models.Event{
		Type:      models.EventLog,
		ProjectID: projectID,
		Time:      entry.Timestamp,
		Log: &models.LogPayload{
			Level:   level,
			Message: entry.Message,
		},
	})
}
