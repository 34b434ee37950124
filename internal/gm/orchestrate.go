package gm

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// orchestrate drives a single project through its remaining phases. It is
// started as a background goroutine from LaunchProject and runs until the
// project reaches a terminal phase or ctx is cancelled. A panic anywhere in
// the pipeline is recovered here, logged with its stack, and turned into an
// ordinary project failure rather than taking down the process.
func (m *Manager) orchestrate(ctx context.Context, projectID string) {
	defer func() {
		m.mu.Lock()
		ap, ok := m.active[projectID]
		delete(m.active, projectID)
		m.mu.Unlock()
		if ok {
			close(ap.done)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[gm] project %s: panic in orchestrate: %v\n%s", projectID, r, debug.Stack())
			m.fail(projectID, models.PhaseMerging, fmt.Sprintf("internal error: %v", r))
		}
	}()

	project, err := m.store.GetProject(projectID)
	if err != nil || project == nil {
		log.Printf("[gm] project %s: lookup failed: %v", projectID, err)
		return
	}

	if err := m.waitForCompletion(ctx, projectID); err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = "Cancelled"
		}
		m.fail(projectID, models.PhaseWaiting, reason)
		return
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseAnalyzing, ""); err != nil {
		log.Printf("[gm] project %s: %v", projectID, err)
	}
	m.publishPhase(projectID, models.PhaseWaiting, models.PhaseAnalyzing)

	wt := worktree.New(project.RepoPath, git.NewRunner(project.RepoPath))
	order, err := m.analyzeMergeOrder(projectID, wt, project.BaseBranch)
	if err != nil {
		m.fail(projectID, models.PhaseAnalyzing, err.Error())
		return
	}
	if len(order) == 0 {
		m.fail(projectID, models.PhaseAnalyzing, "No successful agents to merge")
		return
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseMerging, ""); err != nil {
		log.Printf("[gm] project %s: %v", projectID, err)
	}
	m.publishPhase(projectID, models.PhaseAnalyzing, models.PhaseMerging)

	mergedCount := 0
	for idx, sessionID := range order {
		if ctx.Err() != nil {
			m.fail(projectID, models.PhaseMerging, "Cancelled")
			return
		}

		merged := m.mergeSession(ctx, project, wt, sessionID, idx)
		if !merged {
			continue
		}

		mergedCount++
		if total, err := m.store.IncrementMergedCount(projectID); err == nil {
			project.Counters.Merged = total
		}

		// Per the merging phase's interleaved build gate: after every
		// successful merge, if a build command is declared, run the build
		// gate, including its full repair loop. The result never aborts the
		// project — only the final building phase does that; a failure here
		// is logged as a warning and merging continues.
		if project.BuildCmd != "" {
			if ok := m.runBuildGate(ctx, project); !ok {
				m.logf(projectID, sessionID, models.LogWarn, "build broken after merging %s, continuing...", sessionID)
			}
		}
	}
	_ = m.store.SetCurrentMerging(projectID, "")

	if mergedCount == 0 {
		m.fail(projectID, models.PhaseMerging, "No branches merged successfully")
		return
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseBuilding, ""); err != nil {
		log.Printf("[gm] project %s: %v", projectID, err)
	}
	m.publishPhase(projectID, models.PhaseMerging, models.PhaseBuilding)

	if ok := m.runBuildGate(ctx, project); !ok {
		reason := "Build failed after all fix attempts"
		if ctx.Err() != nil {
			reason = "Cancelled"
		}
		m.fail(projectID, models.PhaseBuilding, reason)
		return
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseTesting, ""); err != nil {
		log.Printf("[gm] project %s: %v", projectID, err)
	}
	m.publishPhase(projectID, models.PhaseBuilding, models.PhaseTesting)

	if ok := m.runTestGate(ctx, project); !ok {
		reason := "tests did not pass after repair attempts"
		if ctx.Err() != nil {
			reason = "Cancelled"
		}
		m.fail(projectID, models.PhaseTesting, reason)
		return
	}

	m.finalize(projectID)
}

// waitForCompletion blocks until every session belonging to the project has
// reached a terminal status, polling the store at pollInterval. Each session
// observed transitioning to terminal for the first time publishes
// agent_completed, and the project's launched/completed/failed tallies are
// kept in step with what's actually in the store.
func (m *Manager) waitForCompletion(ctx context.Context, projectID string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	seenTerminal := make(map[string]bool)

	for {
		sessions, err := m.store.ListSessionsByProject(projectID)
		if err != nil {
			return err
		}

		launched, completed, failed := 0, 0, 0
		for _, s := range sessions {
			launched++
			switch s.Status {
			case models.SessionCompleted:
				completed++
			case models.SessionFailed, models.SessionCancelled:
				failed++
			}
			if !isTerminal(s.Status) || seenTerminal[s.ID] {
				continue
			}
			seenTerminal[s.ID] = true
			m.bus.Publish(models.Event{
				Type:      models.EventAgentCompleted,
				ProjectID: projectID,
				Time:      time.Now(),
				AgentCompleted: &models.AgentCompletedPayload{
					SessionID: s.ID,
					Status:    s.Status,
				},
			})
		}
		_ = m.store.SetAgentCounts(projectID, launched, completed, failed)

		if allTerminal(sessions) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTerminal(status models.SessionStatus) bool {
	switch status {
	case models.SessionCompleted, models.SessionFailed, models.SessionCancelled:
		return true
	default:
		return false
	}
}

func allTerminal(sessions []models.AgentSession) bool {
	if len(sessions) == 0 {
		return true
	}
	for _, s := range sessions {
		if !isTerminal(s.Status) {
			return false
		}
	}
	return true
}

func (m *Manager) fail(projectID string, phase models.Phase, reason string) {
	if err := m.store.UpdatePhase(projectID, models.PhaseFailed, reason); err != nil {
		log.Printf("[gm] project %s: record failure: %v", projectID, err)
	}
	m.logf(projectID, "", models.LogError, "project failed in %s: %s", phase, reason)
	m.publishPhase(projectID, phase, models.PhaseFailed)
	m.bus.Publish(models.Event{
		Type:      models.EventProjectDone,
		ProjectID: projectID,
		Time:      time.Now(),
		ProjectDone: &models.ProjectDonePayload{
			Phase: models.PhaseFailed,
			Error: reason,
		},
	})
}

func (m *Manager) finalize(projectID string) {
	if err := m.store.UpdatePhase(projectID, models.PhaseCompleted, ""); err != nil {
		log.Printf("[gm] project %s: record completion: %v", projectID, err)
	}
	m.logf(projectID, "", models.LogInfo, "project completed")
	m.publishPhase(projectID, models.PhaseTesting, models.PhaseCompleted)
	m.bus.Publish(models.Event{
		Type:      models.EventProjectDone,
		ProjectID: projectID,
		Time:      time.Now(),
		ProjectDone: &models.ProjectDonePayload{
			Phase: models.PhaseCompleted,
		},
	})
}
