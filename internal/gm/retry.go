package gm

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// RetryProject re-attempts a failed project: sessions previously recorded
// skipped are re-merged, and the build/test gates run again. Only valid for
// a project currently in PhaseFailed.
func (m *Manager) RetryProject(ctx context.Context, projectID string) error {
	project, err := m.store.GetProject(projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}
	if project.Phase != models.PhaseFailed {
		return fmt.Errorf("project %s is not failed (phase %s)", projectID, project.Phase)
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseMerging, ""); err != nil {
		return err
	}
	m.publishPhase(projectID, models.PhaseFailed, models.PhaseMerging)

	wt := worktree.New(project.RepoPath, git.NewRunner(project.RepoPath))

	sessions, err := m.store.ListSessionsByProject(projectID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.MergeStatus == models.MergeSkipped && s.Status == models.SessionCompleted {
			if m.mergeSession(ctx, project, wt, s.ID, s.MergeOrderIndex) {
				if total, err := m.store.IncrementMergedCount(projectID); err == nil {
					project.Counters.Merged = total
				}
			}
		}
	}
	_ = m.store.SetCurrentMerging(projectID, "")

	if err := m.store.UpdatePhase(projectID, models.PhaseBuilding, ""); err != nil {
		return err
	}
	m.publishPhase(projectID, models.PhaseMerging, models.PhaseBuilding)

	if !m.runBuildGate(ctx, project) {
		m.fail(projectID, models.PhaseBuilding, "Build failed after all fix attempts")
		return nil
	}

	if err := m.store.UpdatePhase(projectID, models.PhaseTesting, ""); err != nil {
		return err
	}
	m.publishPhase(projectID, models.PhaseBuilding, models.PhaseTesting)

	if !m.runTestGate(ctx, project) {
		m.fail(projectID, models.PhaseTesting, "tests did not pass after repair attempts")
		return nil
	}

	m.finalize(projectID)
	return nil
}
