package gm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// mergeSession merges one completed session's branch into the project's
// base branch. A clean merge is recorded as merged. A conflicting
// merge is handed to a one-shot repair agent, run from the host repository's
// working directory (not the session's own worktree, which no longer exists
// once the merge attempt has removed it) — if the agent resolves every
// conflict and the merge commit lands, the session is recorded
// merged_resolved; otherwise the merge is aborted, the session's branch is
// discarded, and the session is recorded skipped so later phases proceed
// without it. It reports whether the session ended up merged (cleanly or
// via conflict resolution), which the caller uses to track merged_count and
// decide whether to run the interleaved build check.
func (m *Manager) mergeSession(ctx context.Context, project *models.Project, wt *worktree.Manager, sessionID string, index int) bool {
	_ = m.store.SetCurrentMerging(project.ID, sessionID)
	_ = m.store.SetMergeOrderIndex(sessionID, index)
	m.bus.Publish(models.Event{
		Type:      models.EventMergeStarted,
		ProjectID: project.ID,
		Time:      time.Now(),
		MergeStarted: &models.MergeStartedPayload{
			SessionID: sessionID,
			Index:     index,
		},
	})

	err := wt.Merge(sessionID)
	if err == nil {
		_ = m.store.UpdateMergeStatus(sessionID, models.MergeClean)
		m.bus.Publish(models.Event{
			Type:      models.EventMergeCompleted,
			ProjectID: project.ID,
			Time:      time.Now(),
			MergeCompleted: &models.MergeCompletedPayload{
				SessionID: sessionID,
			},
		})
		return true
	}

	conflicted, cerr := wt.ConflictedFiles()
	if cerr != nil || len(conflicted) == 0 {
		m.abortAndSkip(project, wt, sessionID, "merge failed with no conflict markers: "+err.Error())
		return false
	}

	m.bus.Publish(models.Event{
		Type:      models.EventMergeConflict,
		ProjectID: project.ID,
		Time:      time.Now(),
		MergeConflict: &models.MergeConflictPayload{
			SessionID:       sessionID,
			ConflictedFiles: conflicted,
		},
	})

	if m.resolveConflicts(ctx, project, sessionID, conflicted) {
		_ = m.store.UpdateMergeStatus(sessionID, models.MergeResolved)
		m.bus.Publish(models.Event{
			Type:      models.EventMergeResolved,
			ProjectID: project.ID,
			Time:      time.Now(),
			MergeResolved: &models.MergeResolvedPayload{
				SessionID: sessionID,
				ByAgent:   true,
			},
		})
		return true
	}

	m.abortAndSkip(project, wt, sessionID, "conflicts not resolved by repair agent")
	return false
}

// resolveConflicts asks a repair agent to resolve the conflicted files left
// by a failed merge, then verifies the merge is actually clean before
// committing it.
func (m *Manager) resolveConflicts(ctx context.Context, project *models.Project, sessionID string, conflicted []string) bool {
	prompt := fmt.Sprintf(
		"Resolve the merge conflicts in the following files, keeping the intent of both sides where possible, and stage each resolved file with `git add`:\n%s",
		strings.Join(conflicted, "\n"),
	)

	if !runRepairAgent(ctx, project.RepoPath, prompt) {
		return false
	}

	runner := git.NewRunner(project.RepoPath)
	remaining, err := runner.ConflictedFiles()
	if err != nil || len(remaining) > 0 {
		return false
	}

	if _, err := runner.Run("commit", "--no-edit"); err != nil {
		_ = runner.Add(".")
		if err := runner.Commit(fmt.Sprintf("Resolve merge conflicts for %s", sessionID)); err != nil {
			return false
		}
	}

	return true
}

func (m *Manager) abortAndSkip(project *models.Project, wt *worktree.Manager, sessionID, reason string) {
	_ = wt.AbortMerge()
	wt.Discard(sessionID)
	_ = m.store.UpdateMergeStatus(sessionID, models.MergeSkipped)
	m.logf(project.ID, sessionID, models.LogWarn, "skipping merge for %s: %s", sessionID, reason)
	m.bus.Publish(models.Event{
		Type:      models.EventMergeSkipped,
		ProjectID: project.ID,
		Time:      time.Now(),
		MergeSkipped: &models.MergeSkippedPayload{
			SessionID: sessionID,
			Reason:    reason,
		},
	})
}
