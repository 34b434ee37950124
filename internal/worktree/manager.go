// Package worktree manages the per-session git worktrees the General
// Manager pipeline uses to isolate concurrent agent runs.
package worktree

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/gm/internal/git"
)

// Dir is the directory, relative to a repository's root, that holds all
// session worktrees.
const Dir = ".worktrees"

// BranchPrefix namespaces session branches away from the user's own branches.
const BranchPrefix = "team"

// Manager creates, inspects, merges, and discards session worktrees against
// a single host repository.
type Manager struct {
	repoPath string
	runner   git.Runner
}

// New returns a Manager rooted at repoPath, using runner for git operations.
func New(repoPath string, runner git.Runner) *Manager {
	return &Manager{repoPath: repoPath, runner: runner}
}

// BranchName returns the branch a session's worktree lives on.
func BranchName(sessionID string) string {
	return BranchPrefix + "/" + sessionID
}

// Path returns the worktree path for a session: repoPath/.worktrees/<id>.
func (m *Manager) Path(sessionID string) string {
	return filepath.Join(m.repoPath, Dir, sessionID)
}

// Create branches off the repository's current HEAD and adds a worktree for
// it. On failure to add the worktree, the branch is force-deleted so the
// repo is left exactly as it was found.
func (m *Manager) Create(sessionID string) (path, branch string, err error) {
	branch = BranchName(sessionID)
	path = m.Path(sessionID)

	if err := m.runner.CreateBranch(branch); err != nil {
		return "", "", fmt.Errorf("create session branch: %w", err)
	}

	if err := m.runner.WorktreeAdd(path, branch); err != nil {
		_ = m.runner.DeleteBranch(branch)
		return "", "", fmt.Errorf("add worktree: %w", err)
	}

	return path, branch, nil
}

// List returns the session IDs with a live worktree on a team/* branch.
func (m *Manager) List() ([]string, error) {
	out, err := m.runner.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var ids []string
	for _, block := range strings.Split(out, "\n\n") {
		var branch string
		for _, line := range strings.Split(block, "\n") {
			if strings.HasPrefix(line, "branch refs/heads/"+BranchPrefix+"/") {
				branch = strings.TrimPrefix(line, "branch refs/heads/")
			}
		}
		if branch == "" {
			continue
		}
		ids = append(ids, strings.TrimPrefix(branch, BranchPrefix+"/"))
	}
	return ids, nil
}

// FilesChanged returns the files a session's branch has touched relative to
// its merge-base with the repository's base branch.
func (m *Manager) FilesChanged(sessionID, baseBranch string) ([]string, error) {
	branch := BranchName(sessionID)
	base, err := m.runner.MergeBase(baseBranch, branch)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}
	files, err := m.runner.ChangedFilesBetween(base, branch)
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}
	return files, nil
}

// Diff returns the unified diff between a session's merge-base with
// baseBranch and the tip of its branch, plus the merge-base commit used.
func (m *Manager) Diff(sessionID, baseBranch string) (diff, base string, err error) {
	branch := BranchName(sessionID)
	base, err = m.runner.MergeBase(baseBranch, branch)
	if err != nil {
		return "", "", fmt.Errorf("merge base: %w", err)
	}
	diff, err = m.runner.DiffBetween(base, branch)
	if err != nil {
		return "", "", fmt.Errorf("diff: %w", err)
	}
	return diff, base, nil
}

// Stat returns the `git diff --stat` summary between a session's merge-base
// with baseBranch and the tip of its branch, plus the merge-base commit used.
func (m *Manager) Stat(sessionID, baseBranch string) (stat, base string, err error) {
	branch := BranchName(sessionID)
	base, err = m.runner.MergeBase(baseBranch, branch)
	if err != nil {
		return "", "", fmt.Errorf("merge base: %w", err)
	}
	stat, err = m.runner.Run("diff", "--stat", base, branch)
	if err != nil {
		return "", "", fmt.Errorf("diff --stat: %w", err)
	}
	return stat, base, nil
}

// Merge removes the session's worktree (so its working copy no longer holds
// the branch checked out) and merges the branch into the repository's
// current HEAD with --no-ff, then deletes the branch. Worktree removal and
// branch deletion failures are non-fatal — matching the original's
// best-effort cleanup — but a merge failure is returned so the caller can
// drive conflict resolution.
func (m *Manager) Merge(sessionID string) error {
	branch := BranchName(sessionID)
	path := m.Path(sessionID)

	_ = m.runner.WorktreeRemoveOptionalForce(path, true)

	msg := fmt.Sprintf("Merge team session %s", sessionID)
	if err := m.runner.MergeNoFFMessage(branch, msg); err != nil {
		return fmt.Errorf("merge %s: %w", branch, err)
	}

	_ = m.runner.DeleteBranch(branch)
	return nil
}

// AbortMerge aborts an in-progress merge left behind by a failed Merge call.
func (m *Manager) AbortMerge() error {
	return m.runner.MergeAbort()
}

// ConflictedFiles returns the files git has marked unmerged in the current
// in-progress merge.
func (m *Manager) ConflictedFiles() ([]string, error) {
	return m.runner.ConflictedFiles()
}

// Discard force-removes a session's worktree and branch. It always succeeds
// from the caller's point of view: a session that never produced a usable
// result should never block cleanup.
func (m *Manager) Discard(sessionID string) {
	path := m.Path(sessionID)
	branch := BranchName(sessionID)
	_ = m.runner.WorktreeRemoveOptionalForce(path, true)
	_ = m.runner.DeleteBranch(branch)
}

// ListOrphans returns worktree session IDs with no corresponding entry in
// activeSessionIDs — candidates for cleanup after a crash or an aborted run.
func (m *Manager) ListOrphans(activeSessionIDs map[string]bool) ([]string, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, id := range all {
		if !activeSessionIDs[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans, nil
}

// Prune removes stale worktree administrative files left behind after a
// worktree directory was deleted out from under git.
func (m *Manager) Prune() error {
	return m.runner.WorktreePruneExpireNow()
}
