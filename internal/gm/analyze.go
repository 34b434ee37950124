package gm

import (
	"fmt"
	"sort"
	"time"

	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

// analyzeMergeOrder computes the order in which a project's completed
// sessions should be merged. Each session's overlap score is the sum, over
// every other completed session, of the number of files the two sessions
// both touched; sessions are merged ascending by that score so the
// least-conflicting sessions land first. Sort is stable, so sessions tied on
// score merge in the order they were launched.
//
// Sessions that failed or were cancelled are excluded — they have no branch
// worth merging. A completed session with zero changed files is still
// included: it merges as a no-op and its absence would make an otherwise
// successful team vanish from the project silently.
func (m *Manager) analyzeMergeOrder(projectID string, wt *worktree.Manager, baseBranch string) ([]string, error) {
	sessions, err := m.store.ListSessionsByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var completed []models.AgentSession
	for _, s := range sessions {
		if s.Status == models.SessionCompleted {
			completed = append(completed, s)
		} else {
			_ = m.store.UpdateMergeStatus(s.ID, models.MergeSkipped)
		}
	}

	filesByID := make(map[string]map[string]bool, len(completed))
	for _, s := range completed {
		files, err := wt.FilesChanged(s.ID, baseBranch)
		if err != nil {
			return nil, fmt.Errorf("files changed for %s: %w", s.ID, err)
		}
		set := make(map[string]bool, len(files))
		for _, f := range files {
			set[f] = true
		}
		filesByID[s.ID] = set
	}

	scores := make(map[string]int, len(completed))
	for _, a := range completed {
		total := 0
		for _, b := range completed {
			if a.ID == b.ID {
				continue
			}
			total += overlapCount(filesByID[a.ID], filesByID[b.ID])
		}
		scores[a.ID] = total
	}

	order := make([]string, len(completed))
	for i, s := range completed {
		order[i] = s.ID
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] < scores[order[j]]
	})

	_ = m.store.SetMergeOrder(projectID, order)
	m.bus.Publish(models.Event{
		Type:      models.EventMergeOrderDetermined,
		ProjectID: projectID,
		Time:      time.Now(),
		MergeOrderDetermined: &models.MergeOrderDeterminedPayload{
			Order:  order,
			Scores: scores,
		},
	})
	m.logf(projectID, "", models.LogInfo, "merge order determined: %v", order)

	return order, nil
}

func overlapCount(a, b map[string]bool) int {
	count := 0
	for f := range a {
		if b[f] {
			count++
		}
	}
	return count
}
