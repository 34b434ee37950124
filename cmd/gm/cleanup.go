package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/worktree"
	"github.com/ShayCichocki/gm/pkg/models"
)

var (
	cleanupForce    bool
	cleanupVerbose  bool
	cleanupDryRun   bool
	cleanupProjects bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned session worktrees and old projects",
	Long: `Clean up orphaned git worktrees and old project data.

This command:
  - Lists all gm session worktrees
  - Identifies orphans (no running session in the store)
  - Removes orphaned worktrees and their branches
  - Runs git worktree prune

With --projects flag:
  - Deletes completed/failed projects older than 30 days from the store

Use this after a crash or an aborted run.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "show each worktree as it's removed")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupProjects, "projects", false, "purge projects older than 30 days")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repoPath, err := findGitRoot(cfg.Repo.Path)
	if err != nil {
		return fmt.Errorf("find git repository: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	active := make(map[string]bool)
	projects, err := st.ListProjects(nil)
	if err == nil {
		for _, p := range projects {
			if p.Phase.Terminal() {
				continue
			}
			sessions, err := st.ListSessionsByProject(p.ID)
			if err != nil {
				continue
			}
			for _, s := range sessions {
				if s.Status == models.SessionRunning {
					active[s.ID] = true
				}
			}
		}
	} else if cleanupVerbose {
		fmt.Printf("warning: could not query active sessions: %v\n", err)
	}

	wt := worktree.New(repoPath, git.NewRunner(repoPath))
	orphans, err := wt.ListOrphans(active)
	if err != nil {
		return fmt.Errorf("list orphaned worktrees: %w", err)
	}

	if len(orphans) == 0 {
		fmt.Println("no orphaned worktrees found.")
	} else {
		fmt.Printf("found %d orphaned worktree(s):\n", len(orphans))
		for _, id := range orphans {
			fmt.Printf("  - %s\n", wt.Path(id))
		}

		if cleanupDryRun {
			fmt.Println("dry run mode - no worktrees were removed.")
		} else if cleanupForce || confirmRemoval() {
			for _, id := range orphans {
				wt.Discard(id)
				if cleanupVerbose {
					fmt.Printf("removed: %s\n", id)
				}
			}
			_ = wt.Prune()
			fmt.Printf("removed %d orphaned worktree(s).\n", len(orphans))
		} else {
			fmt.Println("worktree cleanup cancelled.")
		}
	}

	if cleanupProjects {
		return cleanupOldProjects(st)
	}
	return nil
}

func confirmRemoval() bool {
	fmt.Print("remove these worktrees? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func cleanupOldProjects(st interface {
	PurgeOldProjects(time.Duration) (int64, error)
}) error {
	const projectMaxAge = 30 * 24 * time.Hour

	if cleanupDryRun {
		fmt.Println("dry run: skipping project purge count (requires a mutating query).")
		return nil
	}

	purged, err := st.PurgeOldProjects(projectMaxAge)
	if err != nil {
		return fmt.Errorf("purge old projects: %w", err)
	}

	if purged > 0 {
		fmt.Printf("purged %d project(s) older than 30 days.\n", purged)
	} else {
		fmt.Println("no projects older than 30 days found.")
	}
	return nil
}

// findGitRoot finds the root of the git repository containing startDir.
func findGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a git repository")
		}
		dir = parent
	}
}
