package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/internal/worktree"
)

var diffStat bool

var diffCmd = &cobra.Command{
	Use:   "diff <project-id> <session-id>",
	Short: "Show what a session's branch changed relative to its merge-base",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "show a diffstat summary instead of the full unified diff")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	projectID, sessionID := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	project, err := st.GetProject(projectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}

	wt := worktree.New(project.RepoPath, git.NewRunner(project.RepoPath))

	if diffStat {
		stat, base, err := wt.Stat(sessionID, project.BaseBranch)
		if err != nil {
			return fmt.Errorf("stat session %s: %w", sessionID, err)
		}
		fmt.Printf("base: %s\n%s", base, stat)
		return nil
	}

	out, base, err := wt.Diff(sessionID, project.BaseBranch)
	if err != nil {
		return fmt.Errorf("diff session %s: %w", sessionID, err)
	}
	fmt.Printf("base: %s\n%s", base, out)
	return nil
}
