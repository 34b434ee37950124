package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// checkClaudeCLI verifies that the `claude` CLI is available on PATH.
func checkClaudeCLI() error {
	if _, err := exec.LookPath("claude"); err != nil {
		return fmt.Errorf("claude CLI not found in PATH\n\n" +
			"gm shells out to the Claude Code CLI to run agent sessions and repairs.\n\n" +
			"Install it with:\n" +
			"  npm install -g @anthropic-ai/claude-code\n\n" +
			"For more information, visit:\n" +
			"  https://docs.anthropic.com/en/docs/claude-code")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "gm",
	Short: "General Manager: multi-agent orchestration supervisor",
	Long: `gm launches teams of agents into isolated git worktrees, waits for them
to finish, merges their branches back in least-conflicting-first order, and
gates the result on a clean build and test run.

Available commands:
  launch     Launch a new project
  status     Show a project's phase, sessions, and logs
  watch      Live-tail a project's progress in a terminal UI
  diff       Show what a session's branch changed relative to its merge-base
  cancel     Cancel a running project
  retry      Retry a failed project
  push       Push a project's repository
  cleanup    Remove orphaned worktrees and old projects
  stats      Show aggregate stats and historical execution cost breakdown
  version    Show version information

Use "gm [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version()
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(cleanupCmd)
}
