package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/events"
	gmexec "github.com/ShayCichocki/gm/internal/exec"
	"github.com/ShayCichocki/gm/internal/gm"
	"github.com/ShayCichocki/gm/internal/launcher"
)

var retryCmd = &cobra.Command{
	Use:   "retry <project-id>",
	Short: "Retry a failed project: re-merge skipped sessions and re-run the gates",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	if err := checkClaudeCLI(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := events.New()
	l := launcher.New(cfg.Repo.Path, cfg.Repo.OutputsDir, bus)
	runner := gmexec.NewRunner()
	manager := gm.New(st, bus, l, runner)

	if err := manager.RetryProject(context.Background(), args[0]); err != nil {
		return fmt.Errorf("retry project: %w", err)
	}

	fmt.Printf("retried project %s\n", args[0])
	return nil
}
