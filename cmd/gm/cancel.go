package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/events"
	gmexec "github.com/ShayCichocki/gm/internal/exec"
	"github.com/ShayCichocki/gm/internal/gm"
	"github.com/ShayCichocki/gm/internal/launcher"
	"github.com/ShayCichocki/gm/pkg/models"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <project-id>",
	Short: "Mark a project failed as cancelled by the user",
	Long: `Cancel records the project as failed with "Cancelled by user".

This command runs in its own process and holds no handle on the pipeline or
sessions of the gm launch process that started the project, so it does not
stop them.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
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

	manager.CancelProject(args[0])
	if err := st.UpdatePhase(args[0], models.PhaseFailed, "Cancelled by user"); err != nil {
		return fmt.Errorf("record cancellation: %w", err)
	}

	fmt.Printf("cancelled project %s\n", args[0])
	return nil
}
