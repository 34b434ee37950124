package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/events"
	gmexec "github.com/ShayCichocki/gm/internal/exec"
	"github.com/ShayCichocki/gm/internal/gm"
	"github.com/ShayCichocki/gm/internal/launcher"
)

var pushCmd = &cobra.Command{
	Use:   "push <project-id>",
	Short: "Push a project's repository to its remote",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
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

	out, err := manager.PushProject(args[0])
	if err != nil {
		fmt.Println(out)
		return fmt.Errorf("push project: %w", err)
	}

	fmt.Println(out)
	return nil
}
