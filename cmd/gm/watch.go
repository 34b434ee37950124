package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/store"
	"github.com/ShayCichocki/gm/internal/watch"
)

var watchPollInterval = time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <project-id>",
	Short: "Watch a project's progress",
	Long: `Watch polls the project's persisted state once a second and renders
session, merge, build, and test progress for a project.

It has no way to attach to another process's in-memory event bus, so what
you see lags the true state by up to one poll interval. The project's own
"gm launch" process is what drives the pipeline forward; watch can be
attached, detached, and re-attached freely without affecting orchestration.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	projectID := args[0]

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
		return fmt.Errorf("look up project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}

	app := watch.New(projectID)
	program := tea.NewProgram(app)

	stopPoll := make(chan struct{})
	go pollProject(st, projectID, program, stopPoll)
	defer close(stopPoll)

	_, err = program.Run()
	return err
}

// pollProject re-reads a project's phase, sessions, and new log rows every
// watchPollInterval and feeds the result into the running bubbletea program
// as a watch.SnapshotMsg, until stop is closed.
func pollProject(st *store.Store, projectID string, program *tea.Program, stop <-chan struct{}) {
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	var lastLogID int64

	poll := func() bool {
		project, err := st.GetProject(projectID)
		if err != nil || project == nil {
			return false
		}
		sessions, _ := st.ListSessionsByProject(projectID)
		newLogs, err := st.ListLogs(projectID, lastLogID)
		if err == nil {
			for _, l := range newLogs {
				if l.ID > lastLogID {
					lastLogID = l.ID
				}
			}
		}

		program.Send(watch.SnapshotMsg{Project: project, Sessions: sessions, NewLogs: newLogs})
		return project.Phase.Terminal()
	}

	if poll() {
		program.Send(watch.DoneMsg{})
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if poll() {
				program.Send(watch.DoneMsg{})
				return
			}
		}
	}
}
