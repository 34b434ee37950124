package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show a project's phase, sessions, and recent logs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		projects, err := st.ListProjects(nil)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		if len(projects) == 0 {
			fmt.Println("no projects found")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%s  %-10s  %s\n", p.ID, phaseColor(p.Phase), p.Description)
		}
		return nil
	}

	projectID := args[0]
	project, err := st.GetProject(projectID)
	if err != nil {
		return fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", projectID)
	}

	fmt.Printf("project %s\n", project.ID)
	fmt.Printf("  phase:  %s\n", phaseColor(project.Phase))
	fmt.Printf("  repo:   %s\n", project.RepoPath)
	if project.Error != "" {
		fmt.Printf("  error:  %s\n", project.Error)
	}

	sessions, err := st.ListSessionsByProject(projectID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	fmt.Printf("  sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("    %-12s team=%-16s status=%-10s merge=%s\n", s.ID, s.TeamName, s.Status, s.MergeStatus)
	}

	return nil
}

// phaseColor renders a phase with a color matching its severity.
func phaseColor(phase models.Phase) string {
	switch phase {
	case models.PhaseCompleted:
		return color.GreenString(string(phase))
	case models.PhaseFailed:
		return color.RedString(string(phase))
	default:
		return color.YellowString(string(phase))
	}
}
