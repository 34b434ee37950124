package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/outputs"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate project stats and historical execution cost breakdown",
	Long: `Stats reports this repository's own project/session counters, plus a
cost breakdown backfilled from any results-*.json artifacts found in the
configured outputs directory. Those artifacts are written by a separately
managed orchestrator process that this tool does not run; stats only reads
them.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := outputs.Backfill(st, cfg.Repo.OutputsDir); err != nil {
		fmt.Printf("warning: outputs backfill failed: %v\n", err)
	}

	stats, err := st.GetStats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Printf("projects:   %d total, %d completed, %d failed (%.1f%% success)\n",
		stats.TotalProjects, stats.CompletedProjects, stats.FailedProjects, stats.SuccessRate)
	fmt.Printf("sessions:   %d total\n", stats.TotalSessions)

	teams, err := st.SessionCountsByTeam()
	if err == nil && len(teams) > 0 {
		fmt.Println("by team:")
		for team, count := range teams {
			fmt.Printf("  %-20s %d\n", team, count)
		}
	}

	breakdown, err := st.CostBreakdown()
	if err == nil && len(breakdown) > 0 {
		fmt.Println("historical cost by client mode:")
		for mode, cost := range breakdown {
			fmt.Printf("  %-20s $%.4f\n", mode, cost)
		}
	}

	return nil
}
