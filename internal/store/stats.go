package store

import "fmt"

// Stats summarizes store-wide project activity, grounded on the original
// dashboard's aggregate counters.
type Stats struct {
	TotalProjects     int
	CompletedProjects int
	FailedProjects    int
	SuccessRate       float64 // percentage, rounded to one decimal
	TotalSessions     int
}

// GetStats computes aggregate counters across all known projects and sessions.
func (s *Store) GetStats() (*Stats, error) {
	var stats Stats

	row := s.QueryRow(`SELECT COUNT(*) FROM projects`)
	if err := row.Scan(&stats.TotalProjects); err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}

	row = s.QueryRow(`SELECT COUNT(*) FROM projects WHERE phase = 'completed'`)
	if err := row.Scan(&stats.CompletedProjects); err != nil {
		return nil, fmt.Errorf("count completed projects: %w", err)
	}

	row = s.QueryRow(`SELECT COUNT(*) FROM projects WHERE phase = 'failed'`)
	if err := row.Scan(&stats.FailedProjects); err != nil {
		return nil, fmt.Errorf("count failed projects: %w", err)
	}

	row = s.QueryRow(`SELECT COUNT(*) FROM agent_sessions`)
	if err := row.Scan(&stats.TotalSessions); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	finished := stats.CompletedProjects + stats.FailedProjects
	if finished > 0 {
		rate := float64(stats.CompletedProjects) / float64(finished) * 100
		stats.SuccessRate = float64(int(rate*10+0.5)) / 10
	}

	return &stats, nil
}

// SessionCountsByTeam returns how many sessions each team has run, used for
// the `gm stats` team breakdown.
func (s *Store) SessionCountsByTeam() (map[string]int, error) {
	rows, err := s.Query(`SELECT team_name, COUNT(*) FROM agent_sessions GROUP BY team_name`)
	if err != nil {
		return nil, fmt.Errorf("session counts by team: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var team string
		var count int
		if err := rows.Scan(&team, &count); err != nil {
			return nil, fmt.Errorf("scan team count: %w", err)
		}
		counts[team] = count
	}
	return counts, nil
}
