package store

import (
	"database/sql"
	"fmt"
)

// HistoricalExecution is one ingested results-*.json artifact, written by a
// separately managed orchestrator process this repository does not run but
// whose on-disk contract it still reads for cost/stats reporting.
type HistoricalExecution struct {
	ID               int64
	Filename         string
	Timestamp        string
	Mode             string
	GlobalClientMode string
	AgentCount       int
	SuccessCount     int
	FailCount        int
	EstimatedCost    float64
}

// HistoricalAgentResult is one per-agent entry within a HistoricalExecution.
type HistoricalAgentResult struct {
	Agent         string
	Status        string
	Output        string
	Error         string
	ClientMode    string
	Timestamp     string
	EstimatedCost float64
}

// ExecutionExists reports whether filename has already been ingested,
// matching the original watcher's de-duplication by filename.
func (s *Store) ExecutionExists(filename string) (bool, error) {
	var count int
	row := s.QueryRow(`SELECT COUNT(*) FROM historical_executions WHERE filename = ?`, filename)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check execution exists: %w", err)
	}
	return count > 0, nil
}

// InsertExecution records one historical execution and its per-agent results
// in a single transaction, returning the new execution id.
func (s *Store) InsertExecution(exec HistoricalExecution, results []HistoricalAgentResult) (int64, error) {
	var executionID int64

	err := s.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO historical_executions
				(filename, timestamp, mode, global_client_mode, agent_count, success_count, fail_count, estimated_cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, exec.Filename, exec.Timestamp, exec.Mode, nullableString(exec.GlobalClientMode),
			exec.AgentCount, exec.SuccessCount, exec.FailCount, exec.EstimatedCost)
		if err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}

		executionID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get execution id: %w", err)
		}

		for _, r := range results {
			if _, err := tx.Exec(`
				INSERT INTO historical_agent_results
					(execution_id, agent, status, output, error, client_mode, timestamp, estimated_cost)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, executionID, r.Agent, r.Status, nullableString(r.Output), nullableString(r.Error),
				nullableString(r.ClientMode), nullableString(r.Timestamp), r.EstimatedCost); err != nil {
				return fmt.Errorf("insert agent result: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return executionID, nil
}

// CostBreakdown sums estimated_cost across historical agent results, grouped
// by client mode, mirroring the original dashboard's get_cost_breakdown.
func (s *Store) CostBreakdown() (map[string]float64, error) {
	rows, err := s.Query(`
		SELECT COALESCE(client_mode, 'unknown'), SUM(estimated_cost)
		FROM historical_agent_results GROUP BY client_mode
	`)
	if err != nil {
		return nil, fmt.Errorf("cost breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]float64)
	for rows.Next() {
		var mode string
		var cost float64
		if err := rows.Scan(&mode, &cost); err != nil {
			return nil, fmt.Errorf("scan cost breakdown: %w", err)
		}
		breakdown[mode] = cost
	}
	return breakdown, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
