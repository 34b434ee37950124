package store

import "testing"

func TestInsertExecutionAndExists(t *testing.T) {
	st := setupTestStore(t)

	exists, err := st.ExecutionExists("results-1.json")
	if err != nil {
		t.Fatalf("ExecutionExists: %v", err)
	}
	if exists {
		t.Fatal("expected no execution to exist yet")
	}

	id, err := st.InsertExecution(HistoricalExecution{
		Filename:      "results-1.json",
		Timestamp:     "2026-01-01T00:00:00Z",
		Mode:          "parallel",
		AgentCount:    2,
		SuccessCount:  1,
		FailCount:     1,
		EstimatedCost: 0.5,
	}, []HistoricalAgentResult{
		{Agent: "backend", Status: "success", ClientMode: "api", EstimatedCost: 0.3},
		{Agent: "frontend", Status: "failed", ClientMode: "claude-code", EstimatedCost: 0},
	})
	if err != nil {
		t.Fatalf("InsertExecution: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero execution id")
	}

	exists, err = st.ExecutionExists("results-1.json")
	if err != nil {
		t.Fatalf("ExecutionExists: %v", err)
	}
	if !exists {
		t.Error("expected execution to exist after insert")
	}

	breakdown, err := st.CostBreakdown()
	if err != nil {
		t.Fatalf("CostBreakdown: %v", err)
	}
	if breakdown["api"] != 0.3 {
		t.Errorf("breakdown[api] = %v, want 0.3", breakdown["api"])
	}
	if breakdown["claude-code"] != 0 {
		t.Errorf("breakdown[claude-code] = %v, want 0", breakdown["claude-code"])
	}
}

func TestInsertExecutionIsTransactional(t *testing.T) {
	st := setupTestStore(t)

	id1, err := st.InsertExecution(HistoricalExecution{Filename: "results-a.json", Timestamp: "t"}, nil)
	if err != nil {
		t.Fatalf("InsertExecution: %v", err)
	}
	id2, err := st.InsertExecution(HistoricalExecution{Filename: "results-b.json", Timestamp: "t"}, nil)
	if err != nil {
		t.Fatalf("InsertExecution: %v", err)
	}
	if id1 == id2 {
		t.Errorf("expected distinct execution ids, got %d twice", id1)
	}
}
