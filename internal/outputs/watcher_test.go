package outputs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/gm/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestEstimateCostClaudeCodeIsFree(t *testing.T) {
	if cost := EstimateCost("some long response text", "claude-code"); cost != 0 {
		t.Errorf("claude-code cost = %v, want 0", cost)
	}
}

func TestEstimateCostAPIMode(t *testing.T) {
	text := make([]byte, 4000) // 1000 tokens at 4 chars/token
	for i := range text {
		text[i] = 'x'
	}
	cost := EstimateCost(string(text), "api")
	// 1000 tokens / 1e6 * 15.0 = 0.015
	if diff := cost - 0.015; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want ~0.015", cost)
	}
}

func writeResultFile(t *testing.T, dir, name string, data any) string {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestFileRecordsExecutionAndResults(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	path := writeResultFile(t, dir, "results-20260101.json", map[string]any{
		"timestamp": "2026-01-01T00:00:00Z",
		"mode":      "parallel",
		"results": []map[string]any{
			{"agent": "backend", "status": "success", "output": "ok", "client_mode": "claude-code"},
			{"agent": "frontend", "status": "failed", "output": "boom", "client_mode": "claude-code"},
		},
	})

	id, err := IngestFile(st, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero execution id")
	}

	exists, err := st.ExecutionExists("results-20260101.json")
	if err != nil {
		t.Fatalf("ExecutionExists: %v", err)
	}
	if !exists {
		t.Error("expected execution to be recorded")
	}
}

func TestIngestFileSkipsDuplicate(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	path := writeResultFile(t, dir, "results-dup.json", map[string]any{
		"timestamp": "2026-01-01T00:00:00Z",
		"results":   []map[string]any{{"agent": "a", "status": "success"}},
	})

	if _, err := IngestFile(st, path); err != nil {
		t.Fatalf("IngestFile (first): %v", err)
	}
	id, err := IngestFile(st, path)
	if err != nil {
		t.Fatalf("IngestFile (second): %v", err)
	}
	if id != 0 {
		t.Errorf("expected id=0 on duplicate ingest, got %d", id)
	}
}

func TestIngestFileSkipsUnparseable(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "results-broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	id, err := IngestFile(st, path)
	if err != nil {
		t.Fatalf("IngestFile should not error on unparseable input: %v", err)
	}
	if id != 0 {
		t.Errorf("expected id=0 for unparseable file, got %d", id)
	}
}

func TestBackfillIngestsOnlyResultFiles(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	writeResultFile(t, dir, "results-1.json", map[string]any{
		"timestamp": "2026-01-01T00:00:00Z",
		"results":   []map[string]any{{"agent": "a", "status": "success"}},
	})
	writeResultFile(t, dir, "results-2.json", map[string]any{
		"timestamp": "2026-01-02T00:00:00Z",
		"results":   []map[string]any{{"agent": "b", "status": "failed"}},
	})
	if err := os.WriteFile(filepath.Join(dir, "not-a-result.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	count, err := Backfill(st, dir)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if count != 2 {
		t.Errorf("Backfill ingested %d files, want 2", count)
	}

	// Second backfill should be a no-op (already ingested).
	count, err = Backfill(st, dir)
	if err != nil {
		t.Fatalf("Backfill (second): %v", err)
	}
	if count != 0 {
		t.Errorf("second Backfill ingested %d files, want 0", count)
	}
}

func TestBackfillMissingDirectory(t *testing.T) {
	st := setupStore(t)
	count, err := Backfill(st, filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Backfill on missing dir should not error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
