// Package outputs backfills and live-ingests historical execution records
// written as results-*.json files by a separately managed orchestrator
// process. This repository never runs that process — it only watches its
// output directory and reads the artifacts into the store for stats
// reporting, grounded on original_source/dashboard/watcher.py.
package outputs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/gm/internal/store"
)

// CharsPerToken and CostPerMillionOutput are the heuristics used to estimate
// API spend from a result's raw output text, matching config.CHARS_PER_TOKEN
// / config.COST_PER_1M_OUTPUT in the original.
const (
	CharsPerToken        = 4.0
	CostPerMillionOutput = 15.0
)

type resultFile struct {
	Timestamp        string       `json:"timestamp"`
	Mode             string       `json:"mode"`
	GlobalClientMode string       `json:"global_client_mode"`
	Results          []agentEntry `json:"results"`
}

type agentEntry struct {
	Agent      string `json:"agent"`
	Status     string `json:"status"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ClientMode string `json:"client_mode"`
	Timestamp  string `json:"timestamp"`
}

// EstimateCost estimates the API cost of one agent result's output text.
// claude-code mode runs a local CLI and is free; other modes are priced off
// a chars-per-token heuristic against output tokens only, since only the
// response text is observed.
func EstimateCost(text, clientMode string) float64 {
	if text == "" || clientMode == "claude-code" {
		return 0
	}
	tokens := float64(len(text)) / CharsPerToken
	cost := (tokens / 1_000_000) * CostPerMillionOutput
	return round6(cost)
}

func round6(f float64) float64 {
	const scale = 1e6
	return float64(int64(f*scale+0.5)) / scale
}

// IngestFile parses one results-*.json file and records it in st, skipping
// files already ingested (identified by filename) or unparseable.
func IngestFile(st *store.Store, path string) (int64, error) {
	filename := filepath.Base(path)

	exists, err := st.ExecutionExists(filename)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", filename, err)
	}

	var data resultFile
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[outputs] skipping unparseable %s: %v", filename, err)
		return 0, nil
	}

	var successCount, failCount int
	var totalCost float64
	results := make([]store.HistoricalAgentResult, 0, len(data.Results))
	for _, r := range data.Results {
		switch r.Status {
		case "success":
			successCount++
		case "failed":
			failCount++
		}
		cost := EstimateCost(r.Output, r.ClientMode)
		totalCost += cost
		results = append(results, store.HistoricalAgentResult{
			Agent:         orDefault(r.Agent, "unknown"),
			Status:        orDefault(r.Status, "unknown"),
			Output:        r.Output,
			Error:         r.Error,
			ClientMode:    r.ClientMode,
			Timestamp:     r.Timestamp,
			EstimatedCost: cost,
		})
	}

	timestamp := data.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	execID, err := st.InsertExecution(store.HistoricalExecution{
		Filename:         filename,
		Timestamp:        timestamp,
		Mode:             orDefault(data.Mode, "unknown"),
		GlobalClientMode: data.GlobalClientMode,
		AgentCount:       len(data.Results),
		SuccessCount:     successCount,
		FailCount:        failCount,
		EstimatedCost:    totalCost,
	}, results)
	if err != nil {
		return 0, fmt.Errorf("insert execution %s: %w", filename, err)
	}

	log.Printf("[outputs] ingested %s -> execution #%d (%d agents)", filename, execID, len(data.Results))
	return execID, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Backfill scans dir for results-*.json files not yet ingested and records
// each one. Returns the number of files ingested.
func Backfill(st *store.Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read outputs dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchesResultFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var count int
	for _, name := range names {
		id, err := IngestFile(st, filepath.Join(dir, name))
		if err != nil {
			log.Printf("[outputs] backfill %s: %v", name, err)
			continue
		}
		if id != 0 {
			count++
		}
	}
	if count > 0 {
		log.Printf("[outputs] backfilled %d existing output file(s)", count)
	}
	return count, nil
}

func matchesResultFile(name string) bool {
	return strings.HasPrefix(name, "results-") && strings.HasSuffix(name, ".json")
}

// Watch backfills dir once, then watches it for newly written or modified
// results-*.json files, ingesting each as it settles. It runs until stop is
// closed. onIngest, if non-nil, is called with each newly assigned execution
// id (after the in-process backfill pass has already run).
func Watch(st *store.Store, dir string, onIngest func(executionID int64), stop <-chan struct{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create outputs dir: %w", err)
	}
	if _, err := Backfill(st, dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !matchesResultFile(filepath.Base(ev.Name)) {
					continue
				}
				// Give the writer a moment to finish before reading, mirroring
				// the original's 0.5s settle delay.
				time.Sleep(500 * time.Millisecond)
				id, err := IngestFile(st, ev.Name)
				if err != nil {
					log.Printf("[outputs] ingest %s: %v", ev.Name, err)
					continue
				}
				if id != 0 && onIngest != nil {
					onIngest(id)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[outputs] watch %s: %v", dir, err)
			}
		}
	}()

	return nil
}
