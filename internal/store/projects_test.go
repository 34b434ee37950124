package store

import (
	"testing"
	"time"

	"github.com/ShayCichocki/gm/pkg/models"
)

func TestCreateAndGetProject(t *testing.T) {
	st := setupTestStore(t)

	p := &models.Project{
		ID:          "20260101-000000-abc123",
		RepoPath:    "/repo",
		BaseBranch:  "main",
		Description: "test project",
		Phase:       models.PhaseCreated,
		CreatedAt:   time.Now(),
	}
	if err := st.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	got, err := st.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got == nil {
		t.Fatal("GetProject returned nil")
	}
	if got.RepoPath != p.RepoPath || got.Phase != models.PhaseCreated {
		t.Errorf("got %+v, want repo_path=%s phase=%s", got, p.RepoPath, models.PhaseCreated)
	}
	if got.StartedAt != nil {
		t.Errorf("StartedAt should be nil before launching, got %v", got.StartedAt)
	}
}

func TestGetProjectMissing(t *testing.T) {
	st := setupTestStore(t)
	got, err := st.GetProject("does-not-exist")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing project, got %+v", got)
	}
}

func TestUpdatePhaseStampsTimestamps(t *testing.T) {
	st := setupTestStore(t)

	p := &models.Project{
		ID:        "20260101-000000-def456",
		RepoPath:  "/repo",
		Phase:     models.PhaseCreated,
		CreatedAt: time.Now(),
	}
	if err := st.CreateProject(p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	if err := st.UpdatePhase(p.ID, models.PhaseLaunching, ""); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	got, err := st.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Phase != models.PhaseLaunching {
		t.Errorf("Phase = %s, want %s", got.Phase, models.PhaseLaunching)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt should be set on entering a non-created phase")
	}

	if err := st.UpdatePhase(p.ID, models.PhaseFailed, "boom"); err != nil {
		t.Fatalf("UpdatePhase: %v", err)
	}
	got, err = st.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Phase != models.PhaseFailed {
		t.Errorf("Phase = %s, want %s", got.Phase, models.PhaseFailed)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set on reaching a terminal phase")
	}
	if got.Error != "boom" {
		t.Errorf("Error = %q, want %q", got.Error, "boom")
	}
}

func TestListProjectsFiltersByPhase(t *testing.T) {
	st := setupTestStore(t)

	for i, phase := range []models.Phase{models.PhaseCreated, models.PhaseCompleted, models.PhaseFailed} {
		p := &models.Project{
			ID:        NewTestProjectID(i),
			RepoPath:  "/repo",
			Phase:     phase,
			CreatedAt: time.Now(),
		}
		if err := st.CreateProject(p); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}

	all, err := st.ListProjects(nil)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d projects, want 3", len(all))
	}

	failed := models.PhaseFailed
	onlyFailed, err := st.ListProjects(&failed)
	if err != nil {
		t.Fatalf("ListProjects(failed): %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].Phase != models.PhaseFailed {
		t.Errorf("got %+v, want exactly one failed project", onlyFailed)
	}
}

// NewTestProjectID produces distinct deterministic ids for table-driven tests.
func NewTestProjectID(i int) string {
	return models.NewProjectID(time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC), "suffix")
}
