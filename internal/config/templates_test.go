package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTemplates = `
teams:
  enabled: [backend, frontend]
  definitions:
    backend:
      name: backend
      description: implement the API
    frontend:
      name: frontend
      description: implement the UI
    unused:
      name: unused
      description: never enabled

gm_projects:
  full-stack:
    description: ship both halves of a feature
    teams: [backend, frontend]
    build_cmd: make build
    test_cmd: make test
`

func writeTemplates(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teams.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write templates: %v", err)
	}
	return path
}

func TestAvailableTeamsRespectsEnabledOrder(t *testing.T) {
	tpl, err := LoadTemplates(writeTemplates(t, sampleTemplates))
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	teams := tpl.AvailableTeams()
	if len(teams) != 2 {
		t.Fatalf("got %d teams, want 2", len(teams))
	}
	if teams[0].Name != "backend" || teams[1].Name != "frontend" {
		t.Errorf("unexpected team order: %+v", teams)
	}
}

func TestProjectResolvesTeams(t *testing.T) {
	tpl, err := LoadTemplates(writeTemplates(t, sampleTemplates))
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}

	project, teams, err := tpl.Project("full-stack")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if project.BuildCmd != "make build" {
		t.Errorf("BuildCmd = %q, want %q", project.BuildCmd, "make build")
	}
	if len(teams) != 2 {
		t.Fatalf("got %d teams, want 2", len(teams))
	}
}

func TestProjectUnknownName(t *testing.T) {
	tpl, err := LoadTemplates(writeTemplates(t, sampleTemplates))
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	if _, _, err := tpl.Project("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown project template")
	}
}
