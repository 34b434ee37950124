package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("repo:\n  path: /srv/app\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Repo.Path != "/srv/app" {
		t.Errorf("Repo.Path = %q, want /srv/app", cfg.Repo.Path)
	}
	if cfg.Repo.BaseBranch != "main" {
		t.Errorf("Repo.BaseBranch = %q, want default main", cfg.Repo.BaseBranch)
	}
	if cfg.Timeouts.RepairAgent.Seconds() != 600 {
		t.Errorf("Timeouts.RepairAgent = %v, want 600s default", cfg.Timeouts.RepairAgent)
	}
	if cfg.Facade.Port != 8420 {
		t.Errorf("Facade.Port = %d, want default 8420", cfg.Facade.Port)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
