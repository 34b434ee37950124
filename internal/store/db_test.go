package store

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "state.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := setupTestStore(t)
	if err := st.Migrate(); err != nil {
		t.Fatalf("second Migrate() call failed: %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/repo")
	want := filepath.Join("/repo", ".gm", "state.db")
	if got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}
