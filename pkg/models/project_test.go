package models

import (
	"testing"
	"time"
)

func TestNewProjectIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	id := NewProjectID(now, "ab12cd")
	want := "20260305-143000-ab12cd"
	if id != want {
		t.Errorf("NewProjectID = %q, want %q", id, want)
	}
}

func TestNewSessionBranch(t *testing.T) {
	if got := NewSessionBranch("20260305-143000-ab12cd"); got != "team/20260305-143000-ab12cd" {
		t.Errorf("NewSessionBranch = %q", got)
	}
}
