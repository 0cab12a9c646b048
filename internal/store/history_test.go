package store

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StartRun("parse csv", "gemini", "basic", "pandas", "out.py")
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if id == 0 {
		t.Fatal("StartRun() returned id 0")
	}

	if err := s.RecordAttempt(id, 1, false, "# flake8\nE501"); err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
	if err := s.RecordAttempt(id, 2, true, ""); err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
	if err := s.CompleteRun(id, "openai", "passed", false, true, 1); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns() returned %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Task != "parse csv" || run.Provider != "gemini" || run.Domain != "pandas" {
		t.Errorf("run = %+v", run)
	}
	if run.FinalProvider != "openai" || run.State != "passed" || !run.Passed || run.Stub {
		t.Errorf("completion fields = %+v", run)
	}
	if run.Refinements != 1 {
		t.Errorf("Refinements = %d, want 1", run.Refinements)
	}

	attempts, err := s.Attempts(id)
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("Attempts() returned %d, want 2", len(attempts))
	}
	if attempts[0].Round != 1 || attempts[0].Passed {
		t.Errorf("first attempt = %+v", attempts[0])
	}
	if attempts[1].Round != 2 || !attempts[1].Passed {
		t.Errorf("second attempt = %+v", attempts[1])
	}
	if attempts[0].Diagnostics != "# flake8\nE501" {
		t.Errorf("Diagnostics = %q", attempts[0].Diagnostics)
	}
}

func TestRecentRuns_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	for _, task := range []string{"first", "second", "third"} {
		if _, err := s.StartRun(task, "openai", "basic", "", "out.py"); err != nil {
			t.Fatalf("StartRun(%q) error = %v", task, err)
		}
	}

	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("RecentRuns(2) returned %d", len(runs))
	}
	if runs[0].Task != "third" || runs[1].Task != "second" {
		t.Errorf("order = %q, %q, want newest first", runs[0].Task, runs[1].Task)
	}
}

func TestRecentRuns_Empty(t *testing.T) {
	s := newTestStore(t)
	runs, err := s.RecentRuns(5)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("RecentRuns() on empty store returned %d runs", len(runs))
	}
}

func TestNewHistoryStore_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	s, err := NewHistoryStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	s.Close()
}
