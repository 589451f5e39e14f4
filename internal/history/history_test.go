package history

import (
	"path/filepath"
	"testing"
	"time"

	"asset-sweep/internal/catalog"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	started := time.Now().UTC().Truncate(time.Second)

	if err := db.BeginRun("run-1", "projects/demo", "delete", started); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("RecentRuns returned %d runs, want 1", len(runs))
	}
	if runs[0].FinishedAt != nil {
		t.Error("unfinished run has FinishedAt set")
	}

	counts := RunCounts{TotalDiscovered: 5, Succeeded: 3, Failed: 1, Skipped: 1, Cancelled: true}
	if err := db.FinishRun("run-1", started.Add(time.Minute), counts); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	runs, err = db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	r := runs[0]
	if r.RunID != "run-1" || r.Root != "projects/demo" || r.Operation != "delete" {
		t.Errorf("run = %+v", r)
	}
	if r.TotalDiscovered != 5 || r.Succeeded != 3 || r.Failed != 1 || r.Skipped != 1 {
		t.Errorf("counts = %+v, want 5/3/1/1", r)
	}
	if !r.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if r.FinishedAt == nil {
		t.Error("FinishedAt is nil after FinishRun")
	}
}

func TestRecordAndQueryEvents(t *testing.T) {
	db := openTestDB(t)
	if err := db.BeginRun("run-1", "projects/demo", "delete", time.Now()); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}

	nodes := []struct {
		node   catalog.Node
		action string
		errMsg string
	}{
		{catalog.Node{Path: "projects/demo/raw/img", Kind: catalog.KindLeaf}, ActionDelete, ""},
		{catalog.Node{Path: "projects/demo/raw", Kind: catalog.KindContainer}, ActionDelete, ""},
		{catalog.Node{Path: "projects/demo/bad", Kind: catalog.KindLeaf}, ActionError, "boom"},
		{catalog.Node{Path: "projects/demo/keep", Kind: catalog.KindContainer}, ActionSkip, "protected asset path"},
	}
	for _, n := range nodes {
		if err := db.RecordEvent("run-1", n.action, n.node, 1, n.errMsg); err != nil {
			t.Fatalf("RecordEvent(%s) returned error: %v", n.node.Path, err)
		}
	}

	t.Run("recent", func(t *testing.T) {
		events, err := db.RecentEvents(10)
		if err != nil {
			t.Fatalf("RecentEvents returned error: %v", err)
		}
		if len(events) != len(nodes) {
			t.Fatalf("got %d events, want %d", len(events), len(nodes))
		}
		// Newest first.
		if events[0].Path != "projects/demo/keep" {
			t.Errorf("newest event = %s, want projects/demo/keep", events[0].Path)
		}
	})

	t.Run("by action", func(t *testing.T) {
		events, err := db.EventsByAction(ActionError)
		if err != nil {
			t.Fatalf("EventsByAction returned error: %v", err)
		}
		if len(events) != 1 || events[0].Path != "projects/demo/bad" {
			t.Errorf("events = %+v, want the single error event", events)
		}
		if events[0].ErrorMessage != "boom" {
			t.Errorf("ErrorMessage = %q, want boom", events[0].ErrorMessage)
		}
	})

	t.Run("by path", func(t *testing.T) {
		events, err := db.EventsByPath("projects/demo/raw%")
		if err != nil {
			t.Fatalf("EventsByPath returned error: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("got %d events for raw subtree, want 2", len(events))
		}
	})

	t.Run("by run oldest first", func(t *testing.T) {
		events, err := db.EventsByRun("run-1")
		if err != nil {
			t.Fatalf("EventsByRun returned error: %v", err)
		}
		if len(events) != len(nodes) {
			t.Fatalf("got %d events, want %d", len(events), len(nodes))
		}
		if events[0].Path != "projects/demo/raw/img" {
			t.Errorf("oldest event = %s, want projects/demo/raw/img", events[0].Path)
		}
		if events[0].Kind != "leaf" || events[0].Depth != 3 {
			t.Errorf("event kind/depth = %s/%d, want leaf/3", events[0].Kind, events[0].Depth)
		}
		for _, e := range events {
			if e.CreatedAt.IsZero() {
				t.Errorf("event %s has zero CreatedAt", e.Path)
			}
		}
	})
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	if err := db.BeginRun("run-1", "projects/demo", "delete", time.Now()); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}

	leaf := catalog.Node{Path: "projects/demo/a", Kind: catalog.KindLeaf}
	for _, action := range []string{ActionDelete, ActionDelete, ActionError, ActionSkip, ActionCopy, ActionMove} {
		if err := db.RecordEvent("run-1", action, leaf, 1, ""); err != nil {
			t.Fatalf("RecordEvent returned error: %v", err)
		}
	}

	stats, err := db.GetStats(1)
	if err != nil {
		t.Fatalf("GetStats returned error: %v", err)
	}
	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if stats.Deleted != 2 || stats.Errors != 1 || stats.Skipped != 1 || stats.Copied != 1 || stats.Moved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer db.Close()

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum returned error: %v", err)
	}
}
