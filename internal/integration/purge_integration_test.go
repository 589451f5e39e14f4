package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"asset-sweep/internal/catalog"
	"asset-sweep/internal/history"
	"asset-sweep/internal/interrupt"
	"asset-sweep/internal/metrics"
	"asset-sweep/internal/purge"
	"asset-sweep/internal/report"
	"asset-sweep/internal/safety"
	"asset-sweep/internal/transfer"
)

func init() {
	metrics.Init()
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// TestPurgeEndToEnd wires the full stack the delete command uses: store,
// validator, reporter, history, token. One node is protected, one fails
// terminally, the rest of the subtree is deleted.
func TestPurgeEndToEnd(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":           catalog.KindContainer,
		"projects/demo/raw":       catalog.KindContainer,
		"projects/demo/raw/img1":  catalog.KindLeaf,
		"projects/demo/raw/img2":  catalog.KindLeaf,
		"projects/demo/shared":    catalog.KindContainer,
		"projects/demo/shared/x":  catalog.KindLeaf,
		"projects/demo/broken":    catalog.KindLeaf,
		"projects/demo/note":      catalog.KindLeaf,
	})
	store.DeleteErrs["projects/demo/broken"] = []error{errors.New("corrupted asset metadata")}

	dir := t.TempDir()
	db, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	defer db.Close()

	runner := purge.NewRunner(store, interrupt.NewToken(), quietLogger())
	runner.SetValidator(safety.NewValidator("projects/demo", []string{"projects/demo/shared"}))
	runner.SetReporter(report.NewReporter(dir, runner.RunID))
	runner.SetHistory(db)

	summary, err := runner.Run(context.Background(), "projects/demo", purge.Options{
		Concurrency: 1,
		MaxRetries:  1,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 8 discovered: 4 deleted, 2 skipped (protected), broken failed, and
	// the root failed because the protected subtree keeps it non-empty.
	if summary.TotalDiscovered != 8 {
		t.Fatalf("TotalDiscovered = %d, want 8", summary.TotalDiscovered)
	}
	if summary.Succeeded != 4 || summary.Skipped != 2 || summary.Failed != 2 {
		t.Errorf("summary = %+v, want succeeded=4 skipped=2 failed=2", summary)
	}

	for _, p := range []string{"projects/demo/shared", "projects/demo/shared/x"} {
		if !store.Has(p) {
			t.Errorf("protected path %s was deleted", p)
		}
	}
	for _, p := range []string{"projects/demo/raw", "projects/demo/raw/img1", "projects/demo/note"} {
		if store.Has(p) {
			t.Errorf("node %s survived the purge", p)
		}
	}

	// Failure report covers both terminal failures.
	if summary.FailuresFile == "" {
		t.Fatal("no failure report written")
	}
	data, err := os.ReadFile(summary.FailuresFile)
	if err != nil {
		t.Fatalf("reading failure report: %v", err)
	}
	var records []report.FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("failure report is not valid JSON: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("failure report has %d records, want 2", len(records))
	}

	// History recorded the run and one event per discovered node.
	runs, err := db.RecentRuns(1)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != runner.RunID {
		t.Fatalf("runs = %+v, want the one just finished", runs)
	}
	if runs[0].Succeeded != 4 || runs[0].Failed != 2 || runs[0].Skipped != 2 {
		t.Errorf("run counts = %+v", runs[0])
	}
	events, err := db.EventsByRun(runner.RunID)
	if err != nil {
		t.Fatalf("EventsByRun returned error: %v", err)
	}
	if len(events) != 8 {
		t.Errorf("history has %d events, want 8", len(events))
	}
}

// TestMoveThenPurgeSource exercises the transfer and purge stacks against
// the same store: move a subtree, then delete what is left behind.
func TestMoveThenPurgeSource(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/src":          catalog.KindContainer,
		"projects/src/raw":      catalog.KindContainer,
		"projects/src/raw/img1": catalog.KindLeaf,
		"projects/src/note":     catalog.KindLeaf,
	})

	copier := transfer.NewCopier(store, nil, quietLogger())
	moveSummary, err := copier.Move(context.Background(), "projects/src", "projects/dst")
	if err != nil {
		t.Fatalf("Move returned error: %v", err)
	}
	if moveSummary.Failed != 0 {
		t.Fatalf("move summary = %+v, want clean", moveSummary)
	}
	if store.Has("projects/src") {
		t.Fatal("move left the source root behind")
	}

	runner := purge.NewRunner(store, nil, quietLogger())
	purgeSummary, err := runner.Run(context.Background(), "projects/dst", purge.Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if purgeSummary.TotalDiscovered != 4 || purgeSummary.Succeeded != 4 {
		t.Errorf("purge summary = %+v, want all 4 deleted", purgeSummary)
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d nodes", store.Len())
	}
}
