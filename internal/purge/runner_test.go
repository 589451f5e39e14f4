package purge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"asset-sweep/internal/catalog"
	"asset-sweep/internal/interrupt"
	"asset-sweep/internal/metrics"
	"asset-sweep/internal/report"
	"asset-sweep/internal/retry"
	"asset-sweep/internal/safety"
)

func init() {
	metrics.Init()
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// instantPolicy retries with a token 1ms pause instead of the real
// blocked/backoff delays, so tests finish quickly.
func instantPolicy(maxAttempts int) *retry.Policy {
	p := retry.NewPolicy(maxAttempts)
	p.SetSleep(func(_ context.Context, _ time.Duration) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	return p
}

func TestRunDeletesWholeSubtree(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":     catalog.KindContainer,
		"projects/demo/raw": catalog.KindContainer,
		"projects/demo/img": catalog.KindLeaf,
	})

	runner := NewRunner(store, nil, quietLogger())
	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := Summary{
		Root:            "projects/demo",
		TotalDiscovered: 3,
		Succeeded:       3,
	}
	if summary.TotalDiscovered != want.TotalDiscovered || summary.Succeeded != want.Succeeded ||
		summary.Failed != 0 || summary.Skipped != 0 || summary.NotProcessed != 0 || summary.Cancelled {
		t.Errorf("summary = %+v, want total=3 succeeded=3 and nothing else", summary)
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d nodes after the run", store.Len())
	}
}

func TestRunDispatchesEachNodeExactlyOnce(t *testing.T) {
	store := catalog.NewFakeStore()
	tree := map[string]catalog.Kind{"projects/demo": catalog.KindContainer}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		tree["projects/demo/"+name] = catalog.KindLeaf
	}
	store.AddTree(tree)

	runner := NewRunner(store, nil, quietLogger())
	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != len(tree) {
		t.Fatalf("Succeeded = %d, want %d", summary.Succeeded, len(tree))
	}
	for path := range tree {
		if got := store.DeleteCalls[path]; got != 1 {
			t.Errorf("DeleteCalls[%s] = %d, want 1", path, got)
		}
	}
}

func TestRunDeletesDescendantsBeforeAncestors(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":             catalog.KindContainer,
		"projects/demo/raw":         catalog.KindContainer,
		"projects/demo/raw/deep":    catalog.KindContainer,
		"projects/demo/raw/deep/x":  catalog.KindLeaf,
		"projects/demo/raw/img":     catalog.KindLeaf,
		"projects/demo/derived":     catalog.KindContainer,
		"projects/demo/derived/out": catalog.KindLeaf,
	})

	runner := NewRunner(store, nil, quietLogger())
	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Failed != 0 {
		t.Fatalf("Failed = %d, want 0 (deepest-first order should never hit a non-empty container with one worker)", summary.Failed)
	}

	pos := make(map[string]int, len(store.Deleted))
	for i, p := range store.Deleted {
		pos[p] = i
	}
	for _, pair := range [][2]string{
		{"projects/demo/raw/deep/x", "projects/demo/raw/deep"},
		{"projects/demo/raw/deep", "projects/demo/raw"},
		{"projects/demo/raw", "projects/demo"},
		{"projects/demo/derived/out", "projects/demo/derived"},
	} {
		if pos[pair[0]] > pos[pair[1]] {
			t.Errorf("%s deleted after its ancestor %s: order %v", pair[0], pair[1], store.Deleted)
		}
	}
}

func TestRunConcurrentWorkersDrainBlockedContainers(t *testing.T) {
	store := catalog.NewFakeStore()
	tree := map[string]catalog.Kind{"projects/demo": catalog.KindContainer}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		tree["projects/demo/"+name] = catalog.KindLeaf
	}
	store.AddTree(tree)

	runner := NewRunner(store, nil, quietLogger())
	// The root can be dispatched while leaf deletes are still in flight;
	// a generous blocked-retry budget lets it wait them out.
	runner.SetPolicy(instantPolicy(100))

	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 4})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Succeeded != len(tree) || summary.Failed != 0 {
		t.Errorf("summary = %+v, want all %d succeeded", summary, len(tree))
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d nodes after the run", store.Len())
	}
}

func TestRunMissingRoot(t *testing.T) {
	store := catalog.NewFakeStore()

	runner := NewRunner(store, nil, quietLogger())
	summary, err := runner.Run(context.Background(), "projects/nope", Options{})
	if err != nil {
		t.Fatalf("Run returned error for a missing root: %v", err)
	}
	if summary.TotalDiscovered != 0 || summary.Succeeded != 0 {
		t.Errorf("summary = %+v, want empty", summary)
	}
}

func TestRunRootFetchErrorSurfaces(t *testing.T) {
	store := catalog.NewFakeStore()
	store.Add("projects/demo", catalog.KindContainer)
	store.GetErrs["projects/demo"] = &catalog.RemoteError{
		Op: "get", Path: "projects/demo", StatusCode: 500, Message: "backend unavailable",
	}

	runner := NewRunner(store, nil, quietLogger())
	if _, err := runner.Run(context.Background(), "projects/demo", Options{}); err == nil {
		t.Fatal("Run returned nil error, want root fetch failure")
	}
}

// cancellingStore requests a graceful stop after the Nth completed delete.
type cancellingStore struct {
	*catalog.FakeStore
	token *interrupt.Token
	after int
	done  int
}

func (s *cancellingStore) DeleteNode(ctx context.Context, path string) error {
	err := s.FakeStore.DeleteNode(ctx, path)
	s.done++
	if s.done == s.after {
		s.token.Request()
	}
	return err
}

func TestRunStopsDispatchingAfterCancellation(t *testing.T) {
	fake := catalog.NewFakeStore()
	tree := map[string]catalog.Kind{"projects/demo": catalog.KindContainer}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		tree["projects/demo/"+name] = catalog.KindLeaf
	}
	fake.AddTree(tree)

	token := interrupt.NewToken()
	store := &cancellingStore{FakeStore: fake, token: token, after: 2}

	runner := NewRunner(store, token, quietLogger())
	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !summary.Cancelled {
		t.Fatal("summary.Cancelled = false, want true")
	}
	// A send already blocked on the jobs channel when the token flips is
	// still delivered, so one extra node may drain after the request.
	if summary.Succeeded < 2 || summary.Succeeded > 3 {
		t.Errorf("Succeeded = %d, want 2 or 3 (in-flight work drains, nothing new dispatched)", summary.Succeeded)
	}
	if summary.NotProcessed != summary.TotalDiscovered-summary.Succeeded {
		t.Errorf("NotProcessed = %d, want %d", summary.NotProcessed, summary.TotalDiscovered-summary.Succeeded)
	}
	if summary.NotProcessed == 0 {
		t.Error("NotProcessed = 0, want undispatched remainder after cancellation")
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0 (cancellation must not mark undispatched nodes failed)", summary.Failed)
	}
}

func TestRunCancelledContextCountsAsCancellation(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":   catalog.KindContainer,
		"projects/demo/a": catalog.KindLeaf,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(store, nil, quietLogger())
	summary, err := runner.Run(ctx, "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.TotalDiscovered > 0 && !summary.Cancelled {
		t.Errorf("summary = %+v, want cancelled when the context is already done", summary)
	}
}

func TestRunSkipsProtectedPaths(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":        catalog.KindContainer,
		"projects/demo/tmp":    catalog.KindLeaf,
		"projects/demo/keep":   catalog.KindContainer,
		"projects/demo/keep/x": catalog.KindLeaf,
	})

	runner := NewRunner(store, nil, quietLogger())
	runner.SetValidator(safety.NewValidator("projects/demo", []string{"projects/demo/keep"}))
	runner.SetPolicy(instantPolicy(2))

	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (protected container and its child)", summary.Skipped)
	}
	// The root cannot be deleted while the protected subtree survives.
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1 (root blocked by surviving children)", summary.Failed)
	}
	for _, p := range []string{"projects/demo/keep", "projects/demo/keep/x"} {
		if !store.Has(p) {
			t.Errorf("protected path %s was deleted", p)
		}
		if store.DeleteCalls[p] != 0 {
			t.Errorf("protected path %s reached the remote (%d calls)", p, store.DeleteCalls[p])
		}
	}
	if store.Has("projects/demo/tmp") {
		t.Error("unprotected leaf survived the run")
	}
}

func TestRunFlushesFailureReport(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":     catalog.KindContainer,
		"projects/demo/bad": catalog.KindLeaf,
		"projects/demo/ok":  catalog.KindLeaf,
	})
	store.DeleteErrs["projects/demo/bad"] = []error{errors.New("corrupted asset metadata")}

	dir := t.TempDir()
	runner := NewRunner(store, nil, quietLogger())
	runner.SetReporter(report.NewReporter(dir, runner.RunID))
	runner.SetPolicy(instantPolicy(3))

	summary, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", summary.Failed)
	}
	if summary.FailuresFile == "" {
		t.Fatal("summary.FailuresFile is empty, want a written report")
	}
	if filepath.Dir(summary.FailuresFile) != dir {
		t.Errorf("report written to %s, want under %s", summary.FailuresFile, dir)
	}

	data, err := os.ReadFile(summary.FailuresFile)
	if err != nil {
		t.Fatalf("reading failure report: %v", err)
	}
	var records []report.FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("failure report is not valid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("report has %d records, want 1", len(records))
	}
	if records[0].Path != "projects/demo/bad" {
		t.Errorf("record path = %s, want projects/demo/bad", records[0].Path)
	}
	if records[0].Attempts != 1 {
		t.Errorf("record attempts = %d, want 1", records[0].Attempts)
	}
	if !strings.Contains(records[0].Error, "corrupted asset metadata") {
		t.Errorf("record error = %q, want the original message", records[0].Error)
	}
}

func TestRunNoFailuresWritesNoReport(t *testing.T) {
	store := catalog.NewFakeStore()
	store.Add("projects/demo/img", catalog.KindLeaf)

	dir := t.TempDir()
	runner := NewRunner(store, nil, quietLogger())
	runner.SetReporter(report.NewReporter(dir, runner.RunID))

	summary, err := runner.Run(context.Background(), "projects/demo/img", Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.FailuresFile != "" {
		t.Errorf("FailuresFile = %q, want empty on a clean run", summary.FailuresFile)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading failures dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failures dir holds %d files, want none", len(entries))
	}
}

// eventObserver records observer callbacks for assertion.
type eventObserver struct {
	NopObserver
	started  int
	total    int
	finished int
}

func (o *eventObserver) RunStarted(_ string, total int) {
	o.started++
	o.total = total
}

func (o *eventObserver) RunFinished(Summary) {
	o.finished++
}

func TestRunNotifiesObserver(t *testing.T) {
	store := catalog.NewFakeStore()
	store.AddTree(map[string]catalog.Kind{
		"projects/demo":   catalog.KindContainer,
		"projects/demo/a": catalog.KindLeaf,
	})

	obs := &eventObserver{}
	runner := NewRunner(store, nil, quietLogger())
	runner.SetObserver(obs)

	if _, err := runner.Run(context.Background(), "projects/demo", Options{Concurrency: 1}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if obs.started != 1 || obs.finished != 1 {
		t.Errorf("observer saw started=%d finished=%d, want 1/1", obs.started, obs.finished)
	}
	if obs.total != 2 {
		t.Errorf("observer total = %d, want 2", obs.total)
	}
}

func TestRunNotifiesObserverOnEmptyRun(t *testing.T) {
	store := catalog.NewFakeStore()

	obs := &eventObserver{total: -1}
	runner := NewRunner(store, nil, quietLogger())
	runner.SetObserver(obs)

	if _, err := runner.Run(context.Background(), "projects/nope", Options{}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if obs.started != 1 || obs.finished != 1 {
		t.Errorf("observer saw started=%d finished=%d on an empty run, want 1/1", obs.started, obs.finished)
	}
	if obs.total != 0 {
		t.Errorf("observer total = %d, want 0", obs.total)
	}
}
