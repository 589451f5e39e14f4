package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FailureRecord is one terminal deletion failure, persisted for later
// inspection or replay.
type FailureRecord struct {
	Path      string    `json:"path"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter aggregates terminal failures during a run. Records are
// append-only; Flush persists them at most once at the end of the run.
// Persistence is best-effort and never affects run correctness.
type Reporter struct {
	mu      sync.Mutex
	dir     string
	runID   string
	now     func() time.Time
	records []FailureRecord
}

// NewReporter creates a reporter writing under dir. runID, when set, is
// embedded in generated filenames so concurrent runs cannot collide.
func NewReporter(dir, runID string) *Reporter {
	return &Reporter{dir: dir, runID: runID, now: time.Now}
}

// SetClock replaces the timestamp source. Test hook.
func (r *Reporter) SetClock(now func() time.Time) {
	r.now = now
}

// Record appends one failure. Safe for concurrent use by workers.
func (r *Reporter) Record(rec FailureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}
	r.records = append(r.records, rec)
}

// Count returns the number of recorded failures.
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a copy of the recorded failures.
func (r *Reporter) Records() []FailureRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FailureRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Flush writes the failures as a JSON array and returns the file path.
// With zero failures nothing is written and the path is empty. An empty
// filename generates one from the current time.
func (r *Reporter) Flush(filename string) (string, error) {
	r.mu.Lock()
	records := make([]FailureRecord, len(r.records))
	copy(records, r.records)
	now := r.now()
	r.mu.Unlock()

	if len(records) == 0 {
		return "", nil
	}

	if filename == "" {
		name := fmt.Sprintf("failures-%s", now.Format("20060102-150405"))
		if r.runID != "" {
			name += "-" + r.runID
		}
		filename = name + ".json"
	}
	path := filename
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, filename)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create failures dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode failures: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write failures file: %w", err)
	}
	return path, nil
}
