package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"asset-sweep/internal/catalog"
)

// Event actions recorded per node.
const (
	ActionDelete = "DELETE"
	ActionDryRun = "DRY_RUN"
	ActionSkip   = "SKIP"
	ActionError  = "ERROR"
	ActionCopy   = "COPY"
	ActionMove   = "MOVE"
)

// DB stores the history of sweep runs and per-node events in SQLite.
type DB struct {
	db *sql.DB
}

// Event is one recorded per-node action.
type Event struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string
	Path         string
	Kind         string
	Depth        int
	Attempts     int
	ErrorMessage string
	CreatedAt    time.Time
}

// Run summarizes one invocation.
type Run struct {
	RunID           string
	Root            string
	Operation       string
	StartedAt       time.Time
	FinishedAt      *time.Time
	TotalDiscovered int
	Succeeded       int
	Failed          int
	Skipped         int
	NotProcessed    int
	Cancelled       bool
}

// RunCounts carries the final tallies written by FinishRun.
type RunCounts struct {
	TotalDiscovered int
	Succeeded       int
	Failed          int
	Skipped         int
	NotProcessed    int
	Cancelled       bool
}

// Open opens (creating if needed) the history database and initializes
// the schema. WAL mode keeps concurrent worker writes cheap.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// Creates the file if missing; Ping alone does not
	if _, err = db.Exec("SELECT 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history database (check permissions on %s): %w", dbPath, err)
	}
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	h := &DB{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		operation TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		total_discovered INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		not_processed INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		depth INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
	CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := h.db.Exec(schema)
	return err
}

// BeginRun inserts the run row at the start of an invocation.
func (h *DB) BeginRun(runID, root, operation string, started time.Time) error {
	_, err := h.db.Exec(
		`INSERT INTO runs (run_id, root, operation, started_at) VALUES (?, ?, ?, ?)`,
		runID, root, operation, started,
	)
	return err
}

// FinishRun writes the final tallies for a run.
func (h *DB) FinishRun(runID string, finished time.Time, counts RunCounts) error {
	cancelled := 0
	if counts.Cancelled {
		cancelled = 1
	}
	_, err := h.db.Exec(
		`UPDATE runs SET finished_at = ?, total_discovered = ?, succeeded = ?,
		 failed = ?, skipped = ?, not_processed = ?, cancelled = ?
		 WHERE run_id = ?`,
		finished, counts.TotalDiscovered, counts.Succeeded, counts.Failed,
		counts.Skipped, counts.NotProcessed, cancelled, runID,
	)
	return err
}

// RecordEvent inserts one per-node event.
func (h *DB) RecordEvent(runID, action string, node catalog.Node, attempts int, errMsg string) error {
	_, err := h.db.Exec(
		`INSERT INTO events (run_id, timestamp, action, path, kind, depth, attempts, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC(), action, node.Path, node.Kind.String(), node.Depth(), attempts, errMsg,
	)
	return err
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

// Vacuum optimizes the database (run periodically).
func (h *DB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}
