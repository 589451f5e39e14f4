package history

import (
	"database/sql"
	"time"
)

// RecentEvents returns the N most recent per-node events.
func (h *DB) RecentEvents(limit int) ([]Event, error) {
	query := `
	SELECT id, run_id, timestamp, action, path, kind, depth, attempts, error_message, created_at
	FROM events
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`
	return h.queryEvents(query, limit)
}

// EventsByAction returns events filtered by action type.
func (h *DB) EventsByAction(action string) ([]Event, error) {
	query := `
	SELECT id, run_id, timestamp, action, path, kind, depth, attempts, error_message, created_at
	FROM events
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`
	return h.queryEvents(query, action)
}

// EventsByPath returns events whose path matches a pattern (SQL LIKE).
func (h *DB) EventsByPath(pathPattern string) ([]Event, error) {
	query := `
	SELECT id, run_id, timestamp, action, path, kind, depth, attempts, error_message, created_at
	FROM events
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`
	return h.queryEvents(query, pathPattern)
}

// EventsByRun returns every event of one run, oldest first.
func (h *DB) EventsByRun(runID string) ([]Event, error) {
	query := `
	SELECT id, run_id, timestamp, action, path, kind, depth, attempts, error_message, created_at
	FROM events
	WHERE run_id = ?
	ORDER BY id ASC
	`
	return h.queryEvents(query, runID)
}

// RecentRuns returns the N most recent runs.
func (h *DB) RecentRuns(limit int) ([]Run, error) {
	query := `
	SELECT run_id, root, operation, started_at, finished_at,
	       total_discovered, succeeded, failed, skipped, not_processed, cancelled
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`
	rows, err := h.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		var cancelled int
		if err := rows.Scan(&r.RunID, &r.Root, &r.Operation, &r.StartedAt, &finished,
			&r.TotalDiscovered, &r.Succeeded, &r.Failed, &r.Skipped, &r.NotProcessed, &cancelled); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.Cancelled = cancelled != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats aggregates event counts over the last N days.
type Stats struct {
	StartDate   time.Time
	EndDate     time.Time
	TotalEvents int64
	Deleted     int64
	Errors      int64
	Skipped     int64
	Copied      int64
	Moved       int64
	Runs        int64
}

// GetStats returns aggregate statistics for the last N days.
func (h *DB) GetStats(days int) (*Stats, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	s := &Stats{StartDate: start, EndDate: end}

	countQuery := `SELECT COUNT(*) FROM events WHERE timestamp BETWEEN ? AND ? AND action = ?`
	counts := []struct {
		action string
		dst    *int64
	}{
		{ActionDelete, &s.Deleted},
		{ActionError, &s.Errors},
		{ActionSkip, &s.Skipped},
		{ActionCopy, &s.Copied},
		{ActionMove, &s.Moved},
	}
	for _, c := range counts {
		if err := h.db.QueryRow(countQuery, start, end, c.action).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	if err := h.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE timestamp BETWEEN ? AND ?`, start, end,
	).Scan(&s.TotalEvents); err != nil {
		return nil, err
	}
	if err := h.db.QueryRow(
		`SELECT COUNT(*) FROM runs WHERE started_at BETWEEN ? AND ?`, start, end,
	).Scan(&s.Runs); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *DB) queryEvents(query string, args ...any) ([]Event, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.Action, &e.Path,
			&e.Kind, &e.Depth, &e.Attempts, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ErrorMessage = errMsg.String
		events = append(events, e)
	}
	return events, rows.Err()
}
