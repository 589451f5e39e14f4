package retry

import "time"

// Status is the terminal state of one node's deletion.
type Status int

const (
	StatusFailed Status = iota
	StatusSucceeded
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome records how a single node's deletion ended. Produced exactly
// once per dispatched node; nodes never dispatched have no outcome.
type Outcome struct {
	Status   Status
	Attempts int
	Err      error
	// Reason is set for skipped nodes (safety violations).
	Reason string
	// Delays holds every backoff sleep taken, in order.
	Delays []time.Duration
}

func Succeeded(attempts int) Outcome {
	return Outcome{Status: StatusSucceeded, Attempts: attempts}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

func Failed(err error, attempts int) Outcome {
	return Outcome{Status: StatusFailed, Attempts: attempts, Err: err}
}
