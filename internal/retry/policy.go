package retry

import (
	"context"
	"time"
)

// Deleter is the single catalog call the policy drives.
type Deleter interface {
	DeleteNode(ctx context.Context, path string) error
}

// Policy governs how a single node's deletion is retried. Sleeps are
// local to the worker handling the node and never block other workers.
type Policy struct {
	// MaxAttempts is the total attempt budget per node, minimum 1.
	MaxAttempts int
	// BlockedDelay is the fixed pause before retrying a container that
	// still holds children.
	BlockedDelay time.Duration
	// BackoffUnit scales the exponential backoff for transient
	// failures: unit << attemptIndex.
	BackoffUnit time.Duration

	// sleep is injectable so tests can capture delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a policy with the defaults the catalog tolerates
// well: 1s fixed delay for blocked containers, 1s backoff unit.
func NewPolicy(maxAttempts int) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts:  maxAttempts,
		BlockedDelay: time.Second,
		BackoffUnit:  time.Second,
		sleep:        sleepCtx,
	}
}

// SetSleep replaces the blocking sleep. Test hook.
func (p *Policy) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	p.sleep = fn
}

// Delete deletes one node, applying the full classification and retry
// contract. It always returns a terminal Outcome and never panics
// through the scheduler boundary.
func (p *Policy) Delete(ctx context.Context, store Deleter, path string) Outcome {
	var delays []time.Duration
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		attempts := attempt + 1

		err := store.DeleteNode(ctx, path)
		if err == nil {
			out := Succeeded(attempts)
			out.Delays = delays
			return out
		}
		lastErr = err

		switch Classify(err) {
		case ClassBenign:
			// Already gone, or nothing further we can do. The desired
			// end state holds.
			out := Succeeded(attempts)
			out.Delays = delays
			return out

		case ClassBlocked:
			if attempts == p.MaxAttempts {
				out := Failed(err, attempts)
				out.Delays = delays
				return out
			}
			if serr := p.pause(ctx, p.BlockedDelay, &delays); serr != nil {
				out := Failed(err, attempts)
				out.Delays = delays
				return out
			}

		case ClassTransient:
			if attempts == p.MaxAttempts {
				out := Failed(err, attempts)
				out.Delays = delays
				return out
			}
			if serr := p.pause(ctx, p.BackoffUnit<<attempt, &delays); serr != nil {
				out := Failed(err, attempts)
				out.Delays = delays
				return out
			}

		default:
			// Unexpected failure: do not loop on it.
			out := Failed(err, attempts)
			out.Delays = delays
			return out
		}
	}

	out := Failed(lastErr, p.MaxAttempts)
	out.Delays = delays
	return out
}

func (p *Policy) pause(ctx context.Context, d time.Duration, delays *[]time.Duration) error {
	*delays = append(*delays, d)
	return p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
