package limiter

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between calls to the rate-limited
// catalog API. Concurrent callers are serialized onto evenly spaced
// slots; each caller sleeps locally until its slot arrives.
type Pacer struct {
	mu          sync.Mutex
	minInterval time.Duration
	next        time.Time
}

// New creates a pacer. A non-positive interval disables pacing.
func New(minInterval time.Duration) *Pacer {
	return &Pacer{minInterval: minInterval}
}

// Wait blocks until the caller's slot arrives or the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.minInterval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if p.next.After(now) {
		wait = p.next.Sub(now)
		p.next = p.next.Add(p.minInterval)
	} else {
		p.next = now.Add(p.minInterval)
	}
	p.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
