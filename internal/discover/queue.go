package discover

import "sync"

// queue is the bounded-pool work queue for container listings. pending
// counts queued plus in-flight items so workers know when discovery is
// exhausted rather than merely idle.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	pending int
	stopped bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.pending++
	q.items = append(q.items, path)
	q.cond.Signal()
}

// pop blocks until an item is available or no more work can arrive.
func (q *queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && q.pending > 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped || len(q.items) == 0 {
		return "", false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// done marks one popped item as fully processed.
func (q *queue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.cond.Broadcast()
	}
}

// stop wakes all waiters and drops any queued work.
func (q *queue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}
