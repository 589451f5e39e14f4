package interrupt

import "sync/atomic"

// State tracks the two-stage interrupt protocol: a first interrupt asks
// for graceful stop, a second forces immediate exit.
type State int32

const (
	StateIdle State = iota
	StateRequested
	StateForced
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateForced:
		return "forced"
	default:
		return "idle"
	}
}

// Token is the shared cancellation flag the scheduler consults before
// each new dispatch. Transitions are one-way: idle → requested → forced.
type Token struct {
	state atomic.Int32
}

func NewToken() *Token {
	return &Token{}
}

// Request moves idle → requested. Returns true on the transition, false
// if a stop was already requested.
func (t *Token) Request() bool {
	return t.state.CompareAndSwap(int32(StateIdle), int32(StateRequested))
}

// Force moves requested → forced. Returns true on the transition.
func (t *Token) Force() bool {
	return t.state.CompareAndSwap(int32(StateRequested), int32(StateForced))
}

// Requested reports whether a stop (graceful or forced) was requested.
func (t *Token) Requested() bool {
	return t.state.Load() != int32(StateIdle)
}

func (t *Token) State() State {
	return State(t.state.Load())
}
