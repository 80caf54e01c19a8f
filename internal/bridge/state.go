package bridge

import (
	"fmt"
	"sync/atomic"
)

// State is the execution state of a request.
type State int32

const (
	// Built indicates that the native objects of the request are wired
	// together but the request was not handed to the engine yet.
	Built State = iota

	// Started indicates that the engine is executing the request.
	Started

	// Redirecting indicates that the engine reported a redirect.
	Redirecting

	// Responding indicates that the response headers were received.
	Responding

	// Reading indicates that response body data is being received.
	Reading

	// Succeeded is a terminal state.
	Succeeded

	// Failed is a terminal state.
	Failed

	// Canceled is a terminal state.
	Canceled
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Started:
		return "started"
	case Redirecting:
		return "redirecting"
	case Responding:
		return "responding"
	case Reading:
		return "reading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s is one of the terminal states.
func (s State) Terminal() bool {
	return s >= Succeeded
}

func (s State) canTransitionTo(next State) bool {
	switch s {
	case Built:
		return next == Started
	case Started, Redirecting:
		return next == Redirecting || next == Responding || next.Terminal()
	case Responding, Reading:
		return next == Reading || next.Terminal()
	default:
		return false
	}
}

// stateCell holds the state of a request, shared between the callbacks that
// drive it and the request handle that reports it.
type stateCell struct {
	value atomic.Int32
}

func (c *stateCell) load() State {
	return State(c.value.Load())
}

// transition moves the cell to next, returning the previous state and whether
// the transition was valid. Invalid transitions leave the cell unchanged.
func (c *stateCell) transition(next State) (State, bool) {
	for {
		prev := c.load()
		if !prev.canTransitionTo(next) {
			return prev, false
		}
		if c.value.CompareAndSwap(int32(prev), int32(next)) {
			return prev, true
		}
	}
}
