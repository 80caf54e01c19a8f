package bridge

import (
	"sync"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// serialExecutor runs the commands that the engine submits for one request,
// in submission order, on a goroutine dedicated to that request.
//
// Submissions never block: commands may be submitted by callbacks running on
// the executor itself.
type serialExecutor struct {
	mu       sync.Mutex
	cond     sync.Cond
	queue    []netengine.Runnable
	draining bool
	stopped  bool
	done     chan struct{}
}

func newSerialExecutor() *serialExecutor {
	s := &serialExecutor{done: make(chan struct{})}
	s.cond.L = &s.mu
	go s.run()
	return s
}

func (s *serialExecutor) execute(_ netengine.Executor, command netengine.Runnable) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		discard(command)
		return
	}
	s.queue = append(s.queue, command)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *serialExecutor) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.draining {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.stopped = true
			s.mu.Unlock()
			return
		}
		command := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		command.Run()
	}
}

// shutdown waits for the queued commands to run, including the ones they
// submit, then stops accepting commands. Commands submitted after that are
// discarded.
func (s *serialExecutor) shutdown() {
	s.mu.Lock()
	s.draining = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func discard(command netengine.Runnable) {
	if d, ok := command.(netengine.Discarder); ok {
		d.Discard()
	}
}
