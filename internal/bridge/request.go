package bridge

import (
	"sync"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Request owns the native objects of one execution.
type Request struct {
	engine *Engine
	state  *stateCell
	ticket netengine.ClientContext

	request        netengine.Request
	callback       netengine.Callback
	nativeExecutor netengine.Executor
	executor       *serialExecutor
	upload         netengine.UploadDataProvider
	uploadTicket   netengine.ClientContext
	owned          netengine.Engine

	closeOnce sync.Once
}

// State returns the current state of the request.
func (r *Request) State() State {
	return r.state.load()
}

// Proxied reports whether the request runs on an engine of its own.
func (r *Request) Proxied() bool {
	return r.owned != nil
}

// Cancel asks the engine to cancel the request. The outcome is still
// delivered by the terminal event that follows.
func (r *Request) Cancel() {
	r.request.Cancel()
}

// Close releases the native objects of the request, in reverse order of
// acquisition. Destroying the native request blocks until its in-flight
// callbacks have returned, so nothing else can refer to the other objects
// when they are destroyed.
func (r *Request) Close() error {
	r.closeOnce.Do(r.teardown)
	return nil
}

// abort releases a request that never reached the engine. No terminal event
// will fire, so its context is claimed here.
func (r *Request) abort(err error) error {
	r.engine.contexts.claim(r.ticket)
	r.teardown()
	return err
}

func (r *Request) teardown() {
	e := r.engine

	if r.request != nil {
		r.request.Destroy()
	}
	r.callback.Destroy()
	r.nativeExecutor.Destroy()
	r.executor.shutdown()

	if rc, ok := e.contexts.claim(r.ticket); ok {
		e.log.Warn("request destroyed before its terminal event",
			"state", rc.state.load().String())
		close(rc.result)
	}

	if r.upload != nil {
		r.upload.Destroy()
		if _, ok := e.cursors.claim(r.uploadTicket); ok {
			e.log.Warn("upload data provider was not closed by the engine")
		}
	}

	if r.owned != nil {
		r.owned.Shutdown()
		r.owned.Destroy()
		e.adhoc.Add(-1)
		e.log.Debug("ad-hoc engine destroyed")
	}
}
