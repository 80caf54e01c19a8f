// Package enginetest implements a scripted native engine for tests.
//
// Requests started on engines of a Library are served by the Serve function
// of the library, which drives the exchange through an Exchange: reporting
// redirects, responses, body data and terminal events. Every event is posted
// through the executor of the request, like a real engine would, and the
// destruction of native objects is recorded so tests can verify teardown
// order.
package enginetest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Library is a netengine.Library of scripted engines.
type Library struct {
	// Serve scripts every request. When nil, requests succeed with an empty
	// 200 response.
	Serve func(x *Exchange)

	// Results forced on the corresponding operations, when non-zero.
	StartResult        netengine.Result
	InitResult         netengine.Result
	RequestStartResult netengine.Result

	// SkipUploadClose prevents requests from closing their upload data
	// provider when they complete.
	SkipUploadClose bool

	mu       sync.Mutex
	events   []string
	ids      map[string]int
	engines  []*Engine
	requests []*Request
	buffers  atomic.Int64
}

var _ netengine.Library = (*Library)(nil)

func (lib *Library) nextID(kind string) string {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if lib.ids == nil {
		lib.ids = make(map[string]int)
	}
	lib.ids[kind]++
	return fmt.Sprintf("%s#%d", kind, lib.ids[kind])
}

func (lib *Library) record(object, event string) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.events = append(lib.events, object+"."+event)
}

// Events returns the lifecycle events recorded so far, such as
// "engine#1.start" or "request#2.destroy".
func (lib *Library) Events() []string {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return append([]string(nil), lib.events...)
}

// Reset clears the recorded events.
func (lib *Library) Reset() {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.events = nil
}

// Engines returns the engines created by the library.
func (lib *Library) Engines() []*Engine {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return append([]*Engine(nil), lib.engines...)
}

// Requests returns the requests created by the library.
func (lib *Library) Requests() []*Request {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return append([]*Request(nil), lib.requests...)
}

// LiveBuffers returns the number of buffers not destroyed yet.
func (lib *Library) LiveBuffers() int {
	return int(lib.buffers.Load())
}

func (lib *Library) Version() string { return "enginetest/1.0" }

func (lib *Library) NewEngine() netengine.Engine {
	e := &Engine{lib: lib, id: lib.nextID("engine")}
	lib.mu.Lock()
	lib.engines = append(lib.engines, e)
	lib.mu.Unlock()
	return e
}

func (lib *Library) NewExecutor(execute netengine.ExecuteFunc) netengine.Executor {
	return &executor{lib: lib, id: lib.nextID("executor"), execute: execute}
}

func (lib *Library) NewCallback(handler netengine.CallbackHandler, ctx netengine.ClientContext) netengine.Callback {
	return &callback{lib: lib, id: lib.nextID("callback"), handler: handler, ctx: ctx}
}

func (lib *Library) NewUploadDataProvider(handler netengine.UploadHandler, ctx netengine.ClientContext) netengine.UploadDataProvider {
	return &provider{lib: lib, id: lib.nextID("provider"), handler: handler, ctx: ctx}
}

func (lib *Library) NewRequest() netengine.Request {
	r := &Request{
		lib:    lib,
		id:     lib.nextID("request"),
		reads:  make(chan netengine.Buffer, 1),
		follow: make(chan struct{}, 1),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	lib.mu.Lock()
	lib.requests = append(lib.requests, r)
	lib.mu.Unlock()
	return r
}

func (lib *Library) NewBuffer(size uint64) netengine.Buffer {
	lib.buffers.Add(1)
	return &buffer{lib: lib, data: make([]byte, size)}
}

// Engine is a scripted engine.
type Engine struct {
	lib    *Library
	id     string
	mu     sync.Mutex
	params netengine.EngineParams
	state  string
}

// ID returns the identifier of the engine in recorded events.
func (e *Engine) ID() string { return e.id }

// Params returns the parameters the engine was started with.
func (e *Engine) Params() netengine.EngineParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// State returns one of "created", "started", "shutdown" or "destroyed".
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == "" {
		return "created"
	}
	return e.state
}

func (e *Engine) setState(state string) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	e.lib.record(e.id, state)
}

func (e *Engine) StartWithParams(params netengine.EngineParams) netengine.Result {
	e.mu.Lock()
	e.params = params
	e.mu.Unlock()
	if e.lib.StartResult != netengine.ResultSuccess {
		return e.lib.StartResult
	}
	e.setState("started")
	return netengine.ResultSuccess
}

func (e *Engine) Shutdown() netengine.Result {
	e.setState("shutdown")
	return netengine.ResultSuccess
}

func (e *Engine) Destroy() {
	e.setState("destroyed")
}

type executor struct {
	lib     *Library
	id      string
	execute netengine.ExecuteFunc
}

func (e *executor) Execute(command netengine.Runnable) { e.execute(e, command) }

func (e *executor) Destroy() { e.lib.record(e.id, "destroy") }

type callback struct {
	lib     *Library
	id      string
	handler netengine.CallbackHandler
	ctx     netengine.ClientContext
}

func (c *callback) ClientContext() netengine.ClientContext { return c.ctx }

func (c *callback) Destroy() { c.lib.record(c.id, "destroy") }

type provider struct {
	lib     *Library
	id      string
	handler netengine.UploadHandler
	ctx     netengine.ClientContext
}

func (p *provider) ClientContext() netengine.ClientContext { return p.ctx }

func (p *provider) Destroy() { p.lib.record(p.id, "destroy") }

type buffer struct {
	lib       *Library
	data      []byte
	destroyed atomic.Bool
}

func (b *buffer) Data() []byte { return b.data }

func (b *buffer) Size() uint64 { return uint64(len(b.data)) }

func (b *buffer) Destroy() {
	if b.destroyed.CompareAndSwap(false, true) {
		b.lib.buffers.Add(-1)
	}
}

type runnable func()

func (f runnable) Run() { f() }
