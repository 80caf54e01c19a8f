// Package bridge turns HTTP executions into the callback driven protocol of a
// native network engine.
//
// An Engine owns a long lived native engine shared by every execution that
// connects directly, and creates a dedicated engine for each execution that
// goes through a proxy. Executions are started with Start, which returns a
// Request owning the native objects of the execution and a channel receiving
// its single Outcome; Execute wraps both steps and waits for the outcome.
//
// The engine invokes callbacks on a goroutine dedicated to each request, so
// the events of a request are sequential. The state reachable from callbacks
// is registered with the engine as tickets rather than pointers, and the
// terminal callback of a request is the only place where its state is claimed
// back and its outcome delivered.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMaxResponseSize limits the size of response bodies. Requests receiving
// more than n bytes fail with ErrResponseTooLarge. Zero means no limit.
func WithMaxResponseSize(n int64) Option {
	return func(e *Engine) { e.maxBodySize = n }
}

// Engine is the handle of the shared native engine.
type Engine struct {
	lib         netengine.Library
	params      netengine.EngineParams
	shared      netengine.Engine
	log         *slog.Logger
	maxBodySize int64

	contexts tickets[requestContext]
	cursors  tickets[uploadCursor]
	adhoc    atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
}

// Stats is a snapshot of the native resources held by an engine.
type Stats struct {
	// LiveContexts is the number of requests whose terminal event has not
	// fired yet.
	LiveContexts int
	// LiveCursors is the number of upload cursors the engine has not closed.
	LiveCursors int
	// LiveEngines is the number of ad-hoc proxy engines not torn down yet.
	LiveEngines int
}

// NewEngine creates and starts the shared native engine of lib.
func NewEngine(lib netengine.Library, params netengine.EngineParams, options ...Option) (*Engine, error) {
	e := &Engine{
		lib:    lib,
		params: params,
		log:    slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	// Proxy rules only ever apply to ad-hoc engines.
	e.params.ProxyRules = ""

	shared, err := e.startEngine(e.params)
	if err != nil {
		return nil, err
	}
	e.shared = shared
	e.log.Debug("shared engine started",
		"user_agent", e.params.UserAgent,
		"version", lib.Version())
	return e, nil
}

func (e *Engine) startEngine(params netengine.EngineParams) (netengine.Engine, error) {
	engine := e.lib.NewEngine()
	if r := engine.StartWithParams(params); r != netengine.ResultSuccess {
		engine.Destroy()
		return nil, &EngineStartError{Result: r}
	}
	return engine, nil
}

// Params returns the parameters the shared engine was started with.
func (e *Engine) Params() netengine.EngineParams {
	return e.params
}

// Version returns the version of the native engine.
func (e *Engine) Version() string {
	return e.lib.Version()
}

// Stats returns a snapshot of the native resources held by e.
func (e *Engine) Stats() Stats {
	return Stats{
		LiveContexts: e.contexts.len(),
		LiveCursors:  e.cursors.len(),
		LiveEngines:  int(e.adhoc.Load()),
	}
}

// Close shuts down and destroys the shared engine. Requests still running on
// it must be closed first.
func (e *Engine) Close() error {
	var r netengine.Result
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		r = e.shared.Shutdown()
		e.shared.Destroy()
		e.log.Debug("shared engine destroyed")
	})
	if r != netengine.ResultSuccess {
		return fmt.Errorf("engine shutdown: %w", r.Error())
	}
	return nil
}

// selectEngine returns the engine to execute a request with. The second
// return value is set when the engine was created for this execution only, in
// which case the caller becomes responsible for tearing it down.
func (e *Engine) selectEngine(config *ExecutionConfig) (engine, owned netengine.Engine, err error) {
	proxy := config.proxy()
	if proxy == nil {
		return e.shared, nil, nil
	}
	if err := proxy.Validate(); err != nil {
		return nil, nil, err
	}
	params := e.params
	params.ProxyRules = proxy.Rules()

	owned, err = e.startEngine(params)
	if err != nil {
		return nil, nil, err
	}
	e.adhoc.Add(1)
	e.log.Debug("ad-hoc engine started", "proxy", proxy.Scheme.String(), "host", proxy.Host)
	return owned, owned, nil
}

// Start hands target to the native engine and returns immediately. The
// returned channel receives exactly one Outcome then gets closed. The Request
// must be closed once the outcome was received, or abandoned.
func (e *Engine) Start(target *Target, config *ExecutionConfig) (*Request, <-chan Outcome, error) {
	if e.closed.Load() {
		return nil, nil, ErrEngineClosed
	}

	engine, owned, err := e.selectEngine(config)
	if err != nil {
		return nil, nil, err
	}

	r := &Request{
		engine:   e,
		owned:    owned,
		executor: newSerialExecutor(),
	}
	r.nativeExecutor = e.lib.NewExecutor(r.executor.execute)

	rc := newRequestContext(target, config, e.maxBodySize, e.log)
	r.state = rc.state
	r.ticket = e.contexts.issue(rc)
	r.callback = e.lib.NewCallback(callbackHandler{e}, r.ticket)

	if len(target.Body) > 0 {
		r.uploadTicket = e.cursors.issue(&uploadCursor{data: target.Body})
		r.upload = e.lib.NewUploadDataProvider(uploadHandler{e}, r.uploadTicket)
	}

	method := target.Method
	if method == "" {
		method = "GET"
	}
	params := netengine.RequestParams{
		Method:  method,
		Headers: flattenHeaders(target.Headers),
	}
	if r.upload != nil {
		params.UploadDataProvider = r.upload
		params.UploadDataProviderExecutor = r.nativeExecutor
	}

	r.request = e.lib.NewRequest()
	if res := r.request.InitWithParams(engine, target.URL, params, r.callback, r.nativeExecutor); res != netengine.ResultSuccess {
		return nil, nil, r.abort(&RequestError{Op: "initializing request", Result: res})
	}

	rc.transition(Started)
	if res := r.request.Start(); res != netengine.ResultSuccess {
		return nil, nil, r.abort(&RequestError{Op: "starting request", Result: res})
	}
	e.log.Debug("request started", "method", method, "url", target.URL, "proxied", owned != nil)
	return r, rc.result, nil
}

// Execute runs target to completion and returns its result.
//
// When ctx is canceled the request is canceled on the engine, and Execute
// waits for the engine to confirm before returning an error wrapping both
// ErrCanceled and the cause of the context cancellation.
func (e *Engine) Execute(ctx context.Context, target *Target, config *ExecutionConfig) (*RequestResult, error) {
	r, results, err := e.Start(target, config)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	select {
	case outcome, ok := <-results:
		return outcome.Unwrap(ok)
	case <-ctx.Done():
		r.Cancel()
		outcome, ok := <-results
		res, err := outcome.Unwrap(ok)
		if errors.Is(err, ErrCanceled) {
			err = fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
		}
		return res, err
	}
}

func flattenHeaders(fields []HeaderField) []netengine.Header {
	n := 0
	for _, f := range fields {
		n += len(f.Values)
	}
	headers := make([]netengine.Header, 0, n)
	for _, f := range fields {
		for _, v := range f.Values {
			headers = append(headers, netengine.Header{Name: f.Name, Value: v})
		}
	}
	return headers
}
