package enginetest

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Request is a scripted URL request.
type Request struct {
	lib *Library
	id  string

	engine   *Engine
	url      string
	params   netengine.RequestParams
	callback *callback
	executor netengine.Executor

	initialized bool
	started     bool

	reads      chan netengine.Buffer
	follow     chan struct{}
	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	pending    sync.WaitGroup
	isDone     atomic.Bool
}

// ID returns the identifier of the request in recorded events.
func (r *Request) ID() string { return r.id }

// Engine returns the engine the request was initialized with.
func (r *Request) Engine() *Engine { return r.engine }

// Params returns the parameters the request was initialized with.
func (r *Request) Params() netengine.RequestParams { return r.params }

func (r *Request) InitWithParams(engine netengine.Engine, url string, params netengine.RequestParams, cb netengine.Callback, executor netengine.Executor) netengine.Result {
	switch {
	case engine == nil:
		return netengine.ResultNullPointerEngine
	case cb == nil:
		return netengine.ResultNullPointerCallback
	case executor == nil:
		return netengine.ResultNullPointerExecutor
	case r.initialized:
		return netengine.ResultIllegalStateRequestInit
	}
	if r.lib.InitResult != netengine.ResultSuccess {
		return r.lib.InitResult
	}
	r.engine, _ = engine.(*Engine)
	r.url = url
	r.params = params
	r.callback = cb.(*callback)
	r.executor = executor
	r.initialized = true
	return netengine.ResultSuccess
}

func (r *Request) Start() netengine.Result {
	switch {
	case !r.initialized:
		return netengine.ResultIllegalStateRequestNotInit
	case r.started:
		return netengine.ResultIllegalStateRequestStarted
	}
	if r.lib.RequestStartResult != netengine.ResultSuccess {
		return r.lib.RequestStartResult
	}
	r.started = true
	go r.run()
	return netengine.ResultSuccess
}

func (r *Request) FollowRedirect() netengine.Result {
	select {
	case r.follow <- struct{}{}:
		return netengine.ResultSuccess
	default:
		return netengine.ResultIllegalStateUnexpectedRedirect
	}
}

func (r *Request) Read(buffer netengine.Buffer) netengine.Result {
	select {
	case r.reads <- buffer:
		return netengine.ResultSuccess
	default:
		return netengine.ResultIllegalStateUnexpectedRead
	}
}

func (r *Request) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancel) })
}

func (r *Request) IsDone() bool { return r.isDone.Load() }

func (r *Request) Destroy() {
	if r.started {
		r.Cancel()
		<-r.done
	}
	r.pending.Wait()
	r.lib.record(r.id, "destroy")
}

func (r *Request) run() {
	defer close(r.done)

	x := &Exchange{r: r, url: r.url}
	serve := r.lib.Serve
	if serve == nil {
		serve = func(x *Exchange) { x.Respond(200) }
	}
	serve(x)

	if !x.terminated {
		if x.Canceled() {
			x.Cancel()
		} else {
			x.Succeed()
		}
	}

	r.pending.Wait()
	for {
		select {
		case b := <-r.reads:
			b.Destroy()
		default:
			return
		}
	}
}

func (r *Request) post(fn func(h netengine.CallbackHandler)) {
	r.pending.Add(1)
	r.executor.Execute(runnable(func() {
		defer r.pending.Done()
		fn(r.callback.handler)
	}))
}

// Exchange drives a scripted request. Methods that wait on the client return
// false when the request was canceled in the meantime.
type Exchange struct {
	r          *Request
	url        string
	chain      []string
	status     int
	headers    []netengine.Header
	received   int64
	terminated bool
	closed     bool
}

// URL returns the current URL of the request, updated on followed redirects.
func (x *Exchange) URL() string { return x.url }

// Method returns the method of the request.
func (x *Exchange) Method() string { return x.r.params.Method }

// Headers returns the request headers as registered by the client.
func (x *Exchange) Headers() []netengine.Header { return x.r.params.Headers }

// Engine returns the engine the request runs on.
func (x *Exchange) Engine() *Engine { return x.r.engine }

// Canceled reports whether the client canceled the request.
func (x *Exchange) Canceled() bool {
	select {
	case <-x.r.cancel:
		return true
	default:
		return false
	}
}

// Wait blocks until the client cancels the request.
func (x *Exchange) Wait() { <-x.r.cancel }

func (x *Exchange) info() *netengine.ResponseInfo {
	return &netengine.ResponseInfo{
		URL:                x.url,
		URLChain:           append(append([]string(nil), x.chain...), x.url),
		StatusCode:         x.status,
		StatusText:         http.StatusText(x.status),
		Headers:            x.headers,
		NegotiatedProtocol: "http/1.1",
		ReceivedByteCount:  x.received,
	}
}

// Redirect reports a redirect response and waits for the client to follow
// it.
func (x *Exchange) Redirect(status int, location string) bool {
	x.status = status
	x.headers = []netengine.Header{{Name: "Location", Value: location}}
	info := x.info()
	x.r.post(func(h netengine.CallbackHandler) {
		h.OnRedirectReceived(x.r.callback, x.r, info, location)
	})
	select {
	case <-x.r.follow:
		x.chain = append(x.chain, x.url)
		x.url = location
		return true
	case <-x.r.cancel:
		return false
	}
}

// Respond reports the start of the response.
func (x *Exchange) Respond(status int, headers ...netengine.Header) bool {
	x.status = status
	x.headers = headers
	info := x.info()
	x.r.post(func(h netengine.CallbackHandler) {
		h.OnResponseStarted(x.r.callback, x.r, info)
	})
	return !x.Canceled()
}

// Write delivers data into the buffers the client hands to the request,
// posting one read completion per buffer filled.
func (x *Exchange) Write(data []byte) bool {
	for len(data) > 0 {
		select {
		case b := <-x.r.reads:
			n := copy(b.Data(), data)
			data = data[n:]
			x.received += int64(n)
			info := x.info()
			x.r.post(func(h netengine.CallbackHandler) {
				h.OnReadCompleted(x.r.callback, x.r, info, b, uint64(n))
			})
		case <-x.r.cancel:
			return false
		}
	}
	return true
}

// Succeed reports that the request completed. Calling it after another
// terminal event simulates an engine firing two terminal events.
func (x *Exchange) Succeed() {
	x.terminate(func(h netengine.CallbackHandler, info *netengine.ResponseInfo) {
		h.OnSucceeded(x.r.callback, x.r, info)
	})
}

// Fail reports that the request failed with err.
func (x *Exchange) Fail(err *netengine.Error) {
	x.terminate(func(h netengine.CallbackHandler, info *netengine.ResponseInfo) {
		h.OnFailed(x.r.callback, x.r, info, err)
	})
}

// Cancel reports that the engine canceled the request on its own.
func (x *Exchange) Cancel() {
	x.terminate(func(h netengine.CallbackHandler, info *netengine.ResponseInfo) {
		h.OnCanceled(x.r.callback, x.r, info)
	})
}

func (x *Exchange) terminate(fn func(netengine.CallbackHandler, *netengine.ResponseInfo)) {
	x.closeUpload()
	x.terminated = true
	x.r.isDone.Store(true)
	info := x.info()
	x.r.post(func(h netengine.CallbackHandler) { fn(h, info) })
}

// HasUpload reports whether the request has an upload data provider.
func (x *Exchange) HasUpload() bool {
	return x.r.params.UploadDataProvider != nil
}

var errNoUpload = errors.New("request has no upload data provider")

type uploadResult struct {
	n     uint64
	final bool
	err   string
}

type sink struct {
	results chan uploadResult
}

func (s *sink) OnReadSucceeded(n uint64, final bool) { s.results <- uploadResult{n: n, final: final} }
func (s *sink) OnReadError(msg string)               { s.results <- uploadResult{err: msg} }
func (s *sink) OnRewindSucceeded()                   { s.results <- uploadResult{} }
func (s *sink) OnRewindError(msg string)             { s.results <- uploadResult{err: msg} }

func (x *Exchange) upload(fn func(p *provider, s *sink)) (uploadResult, error) {
	p, ok := x.r.params.UploadDataProvider.(*provider)
	if !ok {
		return uploadResult{}, errNoUpload
	}
	s := &sink{results: make(chan uploadResult, 1)}
	x.r.params.UploadDataProviderExecutor.Execute(runnable(func() { fn(p, s) }))
	res := <-s.results
	if res.err != "" {
		return res, errors.New(res.err)
	}
	return res, nil
}

// UploadLength asks the upload data provider for the body length.
func (x *Exchange) UploadLength() (int64, error) {
	p, ok := x.r.params.UploadDataProvider.(*provider)
	if !ok {
		return 0, errNoUpload
	}
	length := make(chan int64, 1)
	x.r.params.UploadDataProviderExecutor.Execute(runnable(func() {
		length <- p.handler.Length(p)
	}))
	return <-length, nil
}

// UploadRead reads up to size bytes of the body.
func (x *Exchange) UploadRead(size int) ([]byte, error) {
	b := x.r.lib.NewBuffer(uint64(size))
	defer b.Destroy()
	res, err := x.upload(func(p *provider, s *sink) { p.handler.Read(p, s, b) })
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b.Data()[:res.n]...), nil
}

// UploadRewind rewinds the body to its start.
func (x *Exchange) UploadRewind() error {
	_, err := x.upload(func(p *provider, s *sink) { p.handler.Rewind(p, s) })
	return err
}

// Body reads the whole request body, or returns nil when there is none.
func (x *Exchange) Body() ([]byte, error) {
	if !x.HasUpload() {
		return nil, nil
	}
	length, err := x.UploadLength()
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, length)
	for int64(len(body)) < length {
		chunk, err := x.UploadRead(16 * 1024)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return nil, errors.New("upload data provider returned no data before the end of the body")
		}
		body = append(body, chunk...)
	}
	return body, nil
}

func (x *Exchange) closeUpload() {
	if x.closed || x.r.lib.SkipUploadClose {
		return
	}
	x.closed = true
	p, ok := x.r.params.UploadDataProvider.(*provider)
	if !ok {
		return
	}
	x.r.pending.Add(1)
	x.r.params.UploadDataProviderExecutor.Execute(runnable(func() {
		defer x.r.pending.Done()
		p.handler.Close(p)
	}))
}
