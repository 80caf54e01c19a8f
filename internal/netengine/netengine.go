// Package netengine declares the contract between cloak and a native network
// engine.
//
// The types mirror the object model of the Cronet C API: engines, URL
// requests, callback tables, executors, upload data providers and buffers are
// all native objects that must be explicitly destroyed. Engines invoke client
// code through handler interfaces, passing back the native registration the
// call is made for so that the client can recover its ClientContext.
//
// Implementations of Library live in sub-packages: gonet is a pure Go engine,
// cronet binds libcronet through cgo, and enginetest is a scripted fake used
// in tests.
package netengine

// ClientContext is an opaque value attached to a native registration on
// behalf of its owner. Engines never interpret it and hand it back unchanged
// on every callback.
type ClientContext uintptr

// Library is the entry point of a native engine implementation.
type Library interface {
	// NewEngine creates an engine which must be started before use.
	NewEngine() Engine
	// NewExecutor creates a native executor which forwards commands to the
	// given function.
	NewExecutor(execute ExecuteFunc) Executor
	// NewCallback creates a URL request callback table dispatching to handler.
	NewCallback(handler CallbackHandler, ctx ClientContext) Callback
	// NewUploadDataProvider creates an upload data provider dispatching to
	// handler.
	NewUploadDataProvider(handler UploadHandler, ctx ClientContext) UploadDataProvider
	// NewRequest creates a URL request which must be initialized before use.
	NewRequest() Request
	// NewBuffer allocates a buffer of the given size.
	NewBuffer(size uint64) Buffer
	// Version returns the version string of the native engine.
	Version() string
}

// EngineParams configures an engine when it is started.
type EngineParams struct {
	UserAgent    string
	EnableQUIC   bool
	EnableHTTP2  bool
	EnableBrotli bool
	// ProxyRules routes every request of the engine through a proxy, in the
	// form scheme://[user:pass@]host:port. Empty means direct connections.
	ProxyRules string
}

// Engine is a native engine instance, owning connection pools and protocol
// state.
type Engine interface {
	StartWithParams(params EngineParams) Result
	// Shutdown stops the engine; it must be called before Destroy.
	Shutdown() Result
	Destroy()
}

// Runnable is a unit of work submitted by the engine to an executor.
type Runnable interface {
	Run()
}

// Discarder is implemented by commands holding native resources. Executors
// call Discard on the commands they drop without running them.
type Discarder interface {
	Discard()
}

// ExecuteFunc is the client half of an executor: it must eventually run the
// command, on whatever goroutine it chooses.
type ExecuteFunc func(executor Executor, command Runnable)

// Executor is a native executor object.
type Executor interface {
	Execute(command Runnable)
	Destroy()
}

// Header is a single HTTP header entry. Multi-valued headers are represented
// by repeated entries with the same name.
type Header struct {
	Name  string
	Value string
}

// RequestParams configures a URL request.
type RequestParams struct {
	Method  string
	Headers []Header
	// UploadDataProvider is nil when the request has no body.
	UploadDataProvider         UploadDataProvider
	UploadDataProviderExecutor Executor
}

// Request is a native URL request.
//
// Methods other than Destroy may be called from callbacks, on the executor of
// the request.
type Request interface {
	InitWithParams(engine Engine, url string, params RequestParams, callback Callback, executor Executor) Result
	Start() Result
	FollowRedirect() Result
	// Read asks the engine to fill buffer with response data; the engine
	// reports completion with OnReadCompleted and takes ownership of the
	// buffer until then.
	Read(buffer Buffer) Result
	Cancel()
	IsDone() bool
	// Destroy releases the request. It blocks until callbacks that are
	// running or scheduled have returned.
	Destroy()
}

// Callback is a native URL request callback registration.
type Callback interface {
	ClientContext() ClientContext
	Destroy()
}

// CallbackHandler receives the events of URL requests. For a single request
// the events are strictly ordered: zero or more redirects, response started,
// zero or more read completions, then exactly one of succeeded, failed or
// canceled.
type CallbackHandler interface {
	OnRedirectReceived(callback Callback, request Request, info *ResponseInfo, newLocationURL string)
	OnResponseStarted(callback Callback, request Request, info *ResponseInfo)
	OnReadCompleted(callback Callback, request Request, info *ResponseInfo, buffer Buffer, bytesRead uint64)
	OnSucceeded(callback Callback, request Request, info *ResponseInfo)
	OnFailed(callback Callback, request Request, info *ResponseInfo, err *Error)
	OnCanceled(callback Callback, request Request, info *ResponseInfo)
}

// UploadDataProvider is a native upload data provider registration.
type UploadDataProvider interface {
	ClientContext() ClientContext
	Destroy()
}

// UploadHandler serves the pull based upload protocol of request bodies.
type UploadHandler interface {
	// Length returns the total length of the body, or -1 if unknown.
	Length(provider UploadDataProvider) int64
	Read(provider UploadDataProvider, sink UploadDataSink, buffer Buffer)
	Rewind(provider UploadDataProvider, sink UploadDataSink)
	// Close is called exactly once, when the engine no longer needs the
	// provider.
	Close(provider UploadDataProvider)
}

// UploadDataSink receives the completion of upload operations.
type UploadDataSink interface {
	OnReadSucceeded(bytesRead uint64, finalChunk bool)
	OnReadError(message string)
	OnRewindSucceeded()
	OnRewindError(message string)
}

// Buffer is a native memory buffer.
type Buffer interface {
	Data() []byte
	Size() uint64
	Destroy()
}

// ResponseInfo describes the response of a URL request as known when a
// callback fires.
type ResponseInfo struct {
	URL                string
	URLChain           []string
	StatusCode         int
	StatusText         string
	Headers            []Header
	NegotiatedProtocol string
	WasCached          bool
	ReceivedByteCount  int64
}
