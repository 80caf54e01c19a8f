//go:build cronet

// Package cronet binds the Cronet C API through cgo.
//
// The package is only built with the cronet build tag, and links against
// libcronet, which must be installed with its headers where the C toolchain
// can find them (see CGO_CFLAGS and CGO_LDFLAGS).
//
// Cronet calls back into Go with pointers to its own objects. Every native
// object created by the package is registered in a table keyed by its C
// pointer, which is how callbacks find the Go value they are dispatched to.
package cronet

/*
#cgo LDFLAGS: -lcronet
#include <stdbool.h>
#include <stdlib.h>
#include <cronet_c.h>

extern void cloakExecute(Cronet_ExecutorPtr self, Cronet_RunnablePtr command);

extern void cloakOnRedirectReceived(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info, char *newLocationURL);
extern void cloakOnResponseStarted(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info);
extern void cloakOnReadCompleted(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info, Cronet_BufferPtr buffer, uint64_t bytesRead);
extern void cloakOnSucceeded(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info);
extern void cloakOnFailed(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info, Cronet_ErrorPtr error);
extern void cloakOnCanceled(Cronet_UrlRequestCallbackPtr self, Cronet_UrlRequestPtr request, Cronet_UrlResponseInfoPtr info);

extern int64_t cloakUploadGetLength(Cronet_UploadDataProviderPtr self);
extern void cloakUploadRead(Cronet_UploadDataProviderPtr self, Cronet_UploadDataSinkPtr sink, Cronet_BufferPtr buffer);
extern void cloakUploadRewind(Cronet_UploadDataProviderPtr self, Cronet_UploadDataSinkPtr sink);
extern void cloakUploadClose(Cronet_UploadDataProviderPtr self);
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Library creates native objects with libcronet.
type Library struct{}

var _ netengine.Library = Library{}

// Version returns the version string of libcronet. It creates a transient
// engine since the C API only exposes the version on engine instances.
func (Library) Version() string {
	e := C.Cronet_Engine_Create()
	defer C.Cronet_Engine_Destroy(e)
	return C.GoString(C.Cronet_Engine_GetVersionString(e))
}

func (Library) NewEngine() netengine.Engine {
	return &engine{ptr: C.Cronet_Engine_Create()}
}

func (Library) NewExecutor(execute netengine.ExecuteFunc) netengine.Executor {
	x := &executor{
		ptr:     C.Cronet_Executor_CreateWith((*[0]byte)(C.cloakExecute)),
		execute: execute,
	}
	executors.store(x.ptr, x)
	return x
}

func (Library) NewCallback(handler netengine.CallbackHandler, ctx netengine.ClientContext) netengine.Callback {
	c := &callback{
		ptr: C.Cronet_UrlRequestCallback_CreateWith(
			(*[0]byte)(C.cloakOnRedirectReceived),
			(*[0]byte)(C.cloakOnResponseStarted),
			(*[0]byte)(C.cloakOnReadCompleted),
			(*[0]byte)(C.cloakOnSucceeded),
			(*[0]byte)(C.cloakOnFailed),
			(*[0]byte)(C.cloakOnCanceled),
		),
		handler: handler,
		ctx:     ctx,
	}
	callbacks.store(c.ptr, c)
	return c
}

func (Library) NewUploadDataProvider(handler netengine.UploadHandler, ctx netengine.ClientContext) netengine.UploadDataProvider {
	p := &provider{
		ptr: C.Cronet_UploadDataProvider_CreateWith(
			(*[0]byte)(C.cloakUploadGetLength),
			(*[0]byte)(C.cloakUploadRead),
			(*[0]byte)(C.cloakUploadRewind),
			(*[0]byte)(C.cloakUploadClose),
		),
		handler: handler,
		ctx:     ctx,
	}
	providers.store(p.ptr, p)
	return p
}

func (Library) NewRequest() netengine.Request {
	r := &request{ptr: C.Cronet_UrlRequest_Create()}
	requests.store(r.ptr, r)
	return r
}

func (Library) NewBuffer(size uint64) netengine.Buffer {
	b := &buffer{ptr: C.Cronet_Buffer_Create(), owned: true}
	C.Cronet_Buffer_InitWithAlloc(b.ptr, C.uint64_t(size))
	buffers.store(b.ptr, b)
	return b
}

// registry maps C pointers to the Go values wrapping them.
type registry[K comparable, V any] struct {
	mutex  sync.Mutex
	values map[K]V
}

func (r *registry[K, V]) store(k K, v V) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.values == nil {
		r.values = make(map[K]V)
	}
	r.values[k] = v
}

func (r *registry[K, V]) load(k K) (v V, ok bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	v, ok = r.values[k]
	return v, ok
}

func (r *registry[K, V]) delete(k K) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.values, k)
}

var (
	executors registry[C.Cronet_ExecutorPtr, *executor]
	callbacks registry[C.Cronet_UrlRequestCallbackPtr, *callback]
	providers registry[C.Cronet_UploadDataProviderPtr, *provider]
	requests  registry[C.Cronet_UrlRequestPtr, *request]
	buffers   registry[C.Cronet_BufferPtr, *buffer]
)

type engine struct {
	ptr C.Cronet_EnginePtr
}

func (e *engine) StartWithParams(params netengine.EngineParams) netengine.Result {
	p := C.Cronet_EngineParams_Create()
	defer C.Cronet_EngineParams_Destroy(p)

	userAgent := C.CString(params.UserAgent)
	defer C.free(unsafe.Pointer(userAgent))
	C.Cronet_EngineParams_user_agent_set(p, userAgent)
	C.Cronet_EngineParams_enable_quic_set(p, C.bool(params.EnableQUIC))
	C.Cronet_EngineParams_enable_http2_set(p, C.bool(params.EnableHTTP2))
	C.Cronet_EngineParams_enable_brotli_set(p, C.bool(params.EnableBrotli))

	if params.ProxyRules != "" {
		rules := C.CString(params.ProxyRules)
		defer C.free(unsafe.Pointer(rules))
		C.Cronet_EngineParams_proxy_rules_set(p, rules)
	}
	return netengine.Result(C.Cronet_Engine_StartWithParams(e.ptr, p))
}

func (e *engine) Shutdown() netengine.Result {
	return netengine.Result(C.Cronet_Engine_Shutdown(e.ptr))
}

func (e *engine) Destroy() {
	C.Cronet_Engine_Destroy(e.ptr)
}

type executor struct {
	ptr     C.Cronet_ExecutorPtr
	execute netengine.ExecuteFunc
}

func (x *executor) Execute(command netengine.Runnable) {
	x.execute(x, command)
}

func (x *executor) Destroy() {
	executors.delete(x.ptr)
	C.Cronet_Executor_Destroy(x.ptr)
}

// runnable is a command submitted by Cronet. Executors own the commands they
// receive, so running one also destroys it.
type runnable struct {
	ptr C.Cronet_RunnablePtr
}

func (r runnable) Run() {
	C.Cronet_Runnable_Run(r.ptr)
	C.Cronet_Runnable_Destroy(r.ptr)
}

func (r runnable) Discard() {
	C.Cronet_Runnable_Destroy(r.ptr)
}

type callback struct {
	ptr     C.Cronet_UrlRequestCallbackPtr
	handler netengine.CallbackHandler
	ctx     netengine.ClientContext
}

func (c *callback) ClientContext() netengine.ClientContext { return c.ctx }

func (c *callback) Destroy() {
	callbacks.delete(c.ptr)
	C.Cronet_UrlRequestCallback_Destroy(c.ptr)
}

type provider struct {
	ptr     C.Cronet_UploadDataProviderPtr
	handler netengine.UploadHandler
	ctx     netengine.ClientContext
}

func (p *provider) ClientContext() netengine.ClientContext { return p.ctx }

func (p *provider) Destroy() {
	providers.delete(p.ptr)
	C.Cronet_UploadDataProvider_Destroy(p.ptr)
}

type sink struct {
	ptr C.Cronet_UploadDataSinkPtr
}

func (s sink) OnReadSucceeded(bytesRead uint64, finalChunk bool) {
	C.Cronet_UploadDataSink_OnReadSucceeded(s.ptr, C.uint64_t(bytesRead), C.bool(finalChunk))
}

func (s sink) OnReadError(message string) {
	msg := C.CString(message)
	defer C.free(unsafe.Pointer(msg))
	C.Cronet_UploadDataSink_OnReadError(s.ptr, msg)
}

func (s sink) OnRewindSucceeded() {
	C.Cronet_UploadDataSink_OnRewindSucceeded(s.ptr)
}

func (s sink) OnRewindError(message string) {
	msg := C.CString(message)
	defer C.free(unsafe.Pointer(msg))
	C.Cronet_UploadDataSink_OnRewindError(s.ptr, msg)
}

// buffer wraps a Cronet buffer. Buffers handed to upload providers belong to
// the engine and are not owned.
type buffer struct {
	ptr   C.Cronet_BufferPtr
	owned bool
}

func (b *buffer) Data() []byte {
	size := b.Size()
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(C.Cronet_Buffer_GetData(b.ptr)), size)
}

func (b *buffer) Size() uint64 {
	return uint64(C.Cronet_Buffer_GetSize(b.ptr))
}

func (b *buffer) Destroy() {
	if b.owned {
		buffers.delete(b.ptr)
		C.Cronet_Buffer_Destroy(b.ptr)
	}
}

func lookupBuffer(ptr C.Cronet_BufferPtr) *buffer {
	if b, ok := buffers.load(ptr); ok {
		return b
	}
	return &buffer{ptr: ptr}
}
