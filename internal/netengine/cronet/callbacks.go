//go:build cronet

package cronet

/*
#include <stdbool.h>
#include <stdint.h>
#include <cronet_c.h>
*/
import "C"

// Functions exported to Cronet. They are declared in the preamble of
// cronet.go, where the callback tables are created.

//export cloakExecute
func cloakExecute(self C.Cronet_ExecutorPtr, command C.Cronet_RunnablePtr) {
	x, ok := executors.load(self)
	if !ok {
		// The executor was destroyed while the engine still had work for
		// it: drop the command.
		C.Cronet_Runnable_Destroy(command)
		return
	}
	x.Execute(runnable{ptr: command})
}

//export cloakOnRedirectReceived
func cloakOnRedirectReceived(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr, newLocationURL *C.char) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnRedirectReceived(c, lookupRequest(req), responseInfo(info), C.GoString(newLocationURL))
	}
}

//export cloakOnResponseStarted
func cloakOnResponseStarted(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnResponseStarted(c, lookupRequest(req), responseInfo(info))
	}
}

//export cloakOnReadCompleted
func cloakOnReadCompleted(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr, buf C.Cronet_BufferPtr, bytesRead C.uint64_t) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnReadCompleted(c, lookupRequest(req), responseInfo(info), lookupBuffer(buf), uint64(bytesRead))
	}
}

//export cloakOnSucceeded
func cloakOnSucceeded(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnSucceeded(c, lookupRequest(req), responseInfo(info))
	}
}

//export cloakOnFailed
func cloakOnFailed(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr, err C.Cronet_ErrorPtr) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnFailed(c, lookupRequest(req), responseInfo(info), requestError(err))
	}
}

//export cloakOnCanceled
func cloakOnCanceled(self C.Cronet_UrlRequestCallbackPtr, req C.Cronet_UrlRequestPtr, info C.Cronet_UrlResponseInfoPtr) {
	if c, ok := callbacks.load(self); ok {
		c.handler.OnCanceled(c, lookupRequest(req), responseInfo(info))
	}
}

//export cloakUploadGetLength
func cloakUploadGetLength(self C.Cronet_UploadDataProviderPtr) C.int64_t {
	p, ok := providers.load(self)
	if !ok {
		return 0
	}
	return C.int64_t(p.handler.Length(p))
}

//export cloakUploadRead
func cloakUploadRead(self C.Cronet_UploadDataProviderPtr, s C.Cronet_UploadDataSinkPtr, buf C.Cronet_BufferPtr) {
	p, ok := providers.load(self)
	if !ok {
		sink{ptr: s}.OnReadError("upload data provider destroyed")
		return
	}
	p.handler.Read(p, sink{ptr: s}, &buffer{ptr: buf})
}

//export cloakUploadRewind
func cloakUploadRewind(self C.Cronet_UploadDataProviderPtr, s C.Cronet_UploadDataSinkPtr) {
	p, ok := providers.load(self)
	if !ok {
		sink{ptr: s}.OnRewindError("upload data provider destroyed")
		return
	}
	p.handler.Rewind(p, sink{ptr: s})
}

//export cloakUploadClose
func cloakUploadClose(self C.Cronet_UploadDataProviderPtr) {
	if p, ok := providers.load(self); ok {
		p.handler.Close(p)
	}
}
