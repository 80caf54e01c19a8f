package bridge

import (
	"fmt"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// callbackHandler receives the events of every request of an engine and
// routes them to the request context registered for the callback.
type callbackHandler struct {
	engine *Engine
}

func (h callbackHandler) load(callback netengine.Callback) (*requestContext, bool) {
	rc, ok := h.engine.contexts.load(callback.ClientContext())
	if !ok {
		h.engine.log.Warn("request callback for unknown client context",
			"client_context", uint64(callback.ClientContext()))
	}
	return rc, ok
}

func (h callbackHandler) claim(callback netengine.Callback, event string) (*requestContext, bool) {
	rc, ok := h.engine.contexts.claim(callback.ClientContext())
	if !ok {
		h.engine.log.Warn("terminal event for a request that was already resolved",
			"event", event,
			"client_context", uint64(callback.ClientContext()))
	}
	return rc, ok
}

// halt cancels the request on behalf of the bridge; the outcome is delivered
// when the engine confirms the cancellation.
func (h callbackHandler) halt(rc *requestContext, request netengine.Request, outcome Outcome) {
	rc.stop = &outcome
	request.Cancel()
}

// read hands a fresh buffer to the engine.
func (h callbackHandler) read(rc *requestContext, request netengine.Request) {
	buffer := h.engine.lib.NewBuffer(readBufferSize)
	if r := request.Read(buffer); r != netengine.ResultSuccess {
		buffer.Destroy()
		h.halt(rc, request, Outcome{Err: &RequestError{Op: "read", Result: r}})
	}
}

func (h callbackHandler) OnRedirectReceived(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo, newLocationURL string) {
	rc, ok := h.load(callback)
	if !ok {
		request.Cancel()
		return
	}
	rc.transition(Redirecting)
	rc.redirects = append(rc.redirects, newLocationURL)
	rc.log.Debug("redirect received", "location", newLocationURL)

	if !rc.followRedirects {
		rc.capture(info)
		h.halt(rc, request, Outcome{Result: rc.requestResult()})
		return
	}
	if r := request.FollowRedirect(); r != netengine.ResultSuccess {
		h.halt(rc, request, Outcome{Err: &RequestError{Op: "follow redirect", Result: r}})
	}
}

func (h callbackHandler) OnResponseStarted(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo) {
	rc, ok := h.load(callback)
	if !ok {
		request.Cancel()
		return
	}
	rc.transition(Responding)
	rc.capture(info)
	h.read(rc, request)
}

func (h callbackHandler) OnReadCompleted(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo, buffer netengine.Buffer, bytesRead uint64) {
	rc, ok := h.load(callback)
	if !ok {
		buffer.Destroy()
		request.Cancel()
		return
	}
	rc.transition(Reading)
	rc.body.Write(buffer.Data()[:bytesRead])
	buffer.Destroy()

	if rc.maxBodySize > 0 && int64(rc.body.Len()) > rc.maxBodySize {
		err := fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, rc.maxBodySize)
		h.halt(rc, request, Outcome{Err: err})
		return
	}
	h.read(rc, request)
}

func (h callbackHandler) OnSucceeded(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo) {
	rc, ok := h.claim(callback, "succeeded")
	if !ok {
		return
	}
	rc.transition(Succeeded)
	if rc.stop != nil {
		rc.resolve(*rc.stop)
		return
	}
	if info != nil && info.URL != "" {
		rc.url = info.URL
	}
	rc.log.Debug("request succeeded", "status", rc.statusCode, "size", rc.body.Len())
	rc.resolve(Outcome{Result: rc.requestResult()})
}

func (h callbackHandler) OnFailed(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo, err *netengine.Error) {
	rc, ok := h.claim(callback, "failed")
	if !ok {
		return
	}
	rc.transition(Failed)
	if rc.stop != nil {
		rc.resolve(*rc.stop)
		return
	}
	failure := &NativeRequestError{Code: netengine.ErrorOther, Message: "unknown error"}
	if err != nil {
		failure.Code = err.Code
		failure.Message = err.Message
		failure.InternalCode = err.InternalCode
	}
	rc.log.Debug("request failed", "error", failure.Message)
	rc.resolve(Outcome{Err: failure})
}

func (h callbackHandler) OnCanceled(callback netengine.Callback, request netengine.Request, info *netengine.ResponseInfo) {
	rc, ok := h.claim(callback, "canceled")
	if !ok {
		return
	}
	rc.transition(Canceled)
	if rc.stop != nil {
		rc.resolve(*rc.stop)
		return
	}
	rc.log.Debug("request canceled")
	rc.resolve(Outcome{Err: ErrCanceled})
}
