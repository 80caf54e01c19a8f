package bridge

import (
	"github.com/stealthrocket/cloak/internal/netengine"
)

// uploadCursor tracks the position of the engine in a request body.
//
// The position only moves forward, except on rewind where it returns to the
// start of the body.
type uploadCursor struct {
	data     []byte
	position int
}

func (c *uploadCursor) length() int64 {
	return int64(len(c.data))
}

// read copies the next bytes of the body to b and returns how many were
// copied, zero once the whole body was consumed.
func (c *uploadCursor) read(b []byte) int {
	n := copy(b, c.data[c.position:])
	c.position += n
	return n
}

func (c *uploadCursor) rewind() {
	c.position = 0
}

// uploadHandler serves the upload protocol of request bodies for every
// request of an engine, resolving providers to their cursor through their
// client context.
type uploadHandler struct {
	engine *Engine
}

func (h uploadHandler) cursor(provider netengine.UploadDataProvider) (*uploadCursor, bool) {
	c, ok := h.engine.cursors.load(provider.ClientContext())
	if !ok {
		h.engine.log.Warn("upload callback for unknown client context",
			"client_context", uint64(provider.ClientContext()))
	}
	return c, ok
}

func (h uploadHandler) Length(provider netengine.UploadDataProvider) int64 {
	c, ok := h.cursor(provider)
	if !ok {
		return 0
	}
	return c.length()
}

func (h uploadHandler) Read(provider netengine.UploadDataProvider, sink netengine.UploadDataSink, buffer netengine.Buffer) {
	c, ok := h.cursor(provider)
	if !ok {
		sink.OnReadError("upload data provider is not registered")
		return
	}
	// The final chunk flag is only meaningful for bodies of unknown length;
	// engines stop reading once they consumed Length bytes.
	n := c.read(buffer.Data())
	sink.OnReadSucceeded(uint64(n), false)
}

func (h uploadHandler) Rewind(provider netengine.UploadDataProvider, sink netengine.UploadDataSink) {
	c, ok := h.cursor(provider)
	if !ok {
		sink.OnRewindError("upload data provider is not registered")
		return
	}
	c.rewind()
	sink.OnRewindSucceeded()
}

func (h uploadHandler) Close(provider netengine.UploadDataProvider) {
	if _, ok := h.engine.cursors.claim(provider.ClientContext()); !ok {
		h.engine.log.Warn("upload data provider closed twice",
			"client_context", uint64(provider.ClientContext()))
	}
}
