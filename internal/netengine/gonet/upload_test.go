package gonet

import (
	"context"
	"errors"
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
	"github.com/stealthrocket/cloak/internal/netengine"
)

func TestUploadBufferHeldUntilReadCompletes(t *testing.T) {
	lib := &Library{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &heldUpload{reads: make(chan heldRead, 1)}
	executor := lib.NewExecutor(func(_ netengine.Executor, command netengine.Runnable) {
		go command.Run()
	})
	r := &request{
		lib: lib,
		ctx: ctx,
		params: netengine.RequestParams{
			UploadDataProviderExecutor: executor,
		},
	}
	u := &uploadBody{
		r:        r,
		provider: lib.NewUploadDataProvider(handler, 0).(*provider),
		length:   -1,
	}

	errc := make(chan error, 1)
	go func() {
		_, err := u.read(u.attempt(), make([]byte, 8))
		errc <- err
	}()

	read := <-handler.reads
	cancel()
	assert.True(t, errors.Is(<-errc, context.Canceled), "expected the read to be canceled")

	// The provider still owns the buffer after the body stopped waiting.
	assert.Equal(t, lib.LiveBuffers(), int64(1))
	n := copy(read.buffer.Data(), "late")
	read.sink.OnReadSucceeded(uint64(n), true)
	assert.Equal(t, lib.LiveBuffers(), int64(0))
}

func TestSinkCompletesOnce(t *testing.T) {
	s := newSink()
	released := 0
	s.release(func() { released++ })
	assert.Equal(t, released, 0)

	s.OnReadSucceeded(3, false)
	s.OnReadError("ignored")
	assert.Equal(t, released, 1)
	assert.Equal(t, <-s.results, sinkResult{n: 3})

	s.release(func() { released++ })
	assert.Equal(t, released, 2)
}

type heldRead struct {
	sink   netengine.UploadDataSink
	buffer netengine.Buffer
}

type heldUpload struct {
	reads chan heldRead
}

func (h *heldUpload) Length(netengine.UploadDataProvider) int64 { return -1 }

func (h *heldUpload) Read(_ netengine.UploadDataProvider, sink netengine.UploadDataSink, buffer netengine.Buffer) {
	h.reads <- heldRead{sink: sink, buffer: buffer}
}

func (h *heldUpload) Rewind(_ netengine.UploadDataProvider, sink netengine.UploadDataSink) {
	sink.OnRewindSucceeded()
}

func (h *heldUpload) Close(netengine.UploadDataProvider) {}
