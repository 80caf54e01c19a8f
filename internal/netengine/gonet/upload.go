package gonet

import (
	"fmt"
	"io"
	"sync"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// uploadChunkSize is the size of the buffers handed to upload data providers.
const uploadChunkSize = 16 * 1024

// uploadBody pulls a request body from an upload data provider. Operations
// on the provider are posted to the provider executor, and wait for the
// provider to report their completion through the sink.
//
// net/http may still be writing a previous attempt when the body is rewound
// for a redirect or a retry, so every attempt reads through its own handle
// and handles of past attempts stop returning data.
type uploadBody struct {
	r        *request
	provider *provider
	length   int64

	mu      sync.Mutex
	sent    int64
	final   bool
	pending []byte
	current *uploadAttempt
}

func newUploadBody(r *request, p *provider) (*uploadBody, error) {
	length := make(chan int64, 1)
	r.params.UploadDataProviderExecutor.Execute(runnable(func() {
		length <- p.handler.Length(p)
	}))
	select {
	case n := <-length:
		return &uploadBody{r: r, provider: p, length: n}, nil
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

func (u *uploadBody) attempt() *uploadAttempt {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.current != nil {
		u.current.closed = true
	}
	u.current = &uploadAttempt{body: u}
	return u.current
}

func (u *uploadBody) read(a *uploadAttempt, b []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if a.closed {
		return 0, io.EOF
	}
	if len(u.pending) == 0 {
		if u.final || (u.length >= 0 && u.sent >= u.length) {
			return 0, io.EOF
		}
		if err := u.pull(); err != nil {
			return 0, err
		}
	}
	n := copy(b, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

// pull asks the provider for the next chunk of the body. It must be called
// with the mutex held.
func (u *uploadBody) pull() error {
	b := u.r.lib.NewBuffer(uploadChunkSize)
	s := newSink()

	res, err := u.wait(s, func() { u.provider.handler.Read(u.provider, s, b) })
	if err != nil {
		// The provider owns the buffer until it completes the read.
		s.release(b.Destroy)
		return err
	}
	defer b.Destroy()
	if res.n > b.Size() {
		return &uploadError{message: fmt.Sprintf("upload data provider reported %d bytes read into a buffer of %d bytes", res.n, b.Size())}
	}
	if res.n == 0 && !res.final {
		return &uploadError{message: "upload data provider returned no data before the end of the body"}
	}
	u.pending = append(u.pending[:0], b.Data()[:res.n]...)
	u.sent += int64(res.n)
	u.final = res.final
	if u.length >= 0 && u.sent > u.length {
		return &uploadError{message: "upload data provider returned more data than its length"}
	}
	return nil
}

func (u *uploadBody) rewind() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, err := u.call(func(s *sink) { u.provider.handler.Rewind(u.provider, s) }); err != nil {
		return err
	}
	u.sent, u.final, u.pending = 0, false, nil
	if u.current != nil {
		u.current.closed = true
		u.current = nil
	}
	return nil
}

func (u *uploadBody) call(fn func(*sink)) (sinkResult, error) {
	s := newSink()
	return u.wait(s, func() { fn(s) })
}

func (u *uploadBody) wait(s *sink, fn func()) (sinkResult, error) {
	u.r.params.UploadDataProviderExecutor.Execute(runnable(fn))
	select {
	case res := <-s.results:
		if res.err != "" {
			return res, &uploadError{message: res.err}
		}
		return res, nil
	case <-u.r.ctx.Done():
		return sinkResult{}, u.r.ctx.Err()
	}
}

type uploadAttempt struct {
	body   *uploadBody
	closed bool
}

func (a *uploadAttempt) Read(b []byte) (int, error) { return a.body.read(a, b) }

func (a *uploadAttempt) Close() error { return nil }

type sinkResult struct {
	n     uint64
	final bool
	err   string
}

// sink receives the completions of upload operations. Only the first
// completion of an operation is taken into account.
type sink struct {
	results chan sinkResult

	mu        sync.Mutex
	completed bool
	onDone    func()
}

func newSink() *sink {
	return &sink{results: make(chan sinkResult, 1)}
}

func (s *sink) complete(res sinkResult) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	onDone := s.onDone
	s.onDone = nil
	s.mu.Unlock()

	s.results <- res
	if onDone != nil {
		onDone()
	}
}

// release calls fn once the operation has completed, immediately if it
// already has.
func (s *sink) release(fn func()) {
	s.mu.Lock()
	if !s.completed {
		s.onDone = fn
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

func (s *sink) OnReadSucceeded(n uint64, final bool) { s.complete(sinkResult{n: n, final: final}) }
func (s *sink) OnReadError(message string)           { s.complete(sinkResult{err: message}) }
func (s *sink) OnRewindSucceeded()                   { s.complete(sinkResult{}) }
func (s *sink) OnRewindError(message string)         { s.complete(sinkResult{err: message}) }

var _ netengine.UploadDataSink = (*sink)(nil)
