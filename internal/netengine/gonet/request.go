package gonet

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stealthrocket/cloak/internal/netengine"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/net/http/httpguts"
)

type requestState int

const (
	requestCreated requestState = iota
	requestInitialized
	requestStarted
)

type request struct {
	lib *Library

	mu       sync.Mutex
	state    requestState
	engine   *engine
	url      *url.URL
	params   netengine.RequestParams
	callback *callback
	executor netengine.Executor

	ctx     context.Context
	cancel  context.CancelFunc
	reads   chan netengine.Buffer
	follow  chan struct{}
	done    chan struct{}
	pending sync.WaitGroup
	isDone  atomic.Bool
}

func (r *request) InitWithParams(e netengine.Engine, rawURL string, params netengine.RequestParams, cb netengine.Callback, executor netengine.Executor) netengine.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state != requestCreated:
		return netengine.ResultIllegalStateRequestInit
	case e == nil:
		return netengine.ResultNullPointerEngine
	case cb == nil:
		return netengine.ResultNullPointerCallback
	case executor == nil:
		return netengine.ResultNullPointerExecutor
	case rawURL == "":
		return netengine.ResultNullPointerURL
	case params.UploadDataProvider != nil && params.UploadDataProviderExecutor == nil:
		return netengine.ResultNullPointerExecutor
	}

	eng, ok := e.(*engine)
	if !ok {
		return netengine.ResultIllegalArgument
	}
	if _, _, started := eng.started(); !started {
		return netengine.ResultIllegalState
	}
	c, ok := cb.(*callback)
	if !ok {
		return netengine.ResultIllegalArgument
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return netengine.ResultIllegalArgument
	}

	if params.Method == "" {
		params.Method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(params.Method) {
		return netengine.ResultIllegalArgumentInvalidMethod
	}
	for _, h := range params.Headers {
		if !httpguts.ValidHeaderFieldName(h.Name) || !httpguts.ValidHeaderFieldValue(h.Value) {
			return netengine.ResultIllegalArgumentInvalidHeader
		}
	}

	r.engine = eng
	r.url = u
	r.params = params
	r.callback = c
	r.executor = executor
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.reads = make(chan netengine.Buffer, 1)
	r.follow = make(chan struct{}, 1)
	r.done = make(chan struct{})
	r.state = requestInitialized
	return netengine.ResultSuccess
}

func (r *request) Start() netengine.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case requestCreated:
		return netengine.ResultIllegalStateRequestNotInit
	case requestStarted:
		return netengine.ResultIllegalStateRequestStarted
	}
	r.state = requestStarted
	go r.run()
	return netengine.ResultSuccess
}

func (r *request) FollowRedirect() netengine.Result {
	if !r.isStarted() {
		return netengine.ResultIllegalStateRequestNotStarted
	}
	select {
	case r.follow <- struct{}{}:
		return netengine.ResultSuccess
	default:
		return netengine.ResultIllegalStateUnexpectedRedirect
	}
}

func (r *request) Read(b netengine.Buffer) netengine.Result {
	if !r.isStarted() {
		return netengine.ResultIllegalStateRequestNotStarted
	}
	select {
	case r.reads <- b:
		return netengine.ResultSuccess
	default:
		return netengine.ResultIllegalStateUnexpectedRead
	}
}

func (r *request) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *request) IsDone() bool { return r.isDone.Load() }

func (r *request) Destroy() {
	r.Cancel()
	if r.isStarted() {
		<-r.done
	}
	r.pending.Wait()
}

func (r *request) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == requestStarted
}

func (r *request) post(fn func(h netengine.CallbackHandler)) {
	r.pending.Add(1)
	r.executor.Execute(runnable(func() {
		defer r.pending.Done()
		fn(r.callback.handler)
	}))
}

func (r *request) run() {
	defer close(r.done)

	x := &exchange{r: r, url: r.url}
	err := x.execute()
	x.closeUpload()
	info := x.info

	r.isDone.Store(true)
	switch {
	case r.ctx.Err() != nil:
		r.post(func(h netengine.CallbackHandler) { h.OnCanceled(r.callback, r, info) })
	case err != nil:
		nerr := classify(err)
		r.post(func(h netengine.CallbackHandler) { h.OnFailed(r.callback, r, info, nerr) })
	default:
		r.post(func(h netengine.CallbackHandler) { h.OnSucceeded(r.callback, r, info) })
	}

	// Buffers handed to the request after its last read are owned by the
	// engine.
	r.pending.Wait()
	for {
		select {
		case b := <-r.reads:
			b.Destroy()
		default:
			r.cancel()
			return
		}
	}
}

// exchange carries the state of a request across redirects.
type exchange struct {
	r      *request
	url    *url.URL
	chain  []string
	info   *netengine.ResponseInfo
	upload *uploadBody
}

func (x *exchange) execute() error {
	r := x.r
	transport, params, ok := r.engine.started()
	if !ok {
		return errEngineShutdown
	}

	method := r.params.Method
	if p, ok := r.params.UploadDataProvider.(*provider); ok {
		upload, err := newUploadBody(r, p)
		if err != nil {
			return err
		}
		x.upload = upload
	}

	for redirects := 0; ; redirects++ {
		switch x.url.Scheme {
		case "http", "https":
		default:
			return &unknownSchemeError{scheme: x.url.Scheme}
		}

		req, err := x.newRequest(method, params)
		if err != nil {
			return err
		}
		res, err := transport.RoundTrip(req)
		if err != nil {
			return err
		}
		x.info = x.responseInfo(res, 0)

		location := res.Header.Get("Location")
		if !isRedirect(res.StatusCode) || location == "" {
			return x.respond(res, params)
		}
		drainAndClose(res.Body)

		if redirects == maxRedirects {
			return errTooManyRedirects
		}
		next, err := x.url.Parse(location)
		if err != nil {
			return err
		}

		info := x.info
		newLocation := next.String()
		r.post(func(h netengine.CallbackHandler) {
			h.OnRedirectReceived(r.callback, r, info, newLocation)
		})
		select {
		case <-r.follow:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}

		switch res.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound:
			if method == http.MethodPost {
				method, x.upload = http.MethodGet, nil
			}
		case http.StatusSeeOther:
			if method != http.MethodHead {
				method = http.MethodGet
			}
			x.upload = nil
		default:
			if x.upload != nil {
				if err := x.upload.rewind(); err != nil {
					return err
				}
			}
		}
		x.chain = append(x.chain, x.url.String())
		x.url = next
	}
}

func (x *exchange) newRequest(method string, params netengine.EngineParams) (*http.Request, error) {
	r := x.r
	req, err := http.NewRequestWithContext(r.ctx, method, x.url.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, h := range r.params.Headers {
		if x.upload == nil && r.params.UploadDataProvider != nil && isBodyHeader(h.Name) {
			continue
		}
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	if req.Header.Get("User-Agent") == "" && params.UserAgent != "" {
		req.Header.Set("User-Agent", params.UserAgent)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncoding(params.EnableBrotli))
	}
	if x.upload != nil {
		req.Body = x.upload.attempt()
		req.ContentLength = x.upload.length
		req.GetBody = func() (io.ReadCloser, error) {
			if err := x.upload.rewind(); err != nil {
				return nil, err
			}
			return x.upload.attempt(), nil
		}
	}
	return req, nil
}

func (x *exchange) respond(res *http.Response, params netengine.EngineParams) error {
	r := x.r
	defer res.Body.Close()

	raw := &countingReader{r: res.Body}
	body := decodeBody(raw, res.Header.Get("Content-Encoding"), params.EnableBrotli)
	defer body.Close()

	info := x.info
	r.post(func(h netengine.CallbackHandler) { h.OnResponseStarted(r.callback, r, info) })

	for {
		var b netengine.Buffer
		select {
		case b = <-r.reads:
		case <-r.ctx.Done():
			return r.ctx.Err()
		}

		n, err := readSome(body, b.Data())
		if n > 0 {
			x.info = x.responseInfo(res, raw.n)
			info := x.info
			r.post(func(h netengine.CallbackHandler) {
				h.OnReadCompleted(r.callback, r, info, b, uint64(n))
			})
			if err == nil {
				continue
			}
		} else {
			b.Destroy()
		}
		switch {
		case err == io.EOF:
			if n > 0 {
				// Report the end of the body on the next read, like
				// the buffer was consumed.
				continue
			}
			x.info = x.responseInfo(res, raw.n)
			return nil
		case err != nil:
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			return &decodeError{err: err, encoded: body != io.ReadCloser(raw)}
		}
	}
}

// responseInfo reports the headers of res sorted by name: net/http does not
// keep the order of the header fields it receives. Values of a header keep
// their order.
func (x *exchange) responseInfo(res *http.Response, received int64) *netengine.ResponseInfo {
	keys := maps.Keys(res.Header)
	slices.Sort(keys)

	headers := make([]netengine.Header, 0, len(res.Header))
	for _, k := range keys {
		for _, v := range res.Header[k] {
			headers = append(headers, netengine.Header{Name: k, Value: v})
		}
	}

	chain := append(slices.Clone(x.chain), x.url.String())
	statusText := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if statusText == "" {
		statusText = http.StatusText(res.StatusCode)
	}
	return &netengine.ResponseInfo{
		URL:                x.url.String(),
		URLChain:           chain,
		StatusCode:         res.StatusCode,
		StatusText:         statusText,
		Headers:            headers,
		NegotiatedProtocol: negotiatedProtocol(res),
		ReceivedByteCount:  received,
	}
}

func (x *exchange) closeUpload() {
	if p, ok := x.r.params.UploadDataProvider.(*provider); ok {
		r := x.r
		r.pending.Add(1)
		r.params.UploadDataProviderExecutor.Execute(runnable(func() {
			defer r.pending.Done()
			p.handler.Close(p)
		}))
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isBodyHeader(name string) bool {
	return strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Content-Type")
}

func negotiatedProtocol(res *http.Response) string {
	switch res.ProtoMajor {
	case 2:
		return "h2"
	case 1:
		if res.ProtoMinor == 0 {
			return "http/1.0"
		}
		return "http/1.1"
	default:
		return strings.ToLower(res.Proto)
	}
}

// readSome reads into b until at least one byte or an error is returned.
func readSome(r io.Reader, b []byte) (int, error) {
	for {
		n, err := r.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4096)
	body.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error { return nil }

var errEngineShutdown = errors.New("engine is shut down")
