// Package gonet implements the native engine contract in Go, on top of
// net/http.
//
// The engine follows the execution model of Cronet: each request runs on its
// own goroutine and reports every event through the executor it was
// initialized with, waiting for the client to follow redirects and to hand
// buffers for response data. Request bodies are pulled from upload data
// providers, and response bodies are decoded according to their
// Content-Encoding.
package gonet

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/stealthrocket/cloak/internal/buffer"
	"github.com/stealthrocket/cloak/internal/netengine"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

const (
	// maxRedirects is the number of redirects a request may follow before
	// it fails with net::ERR_TOO_MANY_REDIRECTS.
	maxRedirects = 20

	dialTimeout         = 30 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	idleConnTimeout     = 90 * time.Second
)

// Library creates engines executing requests with net/http.
type Library struct {
	// TLSClientConfig is used for connections to origins and HTTPS proxies.
	// The zero value uses the system roots.
	TLSClientConfig *tls.Config

	buffers buffer.Pool
}

var _ netengine.Library = (*Library)(nil)

func (lib *Library) Version() string {
	return "gonet/" + runtime.Version()
}

func (lib *Library) NewEngine() netengine.Engine {
	return &engine{lib: lib}
}

func (lib *Library) NewExecutor(execute netengine.ExecuteFunc) netengine.Executor {
	return &executor{execute: execute}
}

func (lib *Library) NewCallback(handler netengine.CallbackHandler, ctx netengine.ClientContext) netengine.Callback {
	return &callback{handler: handler, ctx: ctx}
}

func (lib *Library) NewUploadDataProvider(handler netengine.UploadHandler, ctx netengine.ClientContext) netengine.UploadDataProvider {
	return &provider{handler: handler, ctx: ctx}
}

func (lib *Library) NewRequest() netengine.Request {
	return &request{lib: lib}
}

func (lib *Library) NewBuffer(size uint64) netengine.Buffer {
	return &pooledBuffer{pool: &lib.buffers, buf: lib.buffers.Get(size)}
}

// LiveBuffers returns the number of buffers created by the library and not
// yet destroyed.
func (lib *Library) LiveBuffers() int64 {
	return lib.buffers.Live()
}

type engineState int

const (
	engineCreated engineState = iota
	engineStarted
	engineShutdown
)

type engine struct {
	lib       *Library
	mu        sync.Mutex
	state     engineState
	params    netengine.EngineParams
	transport *http.Transport
}

func (e *engine) StartWithParams(params netengine.EngineParams) netengine.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != engineCreated {
		return netengine.ResultIllegalStateEngineStarted
	}
	transport, err := e.lib.newTransport(params)
	if err != nil {
		return netengine.ResultIllegalArgument
	}
	e.params = params
	e.transport = transport
	e.state = engineStarted
	return netengine.ResultSuccess
}

func (e *engine) Shutdown() netengine.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != engineStarted {
		return netengine.ResultIllegalState
	}
	e.state = engineShutdown
	e.transport.CloseIdleConnections()
	return netengine.ResultSuccess
}

func (e *engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != nil {
		e.transport.CloseIdleConnections()
	}
	e.state = engineShutdown
}

func (e *engine) started() (*http.Transport, netengine.EngineParams, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport, e.params, e.state == engineStarted
}

func (lib *Library) newTransport(params netengine.EngineParams) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConns:          100,
		ExpectContinueTimeout: 1 * time.Second,
		// Response bodies are decoded by the engine, which advertises the
		// encodings it supports itself.
		DisableCompression:     true,
		OnProxyConnectResponse: onProxyConnectResponse,
	}
	if lib.TLSClientConfig != nil {
		transport.TLSClientConfig = lib.TLSClientConfig.Clone()
	}

	if params.ProxyRules != "" {
		proxyURL, err := url.Parse(params.ProxyRules)
		if err != nil {
			return nil, err
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, err
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks dialer does not support contexts")
			}
			transport.DialContext = socksDialer{cd}.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %q", proxyURL.Scheme)
		}
	}

	if params.EnableHTTP2 {
		if _, err := http2.ConfigureTransports(transport); err != nil {
			return nil, err
		}
	} else {
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	// There is no QUIC stack in the standard toolchain, EnableQUIC is
	// accepted and requests negotiate HTTP/2 or HTTP/1.1.
	return transport, nil
}

type executor struct {
	execute netengine.ExecuteFunc
}

func (e *executor) Execute(command netengine.Runnable) { e.execute(e, command) }

func (e *executor) Destroy() {}

type callback struct {
	handler netengine.CallbackHandler
	ctx     netengine.ClientContext
}

func (c *callback) ClientContext() netengine.ClientContext { return c.ctx }

func (c *callback) Destroy() {}

type provider struct {
	handler netengine.UploadHandler
	ctx     netengine.ClientContext
}

func (p *provider) ClientContext() netengine.ClientContext { return p.ctx }

func (p *provider) Destroy() {}

type pooledBuffer struct {
	pool *buffer.Pool
	buf  *buffer.Buffer
}

func (b *pooledBuffer) Data() []byte {
	if b.buf == nil {
		return nil
	}
	return b.buf.Data
}

func (b *pooledBuffer) Size() uint64 { return uint64(len(b.Data())) }

func (b *pooledBuffer) Destroy() { buffer.Release(&b.buf, b.pool) }

type runnable func()

func (f runnable) Run() { f() }
