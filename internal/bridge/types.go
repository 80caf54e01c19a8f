package bridge

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// Target describes the HTTP request to execute.
type Target struct {
	URL     string
	Method  string
	Headers []HeaderField
	Body    []byte
}

// HeaderField is a header name and its values, in submission order.
type HeaderField struct {
	Name   string
	Values []string
}

// ExecutionConfig controls how a Target is executed. A nil *ExecutionConfig
// follows redirects and connects directly.
type ExecutionConfig struct {
	Proxy           *ProxyConfig
	FollowRedirects bool
}

func (c *ExecutionConfig) proxy() *ProxyConfig {
	if c == nil {
		return nil
	}
	return c.Proxy
}

func (c *ExecutionConfig) followRedirects() bool {
	return c == nil || c.FollowRedirects
}

// ProxyScheme is the protocol spoken to a proxy.
type ProxyScheme int

const (
	ProxyHTTP ProxyScheme = iota
	ProxyHTTPS
	ProxySOCKS5
)

func (s ProxyScheme) String() string {
	switch s {
	case ProxyHTTP:
		return "http"
	case ProxyHTTPS:
		return "https"
	case ProxySOCKS5:
		return "socks5"
	default:
		return fmt.Sprintf("ProxyScheme(%d)", int(s))
	}
}

// ParseProxyScheme parses the scheme of a proxy URL.
func ParseProxyScheme(s string) (ProxyScheme, error) {
	switch s {
	case "http":
		return ProxyHTTP, nil
	case "https":
		return ProxyHTTPS, nil
	case "socks5", "socks5h":
		return ProxySOCKS5, nil
	default:
		return 0, fmt.Errorf("unsupported proxy scheme: %q", s)
	}
}

// ProxyConfig routes an execution through a proxy, on an engine dedicated to
// that execution.
type ProxyConfig struct {
	Scheme   ProxyScheme
	Host     string
	Port     uint16
	Username string
	Password string
}

// ParseProxyURL parses a proxy of the form scheme://[user:pass@]host:port.
func ParseProxyURL(s string) (*ProxyConfig, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	scheme, err := ParseProxyScheme(u.Scheme)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy port: %q", u.Port())
	}
	p := &ProxyConfig{
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   uint16(port),
	}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	return p, p.Validate()
}

// Validate reports whether the proxy can be turned into engine proxy rules.
func (p *ProxyConfig) Validate() error {
	switch {
	case p.Host == "":
		return fmt.Errorf("invalid proxy: missing host")
	case p.Port == 0:
		return fmt.Errorf("invalid proxy: port must be between 1 and 65535")
	case p.Scheme < ProxyHTTP || p.Scheme > ProxySOCKS5:
		return fmt.Errorf("invalid proxy: %s", p.Scheme)
	}
	return nil
}

// Rules returns the engine proxy rules for p, scheme://[user:pass@]host:port.
// Credentials are only included when both the username and password are set.
func (p *ProxyConfig) Rules() string {
	u := url.URL{
		Scheme: p.Scheme.String(),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port))),
	}
	if p.Username != "" && p.Password != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u.String()
}

// RequestResult is the response to a successful execution.
type RequestResult struct {
	StatusCode int
	StatusText string
	// Headers are the response headers in the order the engine reported them.
	Headers            []netengine.Header
	Body               []byte
	URL                string
	NegotiatedProtocol string
	// Redirects lists the locations the request was redirected to.
	Redirects []string
}

// Header returns the first value of the response header with the given name,
// compared case-insensitively.
func (r *RequestResult) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Outcome is the value delivered once on the result channel of a request.
type Outcome struct {
	Result *RequestResult
	Err    error
}

// Unwrap converts a value received from a result channel into a result or an
// error. ok is false when the channel was closed without a value.
func (o Outcome) Unwrap(ok bool) (*RequestResult, error) {
	if !ok {
		return nil, ErrChannelClosed
	}
	return o.Result, o.Err
}
