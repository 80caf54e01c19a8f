package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
	"github.com/stealthrocket/cloak/internal/bridge"
	"github.com/stealthrocket/cloak/internal/logger"
	"github.com/stealthrocket/cloak/internal/netengine"
	"github.com/stealthrocket/cloak/internal/netengine/gonet"
	"github.com/stealthrocket/cloak/internal/service"
	"github.com/stealthrocket/cloak/pkg/enginev1"
)

func startOrigin(t *testing.T) string {
	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		io.WriteString(w, "hello world")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s %s", r.Method, strings.Join(r.Header.Values("X-Value"), ","), b)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hello", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func startService(t *testing.T) string {
	engine, err := bridge.NewEngine(&gonet.Library{}, netengine.EngineParams{
		UserAgent:   "CronetCloak/1.0",
		EnableHTTP2: true,
	})
	assert.OK(t, err)
	t.Cleanup(func() { engine.Close() })

	server := httptest.NewServer(service.New(engine, service.Config{
		Version: "test",
		Logger:  logger.Discard(),
	}).Handler())
	t.Cleanup(server.Close)
	return server.URL
}

func closedAddress(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.OK(t, err)
	address := l.Addr().String()
	assert.OK(t, l.Close())
	return address
}

var execTests = tests{
	"show the exec command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "exec", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak exec ")
		assert.Equal(t, stderr, "")
	},

	"exec without a url": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "exec")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.HasPrefix(t, stderr, "Expected exactly one URL as argument")
	},

	"exec prints the response body": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, stderr, exitCode := cloakCommand(t, "exec", origin+"/hello")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "hello world")
		assert.Equal(t, stderr, "")
	},

	"exec includes the status line and headers": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, stderr, exitCode := cloakCommand(t, "exec", "-i", origin+"/hello")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "http/1.1 200\n")
		assert.Contains(t, stdout, "\nX-Test: yes\n")
		assert.True(t, strings.HasSuffix(stdout, "\n\nhello world"), stdout)
		assert.Equal(t, stderr, "")
	},

	"exec sends the method, headers and body": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, _, exitCode := cloakCommand(t, "exec",
			"-X", "put",
			"-H", "X-Value: 1",
			"--header", "X-Value: 2",
			"-d", "data",
			origin+"/echo")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "PUT 1,2 data")
	},

	"exec sends a body with the POST method by default": func(t *testing.T) {
		origin := startOrigin(t)
		path := filepath.Join(t.TempDir(), "body.txt")
		assert.OK(t, os.WriteFile(path, []byte("from a file"), 0666))

		stdout, _, exitCode := cloakCommand(t, "exec", "--data-file", path, origin+"/echo")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "POST  from a file")
	},

	"exec follows redirects": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, _, exitCode := cloakCommand(t, "exec", origin+"/redirect")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "hello world")
	},

	"exec does not follow redirects with --no-follow": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, _, exitCode := cloakCommand(t, "exec", "-i", "--no-follow", origin+"/redirect")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "http/1.1 302\n")
		assert.Contains(t, stdout, "\nLocation: /hello\n")
	},

	"exec prints the response in json": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, _, exitCode := cloakCommand(t, "exec", "-o", "json", origin+"/hello")
		assert.Equal(t, exitCode, 0)

		res := new(enginev1.ExecuteResponse)
		assert.OK(t, json.Unmarshal([]byte(stdout), res))
		assert.True(t, res.Success, "the request failed")
		assert.True(t, res.RequestId != "", "the request has no id")
		assert.Equal(t, res.Response.StatusCode, 200)
		assert.Equal(t, string(res.Response.Body), "hello world")
		assert.Equal(t, res.Response.Headers.Get("X-Test"), "yes")
		assert.Equal(t, res.Response.Url, origin+"/hello")
	},

	"exec prints the response in yaml": func(t *testing.T) {
		origin := startOrigin(t)

		stdout, _, exitCode := cloakCommand(t, "exec", "-o", "yaml", origin+"/hello")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "request_id: ")
		assert.Contains(t, stdout, "\nsuccess: true\n")
		assert.Contains(t, stdout, "\n  status_code: 200\n")
		assert.Contains(t, stdout, "\n  body: 68656c6c6f20776f726c64\n")
	},

	"exec reports network errors": func(t *testing.T) {
		address := closedAddress(t)

		stdout, stderr, exitCode := cloakCommand(t, "exec", "http://"+address+"/")
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "ERR: cloak exec: net::ERR_CONNECTION_REFUSED\n")
	},

	"exec reports network errors in json": func(t *testing.T) {
		address := closedAddress(t)

		stdout, stderr, exitCode := cloakCommand(t, "exec", "-o", "json", "http://"+address+"/")
		assert.Equal(t, exitCode, 1)
		assert.Equal(t, stderr, "")

		res := new(enginev1.ExecuteResponse)
		assert.OK(t, json.Unmarshal([]byte(stdout), res))
		assert.Equal(t, res.Success, false)
		assert.Equal(t, res.ErrorMessage, "net::ERR_CONNECTION_REFUSED")
	},

	"exec through a remote service": func(t *testing.T) {
		origin := startOrigin(t)
		address := startService(t)

		stdout, stderr, exitCode := cloakCommand(t, "exec", "--remote", address, "-d", "remote", origin+"/echo")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "POST  remote")
		assert.Equal(t, stderr, "")
	},

	"exec with a malformed header": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "exec", "-H", "X-Value", "http://localhost/")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, `malformed header: "X-Value"`)
	},

	"exec with an unsupported proxy": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "exec", "--proxy", "ftp://127.0.0.1:21", "http://localhost/")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, `unsupported proxy scheme: "ftp"`)
	},

	"exec with both a body and a body file": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "exec", "-d", "a", "--data-file", "b", "http://localhost/")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "The --data and --data-file options are mutually exclusive")
	},
}

func TestParseProxy(t *testing.T) {
	tests := []struct {
		proxy  string
		config *enginev1.ProxyConfig
		error  string
	}{
		{
			proxy:  "http://10.0.0.1:8080",
			config: &enginev1.ProxyConfig{Type: enginev1.ProxyTypeHTTP, Host: "10.0.0.1", Port: 8080},
		},
		{
			proxy:  "https://proxy.example.com:443",
			config: &enginev1.ProxyConfig{Type: enginev1.ProxyTypeHTTPS, Host: "proxy.example.com", Port: 443},
		},
		{
			proxy: "socks5://user:pass@[::1]:1080",
			config: &enginev1.ProxyConfig{
				Type:     enginev1.ProxyTypeSOCKS5,
				Host:     "::1",
				Port:     1080,
				Username: "user",
				Password: "pass",
			},
		},
		{proxy: "socks4://10.0.0.1:1080", error: `unsupported proxy scheme: "socks4"`},
		{proxy: "http://10.0.0.1", error: `invalid proxy port: ""`},
		{proxy: "http://10.0.0.1:0", error: "invalid proxy: port must be between 1 and 65535"},
		{proxy: "http://:8080", error: "invalid proxy: missing host"},
		{proxy: "http://10.0.0.1:65536", error: `invalid proxy port: "65536"`},
	}

	for _, test := range tests {
		t.Run(test.proxy, func(t *testing.T) {
			config, err := parseProxy(test.proxy)
			if test.error != "" {
				assert.ErrorMessage(t, err, test.error)
				return
			}
			assert.OK(t, err)
			assert.DeepEqual(t, config, test.config)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{
		"Accept: text/html",
		"X-Value:1",
		"accept: */*",
		"X-Value: 2 ",
	})
	assert.OK(t, err)
	assert.DeepEqual(t, headers, enginev1.Headers{
		{Name: "Accept", Values: []string{"text/html"}},
		{Name: "X-Value", Values: []string{"1", "2"}},
		{Name: "accept", Values: []string{"*/*"}},
	})
}
