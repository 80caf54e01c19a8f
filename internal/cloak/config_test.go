package cloak

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stealthrocket/cloak/internal/assert"
	"gopkg.in/yaml.v3"
)

func TestReadConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(`
server:
  address: 127.0.0.1:8080
  request_timeout: 30s
  rate_limit:
    requests_per_second: 50
    burst: 10
engine:
  user_agent: test/1.0
  enable_quic: false
  max_response_size: 16 MiB
log:
  level: debug
  format: json
`))
	assert.OK(t, err)

	assert.Equal(t, c.Server.Address, "127.0.0.1:8080")
	assert.Equal(t, time.Duration(c.Server.RequestTimeout), 30*time.Second)
	assert.Equal(t, time.Duration(c.Server.ReadHeaderTimeout), 10*time.Second)
	assert.Equal(t, c.Server.RateLimit.RequestsPerSecond, 50.0)
	assert.Equal(t, c.Server.RateLimit.Burst, 10)
	assert.Equal(t, c.Engine.Backend, DefaultBackend)
	assert.Equal(t, c.Engine.UserAgent, "test/1.0")
	assert.Equal(t, c.Engine.EnableQUIC, false)
	assert.Equal(t, c.Engine.EnableHTTP2, true)
	assert.Equal(t, c.Engine.MaxResponseSize.Or(0), Size(16<<20))
	assert.Equal(t, c.Log.Level, "debug")
	assert.Equal(t, c.Log.Format, "json")

	params := c.EngineParams()
	assert.Equal(t, params.UserAgent, "test/1.0")
	assert.Equal(t, params.EnableBrotli, true)
	assert.Equal(t, params.ProxyRules, "")
}

func TestReadEmptyConfig(t *testing.T) {
	c, err := ReadConfig(strings.NewReader(""))
	assert.OK(t, err)
	assert.DeepEqual(t, c, DefaultConfig(), allowOptions)
}

func TestReadConfigNullSize(t *testing.T) {
	for _, null := range []string{"null", "~", ""} {
		c, err := ReadConfig(strings.NewReader("engine:\n  max_response_size: " + null + "\n"))
		assert.OK(t, err)
		_, ok := c.Engine.MaxResponseSize.Value()
		assert.Equal(t, ok, false)
	}

	c, err := ReadConfig(strings.NewReader("server:\n  socket: null\nengine:\n  user_agent: test/1.0\n"))
	assert.OK(t, err)
	_, ok := c.Server.Socket.Value()
	assert.Equal(t, ok, false)
	assert.Equal(t, c.Engine.MaxResponseSize.Or(0), Size(64<<20))
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		scenario string
		config   string
		error    string
	}{
		{
			scenario: "unknown field",
			config:   "server:\n  port: 3000\n",
			error:    "field port not found",
		},
		{
			scenario: "unknown backend",
			config:   "engine:\n  backend: curl\n",
			error:    `unsupported engine backend: "curl"`,
		},
		{
			scenario: "invalid size",
			config:   "engine:\n  max_response_size: lots\n",
			error:    "invalid size",
		},
		{
			scenario: "invalid duration",
			config:   "server:\n  request_timeout: forever\n",
			error:    "invalid duration",
		},
		{
			scenario: "invalid log level",
			config:   "log:\n  level: loud\n",
			error:    `unsupported log level: "loud"`,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			_, err := ReadConfig(strings.NewReader(test.config))
			assert.True(t, err != nil && strings.Contains(err.Error(), test.error),
				"unexpected error: "+errorString(err))
		})
	}
}

func errorString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

func TestConfigEnvironment(t *testing.T) {
	c := DefaultConfig()
	env := map[string]string{
		"CLOAK_LOG_LEVEL":  "WARN",
		"CLOAK_LOG_FORMAT": "json",
	}
	assert.OK(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, c.Log.Level, "warn")
	assert.Equal(t, c.Log.Format, "json")

	env["CLOAK_ENGINE"] = "curl"
	assert.True(t, c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}) != nil, "expected an error selecting an unknown backend")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.OK(t, os.WriteFile(path, []byte("server:\n  address: :4000\n"), 0666))

	defer func(p Path) { ConfigPath = p }(ConfigPath)
	ConfigPath = Path(path)
	t.Setenv("CLOAK_LOG_LEVEL", "error")

	c, err := LoadConfig()
	assert.OK(t, err)
	assert.Equal(t, c.Server.Address, ":4000")
	assert.Equal(t, c.Log.Level, "error")

	ConfigPath = Path(filepath.Join(t.TempDir(), "missing.yaml"))
	c, err = LoadConfig()
	assert.OK(t, err)
	assert.Equal(t, c.Server.Address, ":3000")
}

func TestConfigEncoding(t *testing.T) {
	c := DefaultConfig()
	c.Server.Socket = Some(Path("/tmp/cloak.sock"))

	b, err := yaml.Marshal(c)
	assert.OK(t, err)
	assert.True(t, strings.Contains(string(b), "max_response_size: 64 MiB"), string(b))
	assert.True(t, strings.Contains(string(b), "read_header_timeout: 10s"), string(b))

	decoded, err := ReadConfig(strings.NewReader(string(b)))
	assert.OK(t, err)
	assert.DeepEqual(t, decoded, c, allowOptions)

	c.Engine.MaxResponseSize = None[Size]()
	j, err := json.Marshal(c.Engine)
	assert.OK(t, err)
	assert.True(t, strings.Contains(string(j), `"max_response_size":null`), string(j))
}

func TestPathResolve(t *testing.T) {
	t.Setenv("HOME", "/home/cloak")

	tests := []struct {
		in  Path
		out string
	}{
		{in: ".", out: "."},
		{in: "/etc/cloak.yaml", out: "/etc/cloak.yaml"},
		{in: "~/.cloak/config.yaml", out: "/home/cloak/.cloak/config.yaml"},
		{in: "~cloak", out: "~cloak"},
	}

	for _, test := range tests {
		resolved, err := test.in.Resolve()
		assert.OK(t, err)
		assert.Equal(t, resolved, test.out)
	}
}

func TestSize(t *testing.T) {
	for in, out := range map[string]Size{
		"1024":   1024,
		"1 KiB":  1024,
		"1.5 MB": 1500000,
		"64MiB":  64 << 20,
	} {
		s, err := ParseSize(in)
		assert.OK(t, err)
		assert.Equal(t, s, out)
	}
	assert.Equal(t, Size(64<<20).String(), "64 MiB")
}

func TestNewLibrary(t *testing.T) {
	lib, err := NewLibrary("go")
	assert.OK(t, err)
	assert.True(t, strings.HasPrefix(lib.Version(), "gonet/"), lib.Version())

	_, err = NewLibrary("curl")
	assert.True(t, err != nil, "expected an error creating an unknown backend")
}

func TestBuildVersion(t *testing.T) {
	tests := []struct {
		info    debug.BuildInfo
		version string
	}{
		{
			info:    debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			version: "devel",
		},
		{
			info:    debug.BuildInfo{Main: debug.Module{Version: "v1.2.0"}},
			version: "v1.2.0",
		},
		{
			info: debug.BuildInfo{
				Main: debug.Module{Version: "v1.2.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			version: "v1.2.0 0123456789ab-dirty",
		},
	}

	for _, test := range tests {
		assert.Equal(t, buildVersion(&test.info), test.version)
	}
}

var allowOptions = cmp.AllowUnexported(Option[Size]{}, Option[Path]{})
