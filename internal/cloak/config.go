package cloak

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "~/.cloak/config.yaml"
	defaultUserAgent  = "CronetCloak/1.0"
	defaultAddress    = ":3000"
)

// ConfigPath is the path to the cloak configuration.
var ConfigPath Path = DefaultConfigPath

// LoadConfig opens and reads the configuration file, then applies overrides
// from the environment.
func LoadConfig() (*Config, error) {
	r, _, err := OpenConfig()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	c, err := ReadConfig(r)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenConfig opens the configuration file. When the file does not exist, the
// returned reader produces the default configuration.
func OpenConfig() (io.ReadCloser, string, error) {
	path, err := ConfigPath.Resolve()
	if err != nil {
		return nil, path, err
	}
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, path, err
		}
		c := DefaultConfig()
		b, _ := yaml.Marshal(c)
		return io.NopCloser(bytes.NewReader(b)), path, nil
	}
	return f, path, nil
}

// ReadConfig reads and parses configuration. Fields missing from r keep
// their default values.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err := d.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		return nil, err
	}

	// The decoder leaves fields set to null untouched, which would keep the
	// defaults of optional values.
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if isNull(&doc, "server", "socket") {
		c.Server.Socket = None[Path]()
	}
	if isNull(&doc, "engine", "max_response_size") {
		c.Engine.MaxResponseSize = None[Size]()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// isNull reports whether the value at path in the YAML document is an
// explicit null.
func isNull(node *yaml.Node, path ...string) bool {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return false
		}
		node = node.Content[0]
	}
	for _, key := range path {
		if node.Kind != yaml.MappingNode {
			return false
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
			}
		}
		if next == nil {
			return false
		}
		node = next
	}
	return node.ShortTag() == "!!null"
}

// DefaultConfig is the default configuration.
func DefaultConfig() *Config {
	c := new(Config)
	c.Server.Address = defaultAddress
	c.Server.ReadHeaderTimeout = Duration(10 * time.Second)
	c.Engine.Backend = DefaultBackend
	c.Engine.UserAgent = defaultUserAgent
	c.Engine.EnableQUIC = true
	c.Engine.EnableHTTP2 = true
	c.Engine.EnableBrotli = true
	c.Engine.MaxResponseSize = Some(Size(64 << 20))
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Config is cloak configuration.
type Config struct {
	Server struct {
		Address string `json:"address" yaml:"address"`
		// Socket is the path of a unix socket the service listens on in
		// addition to Address.
		Socket            Option[Path] `json:"socket" yaml:"socket"`
		RequestTimeout    Duration     `json:"request_timeout" yaml:"request_timeout"`
		ReadHeaderTimeout Duration     `json:"read_header_timeout" yaml:"read_header_timeout"`
		RateLimit         struct {
			RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
			Burst             int     `json:"burst" yaml:"burst"`
		} `json:"rate_limit" yaml:"rate_limit"`
	} `json:"server" yaml:"server"`

	Engine struct {
		Backend         string       `json:"backend" yaml:"backend"`
		UserAgent       string       `json:"user_agent" yaml:"user_agent"`
		EnableQUIC      bool         `json:"enable_quic" yaml:"enable_quic"`
		EnableHTTP2     bool         `json:"enable_http2" yaml:"enable_http2"`
		EnableBrotli    bool         `json:"enable_brotli" yaml:"enable_brotli"`
		MaxResponseSize Option[Size] `json:"max_response_size" yaml:"max_response_size"`
	} `json:"engine" yaml:"engine"`

	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`
}

// Validate checks that c holds supported values.
func (c *Config) Validate() error {
	if !isBackend(c.Engine.Backend) {
		return fmt.Errorf("unsupported engine backend: %q (not one of %s)", c.Engine.Backend, strings.Join(Backends(), ", "))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %q (not one of debug, info, warn, error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q (not one of text, json)", c.Log.Format)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid rate limit: %v requests per second", c.Server.RateLimit.RequestsPerSecond)
	}
	return nil
}

// applyEnv overrides configuration from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if level, ok := lookup("CLOAK_LOG_LEVEL"); ok && level != "" {
		c.Log.Level = strings.ToLower(level)
	}
	if format, ok := lookup("CLOAK_LOG_FORMAT"); ok && format != "" {
		c.Log.Format = strings.ToLower(format)
	}
	if backend, ok := lookup("CLOAK_ENGINE"); ok && backend != "" {
		c.Engine.Backend = backend
	}
	return c.Validate()
}
