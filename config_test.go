package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
	"gopkg.in/yaml.v3"
)

var configTests = tests{
	"show the config command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "config", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak config ")
		assert.Equal(t, stderr, "")
	},

	"the text output is the content of the configuration file": func(t *testing.T) {
		b, err := os.ReadFile(os.Getenv("CLOAKCONFIG"))
		assert.OK(t, err)

		stdout, stderr, exitCode := cloakCommand(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, string(b))
		assert.Equal(t, stderr, "")
	},

	"the json output includes defaults and environment overrides": func(t *testing.T) {
		t.Setenv("CLOAK_LOG_FORMAT", "json")

		stdout, stderr, exitCode := cloakCommand(t, "config", "-o", "json")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		var c struct {
			Server struct {
				Address string `json:"address"`
			} `json:"server"`
			Engine struct {
				Backend         string `json:"backend"`
				MaxResponseSize string `json:"max_response_size"`
			} `json:"engine"`
			Log struct {
				Level  string `json:"level"`
				Format string `json:"format"`
			} `json:"log"`
		}
		assert.OK(t, json.Unmarshal([]byte(stdout), &c))
		assert.Equal(t, c.Server.Address, ":3000")
		assert.Equal(t, c.Engine.Backend, "go")
		assert.Equal(t, c.Engine.MaxResponseSize, "64 MiB")
		assert.Equal(t, c.Log.Level, "warn")
		assert.Equal(t, c.Log.Format, "json")
	},

	"the yaml output can be read back as configuration": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "config", "--output", "yaml")
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stderr, "")

		var c configuration
		assert.OK(t, yaml.Unmarshal([]byte(stdout), &c))
		assert.Equal(t, c.Engine.Backend, "go")
		assert.Equal(t, c.Log.Level, "warn")
	},

	"the configuration path can be set with an option": func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "other.yaml")
		assert.OK(t, os.WriteFile(path, []byte("server:\n  address: :4000\n"), 0666))

		stdout, _, exitCode := cloakCommand(t, "config", "-c", path)
		assert.Equal(t, exitCode, 0)
		assert.Equal(t, stdout, "server:\n  address: :4000\n")
	},

	"a missing configuration file shows the defaults": func(t *testing.T) {
		t.Setenv("CLOAKCONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

		stdout, _, exitCode := cloakCommand(t, "config")
		assert.Equal(t, exitCode, 0)
		assert.Contains(t, stdout, "address: :3000\n")
		assert.Contains(t, stdout, "user_agent: CronetCloak/1.0\n")
	},

	"an invalid configuration file causes an error": func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		assert.OK(t, os.WriteFile(path, []byte("server:\n  port: 3000\n"), 0666))

		_, stderr, exitCode := cloakCommand(t, "config", "-c", path, "-o", "json")
		assert.Equal(t, exitCode, 1)
		assert.HasPrefix(t, stderr, "ERR: cloak config: ")
		assert.Contains(t, stderr, "field port not found")
	},

	"an unsupported output format causes an error": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "config", "-o", "xml")
		assert.Equal(t, exitCode, 2)
		assert.Contains(t, stderr, `unsupported output format: "xml"`)
	},
}
