package main

import (
	"strings"
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
)

var versionTests = tests{
	"show the version command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "version", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak version ")
		assert.Equal(t, stderr, "")
	},

	"show the version command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "version", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak version ")
		assert.Equal(t, stderr, "")
	},

	"the version starts with the prefix cloak": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "cloak ")
		assert.Equal(t, stderr, "")

		lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
		assert.Equal(t, len(lines), 2)
		_, version, _ := strings.Cut(lines[0], " ")
		assert.True(t, version != "", "the version number is empty")
		assert.HasPrefix(t, lines[1], "engine gonet/go")
	},

	"the version of a remote service": func(t *testing.T) {
		address := startService(t)

		stdout, stderr, exitCode := cloakCommand(t, "version", "--remote", address)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "cronet-cloak ")
		assert.Contains(t, stdout, "\nengine gonet/go")
		assert.Equal(t, stderr, "")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, _, exitCode := cloakCommand(t, "version", "-_")
		assert.Equal(t, exitCode, 2)
	},

	"passing arguments to the command causes an error": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "version", "now")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "cloak version: unexpected arguments")
	},

	"an unsupported backend in the configuration causes an error": func(t *testing.T) {
		t.Setenv("CLOAK_ENGINE", "curl")
		_, stderr, exitCode := cloakCommand(t, "version")
		assert.Equal(t, exitCode, 1)
		assert.HasPrefix(t, stderr, `ERR: cloak version: unsupported engine backend: "curl"`)
	},
}
