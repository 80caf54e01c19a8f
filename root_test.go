package main

import (
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
)

var rootTests = tests{
	"invoking cloak without a command prints the introduction message": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t)
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "cloak - HTTP requests with the network stack of a browser\n")
		assert.Equal(t, stderr, "")
	},

	"show the cloak help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the cloak help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},
}
