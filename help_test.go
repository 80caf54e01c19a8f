package main

import (
	"testing"

	"github.com/stealthrocket/cloak/internal/assert"
)

var helpTests = tests{
	"calling help with an unknown command causes an error": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "whatever")
		assert.Equal(t, exitCode, 2)
		assert.Equal(t, stdout, "")
		assert.Equal(t, stderr, "cloak help whatever: unknown command\n")
	},

	"passing an unsupported flag to the command causes an error": func(t *testing.T) {
		_, stderr, exitCode := cloakCommand(t, "help", "-_")
		assert.Equal(t, exitCode, 2)
		assert.HasPrefix(t, stderr, "flag provided but not defined: -_")
	},

	"show the help command help with the short option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "-h")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help command help with the long option": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the help command help after a command name": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "exec", "--help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},

	"show the usage of multiple commands": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "serve", "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak serve ")
		assert.Contains(t, stdout, "\n---\nUsage:\tcloak version ")
		assert.Equal(t, stderr, "")
	},

	"cloak help config": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "config")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak config ")
		assert.Equal(t, stderr, "")
	},

	"cloak help exec": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "exec")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak exec ")
		assert.Equal(t, stderr, "")
	},

	"cloak help help": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "help")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak <command> ")
		assert.Equal(t, stderr, "")
	},

	"cloak help serve": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "serve")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak serve ")
		assert.Equal(t, stderr, "")
	},

	"cloak help version": func(t *testing.T) {
		stdout, stderr, exitCode := cloakCommand(t, "help", "version")
		assert.Equal(t, exitCode, 0)
		assert.HasPrefix(t, stdout, "Usage:\tcloak version ")
		assert.Equal(t, stderr, "")
	},
}
