package main

// Notes on program structure
// --------------------------
//
// Cloak uses subcommands to invoke specific functionalities of the program.
// Each subcommand is implemented by a function named after the command, in a
// file of the same name (e.g. the "help" command is implemented by the help
// function in help.go).
//
// The usage message for each command is declared by a constant starting with
// the command name and followed by the suffix "Usage". For example, the usage
// message for the "help" command is declared by the constant helpUsage.
//
// The usage message contains a "Usage:	cloak <command>" section presenting
// the structure of the command. Note the tabulation separating "Usage:" and
// "cloak".

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stealthrocket/cloak/internal/cloak"
	"golang.org/x/exp/slices"
)

const rootUsage = `cloak - HTTP requests with the network stack of a browser

   cloak executes HTTP requests through the Cronet network engine, so they
   carry the TLS and HTTP/2 fingerprints of Chrome. Requests are sent from the
   command line, or through a service exposing gRPC and REST endpoints.

Example:

   $ cloak exec https://example.com
   <!doctype html>
   ...

   $ cloak serve --address :3000
   ...

For a list of commands available, run 'cloak help'.`

// Standard streams of the program, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// root is the cloak entrypoint.
func root(ctx context.Context, args ...string) int {
	configPath = ""

	flagSet := newFlagSet("cloak", helpUsage)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if args = flagSet.Args(); len(args) == 0 {
		fmt.Fprintln(stdout, rootUsage)
		return 0
	}

	cmd, args := args[0], args[1:]

	var err error
	switch cmd {
	case "config":
		err = config(ctx, args)
	case "exec":
		err = execute(ctx, args)
	case "help":
		err = help(ctx, args)
	case "serve":
		err = serve(ctx, args)
	case "version":
		err = version(ctx, args)
	default:
		err = unknown(ctx, cmd)
	}

	switch e := err.(type) {
	case nil:
		return 0
	case exitCode:
		return int(e)
	case usage:
		fmt.Fprintf(stderr, "%s\n", e)
		return 2
	default:
		fmt.Fprintf(stderr, "ERR: cloak %s: %s\n", cmd, err)
		return 1
	}
}

// exitCode is an error type returned from command functions to indicate the
// exit code that should be returned by the program.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit: %d", e)
}

// usage is an error type returned from command functions to indicate a usage
// error.
//
// Usage errors cause the program to exit with status code 2.
type usage string

func usageError(msg string, args ...any) error {
	return usage(fmt.Sprintf(msg, args...))
}

func (e usage) Error() string {
	return string(e)
}

func setEnum[T ~string](enum *T, typ string, value string, options ...string) error {
	for _, option := range options {
		if option == value {
			*enum = T(option)
			return nil
		}
	}
	return fmt.Errorf("unsupported %s: %q (not one of %s)", typ, value, strings.Join(options, ", "))
}

type outputFormat string

func (o outputFormat) String() string {
	return string(o)
}

func (o *outputFormat) Set(value string) error {
	return setEnum(o, "output format", value, "text", "json", "yaml")
}

type stringList []string

func (s stringList) String() string {
	return fmt.Sprintf("%v", []string(s))
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// configPath is set by the -c/--config options, it takes precedence over the
// CLOAKCONFIG environment variable.
var configPath cloak.Path

func loadConfig() (*cloak.Config, error) {
	setConfigPath()
	return cloak.LoadConfig()
}

func setConfigPath() {
	switch {
	case configPath != "":
		cloak.ConfigPath = configPath
	case os.Getenv("CLOAKCONFIG") != "":
		cloak.ConfigPath = cloak.Path(os.Getenv("CLOAKCONFIG"))
	default:
		cloak.ConfigPath = cloak.DefaultConfigPath
	}
}

func newFlagSet(cmd, usage string) *flag.FlagSet {
	usage = strings.TrimSpace(usage)
	flagSet := flag.NewFlagSet(cmd, flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() { fmt.Fprintln(stdout, usage) }
	customVar(flagSet, &configPath, "c", "config")
	return flagSet
}

// parseFlags is a greedy parser which consumes all options known to f and
// returns the remaining arguments.
//
// When the help option is passed, the usage message has already been printed
// and the error is exitCode(0); other parsing errors are exitCode(2).
func parseFlags(f *flag.FlagSet, args []string) ([]string, error) {
	var unknownArgs []string
	for {
		if err := f.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, exitCode(0)
			}
			return nil, exitCode(2)
		}
		if args = f.Args(); len(args) == 0 {
			return unknownArgs, nil
		}
		i := slices.IndexFunc(args, func(s string) bool {
			return strings.HasPrefix(s, "-")
		})
		if i < 0 {
			i = len(args)
		} else if args[i] == "-" {
			i++
		}
		if i == 0 {
			// The options were terminated by "--".
			return append(unknownArgs, args...), nil
		}
		unknownArgs = append(unknownArgs, args[:i]...)
		args = args[i:]
	}
}

func boolVar(f *flag.FlagSet, dst *bool, name string, alias ...string) {
	f.BoolVar(dst, name, *dst, "")
	for _, name := range alias {
		f.BoolVar(dst, name, *dst, "")
	}
}

func stringVar(f *flag.FlagSet, dst *string, name string, alias ...string) {
	f.StringVar(dst, name, *dst, "")
	for _, name := range alias {
		f.StringVar(dst, name, *dst, "")
	}
}

func customVar(f *flag.FlagSet, dst flag.Value, name string, alias ...string) {
	f.Var(dst, name, "")
	for _, name := range alias {
		f.Var(dst, name, "")
	}
}
