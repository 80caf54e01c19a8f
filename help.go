package main

import (
	"context"
	"fmt"
)

const helpUsage = `
Usage:	cloak <command> [options]

Service Commands:
   serve     Start the service exposing the gRPC and REST endpoints

Request Commands:
   exec      Execute an HTTP request and print the response

Other Commands:
   config    View or edit the cloak configuration
   help      Show usage information about cloak commands
   version   Show the cloak and engine versions

Global Options:
   -c, --config path  Path to the cloak configuration file (overrides CLOAKCONFIG)
   -h, --help         Show usage information
`

func help(ctx context.Context, args []string) error {
	flagSet := newFlagSet("cloak help", helpUsage)
	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}

	var msg string
	if len(args) == 0 {
		args = []string{"help"}
	}

	for i, cmd := range args {
		switch cmd {
		case "config":
			msg = configUsage
		case "exec":
			msg = execUsage
		case "help", "cloak":
			msg = helpUsage
		case "serve":
			msg = serveUsage
		case "version":
			msg = versionUsage
		default:
			return usageError("cloak help %s: unknown command", cmd)
		}
		if i != 0 {
			fmt.Fprintln(stdout, "---")
		}
		fmt.Fprintln(stdout, msg[1:])
	}
	return nil
}
