package main

import (
	"context"
	"fmt"

	"github.com/stealthrocket/cloak/client"
	"github.com/stealthrocket/cloak/internal/cloak"
)

const versionUsage = `
Usage:	cloak version [options]

   Print the version of cloak and of the network engine it is configured to
   use. With --remote, the versions are those of a running service.

Options:
   -c, --config path     Path to the cloak configuration file (overrides CLOAKCONFIG)
   -h, --help            Show this usage information
       --remote address  Address of the service, as http://host:port or unix://path
`

func version(ctx context.Context, args []string) error {
	var remote string

	flagSet := newFlagSet("cloak version", versionUsage)
	stringVar(flagSet, &remote, "remote")

	args, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return usageError("cloak version: unexpected arguments: %q", args)
	}

	if remote != "" {
		c, err := client.New(remote)
		if err != nil {
			return err
		}
		defer c.Close()

		v, err := c.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %s\n", v.Service, v.Build)
		fmt.Fprintf(stdout, "engine %s\n", v.Version)
		return nil
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	lib, err := cloak.NewLibrary(config.Engine.Backend)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cloak %s\n", cloak.Version())
	fmt.Fprintf(stdout, "engine %s\n", lib.Version())
	return nil
}
