package main

import (
	"context"
)

const unknownCommand = `cloak %s: unknown command
For a list of commands available, run 'cloak help'.`

func unknown(ctx context.Context, cmd string) error {
	return usageError(unknownCommand, cmd)
}
