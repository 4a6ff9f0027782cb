package cli

// This file contains the list command: discover test cases and print
// them without running anything.

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func (a *App) list(ctx *cli.Context) error {
	in, err := a.setup(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	switch format := ctx.String("message-format"); format {
	case "human":
		err = in.list.WriteHuman(os.Stdout)
	case "json":
		err = in.list.WriteJSON(os.Stdout, false)
	case "json-pretty":
		err = in.list.WriteJSON(os.Stdout, true)
	default:
		return cli.Exit(fmt.Sprintf("unrecognized message format: %q (known values: human, json, json-pretty)", format), 1)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
