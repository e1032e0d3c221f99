package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/incremental/cmd/incremental/commands"
	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{
		RunID: uuid.NewString(),
		In:    os.Stdin,
		Out:   os.Stdout,
		Err:   os.Stderr,
	}

	ctx := kong.Parse(cli,
		kong.Name("incremental"),
		kong.Description("Track which build inputs changed since the last successful build."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
