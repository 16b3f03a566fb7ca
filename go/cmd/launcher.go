package cmd

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

// Register adds a top-level command. Commands register themselves from init.
func Register(c subcommands.Command) {
	subcommands.Register(c, "")
}

func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
