// Command bocs records brokerage transactions and reports positions,
// realized profits and the commission owed by each client.
//
// An unknown command <name> runs the bocs-<name> executable found in the
// PATH, if any.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/brokerage/cmd"
	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// Exits when invoked by the shell to complete a command line.
	cmd.Completion(commander, flag.CommandLine).Complete("bocs")

	flag.Parse()
	if args := flag.Args(); len(args) > 0 && !cmd.IsCommand(commander, args[0]) {
		if found, code := cmd.RunExtension(args[0], args[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}
