package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/brokerage/docs"
	"github.com/etnz/brokerage/renderer"
	"github.com/google/subcommands"
)

type topicCmd struct {
	raw bool
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `topic [-raw] <topic>...

Show documentation for the given topics, '*' for all of them.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print the markdown source")
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	topics := f.Args()
	if len(topics) == 0 {
		topics = []string{"readme"}
	}

	doc, err := docs.Read(topics...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading doc: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.raw {
		fmt.Print(doc)
		return subcommands.ExitSuccess
	}
	printMarkdown(doc)

	return subcommands.ExitSuccess
}

// printMarkdown prints md for the terminal, or as is when it cannot be rendered.
func printMarkdown(md string) {
	out, err := renderer.Terminal(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}
