package cmd

import (
	"flag"

	"github.com/etnz/brokerage/docs"
	"github.com/etnz/brokerage/renderer"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// predictors of flags whose values are known in advance.
var predictors = map[string]complete.Predictor{
	"format":        formats(),
	"by":            predict.Set{"bucket", "stock", "broker"},
	"kind":          predict.Set{"BUY", "SELL"},
	"config":        predict.Files("*.yaml"),
	"ledger-file":   predict.Files("*.jsonl"),
	"payments-file": predict.Files("*.jsonl"),
	"db":            predict.Files("*.db"),
	"trace":         predict.Files("*.json"),
	"o":             predict.Files("*.jsonl"),
}

func topicNames() predict.Set {
	s := predict.Set{docs.All}
	topics, err := docs.Topics()
	if err != nil {
		return s
	}
	for _, t := range topics {
		s = append(s, t.Name)
	}
	return s
}

func formats() predict.Set {
	var s predict.Set
	for _, f := range renderer.Formats {
		s = append(s, string(f))
	}
	return s
}

// Completion describes the commands registered in c for shell completion.
func Completion(c *subcommands.Commander, global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(global),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		sub := &complete.Command{Flags: flagPredictors(fs)}
		switch cmd.Name() {
		case "help":
			sub.Args = predict.Set(commandNames(c))
		case "topic":
			sub.Args = topicNames()
		}
		root.Sub[cmd.Name()] = sub
	})
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	m := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := predictors[f.Name]; ok {
			m[f.Name] = p
			return
		}
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			m[f.Name] = predict.Nothing
			return
		}
		m[f.Name] = predict.Something
	})
	return m
}

func commandNames(c *subcommands.Commander) []string {
	var names []string
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		names = append(names, cmd.Name())
	})
	return names
}
