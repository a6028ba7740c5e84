package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/brokerage"
	"github.com/google/subcommands"
)

type formatLedgerCmd struct {
	output string
}

func (*formatLedgerCmd) Name() string     { return "format-ledger" }
func (*formatLedgerCmd) Synopsis() string { return "formats the ledger file into a canonical form" }
func (*formatLedgerCmd) Usage() string {
	return `format-ledger [-o <file>]:
  formats the ledger file into a canonical form: transactions in replay
  order, sequence numbers assigned and fields in a stable order.
`
}

func (p *formatLedgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.output, "o", "", "Output file, '-' for stdout. Defaults to the ledger file itself.")
}

func (p *formatLedgerCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path := *ledgerFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			return subcommands.ExitFailure
		}
		path = cfg.LedgerFile
	}

	// 1. Read the ledger
	txs, err := decodeLedger(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	// 2. Write it back
	var buf bytes.Buffer
	if err := brokerage.EncodeLedger(&buf, txs); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	switch p.output {
	case "-":
		os.Stdout.Write(buf.Bytes())
		return subcommands.ExitSuccess
	case "":
		p.output = path
	}
	err = writeFile(p.output, func(f *os.File) error {
		_, err := f.Write(buf.Bytes())
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing ledger: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Ledger file '%s' has been formatted.\n", p.output)
	return subcommands.ExitSuccess
}
