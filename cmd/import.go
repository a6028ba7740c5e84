package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/brokerage"
	"github.com/google/subcommands"
)

type importCmd struct {
	check bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "copy the JSONL ledger and payments into the database" }
func (*importCmd) Usage() string {
	return `bocs -db <file> import [-check]

  Copies the transactions of the ledger file and the payments file into the
  database given by -db. Recorded sequence numbers are kept.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.check, "check", true, "Report the sells whose derived values differ from a replay once imported")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(ctx context.Context, a *app) error {
		if a.db == nil {
			return usagef("import needs a database, set -db")
		}
		txs, err := decodeLedger(a.cfg.LedgerFile)
		if err != nil {
			return err
		}
		payments, err := decodePayments(a.cfg.PaymentsFile)
		if err != nil {
			return err
		}
		// numbers the transactions that have no sequence yet
		mem, err := brokerage.NewMemoryStore(txs, payments)
		if err != nil {
			return err
		}
		if err := a.db.Import(ctx, mem.All(), mem.AllPayments()); err != nil {
			return err
		}
		fmt.Printf("Imported %d transactions and %d payments into %s.\n", len(txs), len(payments), a.cfg.Database)

		if !c.check {
			return nil
		}
		drifts, err := a.book.Reconcile(ctx, false)
		if err != nil {
			return err
		}
		if len(drifts) > 0 {
			fmt.Printf("%d sells differ from a replay. Run recompute -fix to update them.\n", len(drifts))
		}
		return nil
	})
}
