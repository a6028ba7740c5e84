package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/brokerage"
	"github.com/google/subcommands"
)

type editCmd struct {
	tx    txFlags
	kind  string
	reset bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change a recorded transaction and settle its bucket again" }
func (*editCmd) Usage() string {
	return `bocs edit -id <id> [-c <client>] [-s <stock>] [-b <broker>] [-lots <n>] [-price <price>] [-ref <buy id>] [-at <date>]

  Changes the given fields of a recorded transaction. The bucket is
  replayed from its first transaction and every SELL settled again. The
  edit is rejected, and nothing changes, when the replay fails.

  -reset drops an override so the SELL is settled like any other.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.tx.setFlags(f, brokerage.Sell)
	f.StringVar(&c.kind, "kind", "", "BUY or SELL")
	f.BoolVar(&c.reset, "reset", false, "Drop the profit and commission override")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(ctx context.Context, a *app) error {
		if c.tx.id == "" {
			return usagef("-id is required")
		}
		old, err := a.book.Transaction(ctx, c.tx.id)
		if err != nil {
			return err
		}
		tx, err := c.apply(f, old, a.cfg.Currency)
		if err != nil {
			return err
		}
		if tx, err = a.book.Edit(ctx, tx); err != nil {
			return err
		}
		fmt.Printf("Edited %s\n", describeTx(tx))
		return nil
	})
}

// apply returns tx with the fields given on the command line replaced.
func (c *editCmd) apply(f *flag.FlagSet, tx brokerage.Transaction, defaultCurrency string) (brokerage.Transaction, error) {
	cur := tx.UnitPrice.Currency()
	if c.tx.currency != "" {
		cur = c.tx.currency
	} else if cur == "" {
		cur = defaultCurrency
	}

	var err error
	f.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "c":
			tx.Client = c.tx.client
		case "s":
			tx.Stock = c.tx.stock
		case "b":
			tx.Broker = brokerage.ParseBroker(c.tx.broker)
		case "kind":
			tx.Kind, err = brokerage.ParseKind(c.kind)
		case "lots":
			tx.Lots, err = brokerage.ParseQuantity(c.tx.lots)
		case "price":
			tx.UnitPrice, err = brokerage.ParseMoney(c.tx.price, cur)
		case "at":
			tx.OccurredAt, err = parseTime(c.tx.at)
		case "ref":
			tx.ReferencedBuy = c.tx.ref
		case "memo":
			tx.Memo = c.tx.memo
		}
	})
	if err != nil {
		return tx, usagef("%v", err)
	}

	if c.reset {
		tx.Override = false
	}
	if c.tx.profit != "" || c.tx.commission != "" {
		if c.tx.profit == "" || c.tx.commission == "" {
			return tx, usagef("-profit and -commission must be given together")
		}
		profit, err := brokerage.ParseMoney(c.tx.profit, cur)
		if err != nil {
			return tx, usagef("%v", err)
		}
		commission, err := brokerage.ParseMoney(c.tx.commission, cur)
		if err != nil {
			return tx, usagef("%v", err)
		}
		tx.RealizedProfit, tx.Commission, tx.Override = &profit, &commission, true
	}
	if tx.Kind == brokerage.Buy {
		tx.ReferencedBuy = ""
		tx.RealizedProfit, tx.Commission, tx.Override = nil, nil, false
	}
	return tx, nil
}

type deleteCmd struct{}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "remove a recorded transaction" }
func (*deleteCmd) Usage() string {
	return `bocs delete <id>...

  Removes transactions and settles their buckets again. Deleting a BUY
  whose lots were sold is rejected.
`
}

func (*deleteCmd) SetFlags(f *flag.FlagSet) {}

func (*deleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one transaction id is required")
		return subcommands.ExitUsageError
	}
	return run(ctx, true, func(ctx context.Context, a *app) error {
		for _, id := range f.Args() {
			if err := a.book.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", id)
		}
		return nil
	})
}
