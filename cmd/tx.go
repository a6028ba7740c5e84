package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/brokerage"
	"github.com/etnz/brokerage/renderer"
	"github.com/google/subcommands"
)

type txCmd struct {
	out    outputFlags
	client string
	stock  string
	start  string
	end    string
	head   int
	tail   int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions of the ledger" }
func (*txCmd) Usage() string {
	return `bocs tx [-c <client>] [-s <stock>] [-from <date>] [-to <date>] [-head <n>] [-tail <n>]

  Lists transactions in replay order, with options for filtering and limiting the output.
`
}

func (p *txCmd) SetFlags(f *flag.FlagSet) {
	p.out.setFlags(f)
	f.StringVar(&p.client, "c", "", "Only this client")
	f.StringVar(&p.stock, "s", "", "Only this stock")
	f.StringVar(&p.start, "from", "", "Only transactions at or after this date")
	f.StringVar(&p.end, "to", "", "Only transactions before this date")
	f.IntVar(&p.head, "head", 0, "Show only the first N transactions.")
	f.IntVar(&p.tail, "tail", 0, "Show only the last N transactions.")
}

func (p *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.head > 0 && p.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	return run(ctx, false, func(ctx context.Context, a *app) error {
		var from, to time.Time
		var err error
		if p.start != "" {
			if from, err = parseTime(p.start); err != nil {
				return usagef("%v", err)
			}
		}
		if p.end != "" {
			if to, err = parseTime(p.end); err != nil {
				return usagef("%v", err)
			}
		}

		txs, err := a.book.Transactions(ctx, brokerage.Filter{Client: p.client, Stock: p.stock})
		if err != nil {
			return err
		}
		var transactions []brokerage.Transaction
		for _, tx := range txs {
			if !from.IsZero() && tx.OccurredAt.Before(from) {
				continue
			}
			if !to.IsZero() && !tx.OccurredAt.Before(to) {
				continue
			}
			transactions = append(transactions, tx)
		}

		if p.head > 0 && len(transactions) > p.head {
			transactions = transactions[:p.head]
		}
		if p.tail > 0 && len(transactions) > p.tail {
			transactions = transactions[len(transactions)-p.tail:]
		}
		return p.out.print(renderer.Transactions(transactions))
	})
}
