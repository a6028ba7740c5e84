package cmd

import (
	"context"
	"flag"
	"os"

	"github.com/etnz/brokerage"
	"github.com/etnz/brokerage/renderer"
	"github.com/google/subcommands"
)

// outputFlags select how a report is printed.
type outputFlags struct {
	format string
	query  string
}

func (o *outputFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&o.format, "format", string(renderer.Markdown), "Output format: markdown, raw, table, json or html")
	f.StringVar(&o.query, "q", "", "JSONPath query applied to the json output")
}

func (o *outputFlags) print(r renderer.Report) error {
	format, err := renderer.ParseFormat(o.format)
	if err != nil {
		return usagef("%v", err)
	}
	if o.query != "" && format != renderer.JSON {
		return usagef("-q requires -format json")
	}
	return renderer.Write(os.Stdout, r, format, o.query)
}

type positionsCmd struct {
	out       outputFlags
	client    string
	stock     string
	broker    string
	by        string
	available bool
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "show lots held per client, stock and broker" }
func (*positionsCmd) Usage() string {
	return `bocs positions [-c <client>] [-s <stock>] [-b <broker>] [-by bucket|stock|broker] [-available]

  Shows the net lots, average cost and cost basis of each bucket.
  -by rolls the open positions up by stock or by broker.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	c.out.setFlags(f)
	f.StringVar(&c.client, "c", "", "Only this client")
	f.StringVar(&c.stock, "s", "", "Only this stock")
	f.StringVar(&c.broker, "b", "", "Only this broker, '-' for none")
	f.StringVar(&c.by, "by", "bucket", "Grouping: bucket, stock or broker")
	f.BoolVar(&c.available, "available", false, "Only positions with lots left to sell")
}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(ctx context.Context, a *app) error {
		filter := brokerage.Filter{Client: c.client, Stock: c.stock}
		f.Visit(func(fl *flag.Flag) {
			if fl.Name == "b" {
				b := brokerage.ParseBroker(c.broker)
				filter.Broker = &b
			}
		})
		var positions []brokerage.Position
		var err error
		if c.available && c.client != "" && c.stock != "" && filter.Broker == nil {
			positions, err = a.book.AvailableToSell(ctx, c.client, c.stock)
		} else {
			positions, err = a.book.Positions(ctx, filter)
		}
		if err != nil {
			return err
		}
		if c.available {
			positions = brokerage.Available(positions)
		}
		switch c.by {
		case "bucket", "":
			return c.out.print(renderer.Positions(positions))
		case "stock":
			return c.out.print(renderer.Summaries("Stock", brokerage.RollupByStock(positions)))
		case "broker":
			return c.out.print(renderer.Summaries("Broker", brokerage.RollupByBroker(positions)))
		default:
			return usagef("invalid -by %q, want bucket, stock or broker", c.by)
		}
	})
}

type lotsCmd struct {
	out outputFlags
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "show the open lots of a bucket" }
func (*lotsCmd) Usage() string {
	return `bocs lots <client>/<stock>[/<broker>]

  Shows the open lots of a bucket in the order sells consume them.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) { c.out.setFlags(f) }

func (c *lotsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(ctx context.Context, a *app) error {
		if f.NArg() != 1 {
			return usagef("exactly one bucket is required")
		}
		bucket, err := brokerage.ParseBucket(f.Arg(0))
		if err != nil {
			return usagef("%v", err)
		}
		lots, err := a.book.OpenLots(ctx, bucket)
		if err != nil {
			return err
		}
		return c.out.print(renderer.Lots(bucket, lots))
	})
}

type salesCmd struct {
	out    outputFlags
	client string
}

func (*salesCmd) Name() string     { return "sales" }
func (*salesCmd) Synopsis() string { return "show sells with their profit and commission" }
func (*salesCmd) Usage() string {
	return `bocs sales [-c <client>]

  Shows every SELL with the cost of the lots it consumed, its realized
  profit and its commission.
`
}

func (c *salesCmd) SetFlags(f *flag.FlagSet) {
	c.out.setFlags(f)
	f.StringVar(&c.client, "c", "", "Only this client")
}

func (c *salesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(ctx context.Context, a *app) error {
		sales, err := a.book.Sales(ctx, c.client)
		if err != nil {
			return err
		}
		return c.out.print(renderer.Sales(sales))
	})
}

type collectionsCmd struct {
	out    outputFlags
	client string
}

func (*collectionsCmd) Name() string     { return "collections" }
func (*collectionsCmd) Synopsis() string { return "show commission owed by each client" }
func (*collectionsCmd) Usage() string {
	return `bocs collections [-c <client>]

  Shows, for each client, the commission charged, the payments received
  and the remaining balance. Largest balances come first.
`
}

func (c *collectionsCmd) SetFlags(f *flag.FlagSet) {
	c.out.setFlags(f)
	f.StringVar(&c.client, "c", "", "Only this client")
}

func (c *collectionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, false, func(ctx context.Context, a *app) error {
		if c.client != "" {
			entries, err := a.book.CollectionsOf(ctx, c.client)
			if err != nil {
				return err
			}
			return c.out.print(renderer.Collections(entries))
		}
		entries, err := a.book.Collections(ctx)
		if err != nil {
			return err
		}
		return c.out.print(renderer.Collections(entries))
	})
}

type recomputeCmd struct {
	out outputFlags
	fix bool
}

func (*recomputeCmd) Name() string     { return "recompute" }
func (*recomputeCmd) Synopsis() string { return "check stored profits and commissions against a replay" }
func (*recomputeCmd) Usage() string {
	return `bocs recompute [-fix] [<client>/<stock>[/<broker>]...]

  Replays buckets from their first transaction and lists the SELLs whose
  stored profit or commission differ. -fix overwrites them. Without
  arguments every bucket is checked.
`
}

func (c *recomputeCmd) SetFlags(f *flag.FlagSet) {
	c.out.setFlags(f)
	f.BoolVar(&c.fix, "fix", false, "Overwrite the stored values with the recomputed ones")
}

func (c *recomputeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.fix, func(ctx context.Context, a *app) error {
		var drifts []brokerage.Drift
		if f.NArg() == 0 {
			var err error
			if drifts, err = a.book.Reconcile(ctx, c.fix); err != nil {
				return err
			}
		}
		for _, arg := range f.Args() {
			bucket, err := brokerage.ParseBucket(arg)
			if err != nil {
				return usagef("%v", err)
			}
			d, err := a.book.Recompute(ctx, bucket, c.fix)
			if err != nil {
				return err
			}
			drifts = append(drifts, d...)
		}
		return c.out.print(renderer.Drifts(drifts, c.fix))
	})
}
