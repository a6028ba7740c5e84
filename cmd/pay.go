package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/brokerage"
	"github.com/google/subcommands"
)

type payCmd struct {
	id          string
	client      string
	amount      string
	currency    string
	at          string
	method      string
	description string
}

func (*payCmd) Name() string     { return "pay" }
func (*payCmd) Synopsis() string { return "record a commission payment from a client" }
func (*payCmd) Usage() string {
	return `bocs pay -c <client> -amount <amount> [-at <date>] [-method <method>] [-d <description>]

  Records a payment. It reduces the client balance in the collections report.
`
}

func (c *payCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Payment id. Generated when empty.")
	f.StringVar(&c.client, "c", "", "Client")
	f.StringVar(&c.amount, "amount", "", "Amount paid")
	f.StringVar(&c.currency, "currency", "", "Currency of the amount. Defaults to the configured currency.")
	f.StringVar(&c.at, "at", "", "Date or timestamp of the payment. Defaults to now.")
	f.StringVar(&c.method, "method", "", "Payment method, e.g. cash or bank")
	f.StringVar(&c.description, "d", "", "Description")
}

func (c *payCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(ctx context.Context, a *app) error {
		if c.client == "" || c.amount == "" {
			return usagef("-c and -amount are required")
		}
		cur := c.currency
		if cur == "" {
			cur = a.cfg.Currency
		}
		amount, err := brokerage.ParseMoney(c.amount, cur)
		if err != nil {
			return usagef("%v", err)
		}
		at, err := parseTime(c.at)
		if err != nil {
			return usagef("%v", err)
		}
		p, err := a.book.RecordPayment(ctx, brokerage.Payment{
			ID:          c.id,
			Client:      c.client,
			Amount:      amount,
			OccurredAt:  at,
			Method:      c.method,
			Description: c.description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded payment %s of %s from %s\n", p.ID, p.Amount, p.Client)
		return nil
	})
}
