package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/brokerage"
	"github.com/google/subcommands"
)

// txFlags are the flags describing a transaction.
type txFlags struct {
	id       string
	client   string
	stock    string
	broker   string
	lots     string
	price    string
	currency string
	at       string
	memo     string
	// sells only
	ref        string
	profit     string
	commission string
}

func (t *txFlags) setFlags(f *flag.FlagSet, kind brokerage.Kind) {
	f.StringVar(&t.id, "id", "", "Transaction id. Generated when empty.")
	f.StringVar(&t.client, "c", "", "Client")
	f.StringVar(&t.stock, "s", "", "Stock symbol")
	f.StringVar(&t.broker, "b", "", "Broker, empty or '-' for none")
	f.StringVar(&t.lots, "lots", "", "Number of lots, a positive whole number")
	f.StringVar(&t.price, "price", "", "Price per lot")
	f.StringVar(&t.currency, "currency", "", "Currency of the price. Defaults to the configured currency.")
	f.StringVar(&t.at, "at", "", "Date or timestamp of the trade. Defaults to now.")
	f.StringVar(&t.memo, "memo", "", "Free text note")
	if kind == brokerage.Sell {
		f.StringVar(&t.ref, "ref", "", "Id of the BUY whose lots are sold first")
		f.StringVar(&t.profit, "profit", "", "Override the realized profit (requires -commission)")
		f.StringVar(&t.commission, "commission", "", "Override the commission (requires -profit)")
	}
}

// transaction builds the transaction described by the flags.
func (t *txFlags) transaction(kind brokerage.Kind, defaultCurrency string) (brokerage.Transaction, error) {
	if t.client == "" || t.stock == "" || t.lots == "" || t.price == "" {
		return brokerage.Transaction{}, usagef("-c, -s, -lots and -price are required")
	}
	lots, err := brokerage.ParseQuantity(t.lots)
	if err != nil {
		return brokerage.Transaction{}, usagef("%v", err)
	}
	cur := t.currency
	if cur == "" {
		cur = defaultCurrency
	}
	price, err := brokerage.ParseMoney(t.price, cur)
	if err != nil {
		return brokerage.Transaction{}, usagef("%v", err)
	}
	at, err := parseTime(t.at)
	if err != nil {
		return brokerage.Transaction{}, usagef("%v", err)
	}

	tx := brokerage.NewBuy(t.client, t.stock, brokerage.ParseBroker(t.broker), lots, price, at)
	if kind == brokerage.Sell {
		tx = brokerage.NewSell(t.client, t.stock, brokerage.ParseBroker(t.broker), lots, price, at)
		tx.ReferencedBuy = t.ref
	}
	tx.ID = t.id
	tx.Memo = t.memo

	if t.profit != "" || t.commission != "" {
		if t.profit == "" || t.commission == "" {
			return brokerage.Transaction{}, usagef("-profit and -commission must be given together")
		}
		profit, err := brokerage.ParseMoney(t.profit, cur)
		if err != nil {
			return brokerage.Transaction{}, usagef("%v", err)
		}
		commission, err := brokerage.ParseMoney(t.commission, cur)
		if err != nil {
			return brokerage.Transaction{}, usagef("%v", err)
		}
		tx.RealizedProfit, tx.Commission, tx.Override = &profit, &commission, true
	}
	return tx, nil
}

// describeTx is the one line summary printed after a write.
func describeTx(tx brokerage.Transaction) string {
	s := fmt.Sprintf("%s %s %s x %s @ %s in %s", tx.ID, tx.Kind, tx.Lots, tx.Stock, tx.UnitPrice, tx.Bucket())
	if tx.Kind == brokerage.Sell && tx.Settled() {
		s += fmt.Sprintf(", profit %s, commission %s", tx.RealizedProfit.SignedString(), tx.Commission.SignedString())
	}
	return s
}

type buyCmd struct {
	tx txFlags
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record the purchase of lots" }
func (*buyCmd) Usage() string {
	return `bocs buy -c <client> -s <stock> [-b <broker>] -lots <n> -price <price> [-at <date>]

  Records a BUY. Its lots join the end of the bucket queue.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) { c.tx.setFlags(f, brokerage.Buy) }

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(ctx context.Context, a *app) error {
		tx, err := c.tx.transaction(brokerage.Buy, a.cfg.Currency)
		if err != nil {
			return err
		}
		if tx, err = a.book.Record(ctx, tx); err != nil {
			return err
		}
		fmt.Printf("Recorded %s\n", describeTx(tx))
		return nil
	})
}

type sellCmd struct {
	tx txFlags
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record the sale of lots and settle its commission" }
func (*sellCmd) Usage() string {
	return `bocs sell -c <client> -s <stock> [-b <broker>] -lots <n> -price <price> [-ref <buy id>] [-at <date>]

  Records a SELL. Lots are taken from the referenced BUY when -ref is set,
  oldest first otherwise. The realized profit and the commission are
  computed and stored on the SELL.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) { c.tx.setFlags(f, brokerage.Sell) }

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, true, func(ctx context.Context, a *app) error {
		tx, err := c.tx.transaction(brokerage.Sell, a.cfg.Currency)
		if err != nil {
			return err
		}
		if tx, err = a.book.Record(ctx, tx); err != nil {
			return err
		}
		fmt.Printf("Recorded %s\n", describeTx(tx))
		return nil
	})
}
