package brokerage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the side of a transaction.
type Kind string

const (
	Buy  Kind = "BUY"
	Sell Kind = "SELL"
)

// ParseKind parses a transaction kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case Buy, Sell:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// Transaction is a BUY or SELL of whole lots of a stock by a client,
// optionally through a broker.
//
// A committed transaction is immutable except for RealizedProfit and
// Commission, which are derived from the bucket history unless Override is
// set.
type Transaction struct {
	ID         string
	Seq        int64 // insertion order, breaks OccurredAt ties
	Client     string
	Stock      string
	Broker     Broker
	Kind       Kind
	Lots       Quantity
	UnitPrice  Money
	OccurredAt time.Time

	// ReferencedBuy forces a SELL to consume this BUY first.
	ReferencedBuy string

	RealizedProfit *Money
	Commission     *Money
	// Override marks RealizedProfit and Commission as user supplied.
	Override bool

	Memo string
}

// NewBuy returns an unsaved BUY.
func NewBuy(client, stock string, broker Broker, lots Quantity, price Money, at time.Time) Transaction {
	return Transaction{Client: client, Stock: stock, Broker: broker, Kind: Buy, Lots: lots, UnitPrice: price, OccurredAt: at}
}

// NewSell returns an unsaved SELL.
func NewSell(client, stock string, broker Broker, lots Quantity, price Money, at time.Time) Transaction {
	return Transaction{Client: client, Stock: stock, Broker: broker, Kind: Sell, Lots: lots, UnitPrice: price, OccurredAt: at}
}

// Bucket returns the bucket t belongs to.
func (t Transaction) Bucket() Bucket {
	return Bucket{Client: t.Client, Stock: t.Stock, Broker: t.Broker}
}

// Amount is the total value of the transaction, lots times unit price.
func (t Transaction) Amount() Money { return t.UnitPrice.Mul(t.Lots) }

// Settled reports whether both derived fields are present.
func (t Transaction) Settled() bool { return t.RealizedProfit != nil && t.Commission != nil }

// WithSettlement returns a copy of t carrying s as its derived fields.
func (t Transaction) WithSettlement(s Settlement) Transaction {
	p, c := s.RealizedProfit, s.Commission
	t.RealizedProfit, t.Commission = &p, &c
	return t
}

// Validate checks the fields of t, independently of any other transaction.
// All failures are reported together in a *MalformedTransactionError.
func (t Transaction) Validate() error {
	var errs error
	fail := func(format string, args ...any) {
		errs = errors.Join(errs, fmt.Errorf(format, args...))
	}
	if t.ID == "" {
		fail("id is missing")
	}
	if t.Client == "" {
		fail("client id is missing")
	}
	if t.Stock == "" {
		fail("stock id is missing")
	}
	if id, ok := t.Broker.ID(); ok && id == "" {
		fail("broker id is empty")
	}
	if t.Kind != Buy && t.Kind != Sell {
		fail("kind must be BUY or SELL, got %q", t.Kind)
	}
	if !t.Lots.IsPositive() || !t.Lots.IsWhole() {
		fail("lots must be a positive integer, got %s", t.Lots)
	}
	if !t.UnitPrice.IsPositive() {
		fail("unit price must be positive, got %s", t.UnitPrice.Decimal())
	}
	if t.OccurredAt.IsZero() {
		fail("occurrence time is missing")
	}
	switch t.Kind {
	case Buy:
		if t.ReferencedBuy != "" {
			fail("a buy cannot reference another buy")
		}
		if t.RealizedProfit != nil || t.Commission != nil || t.Override {
			fail("a buy has no realized profit nor commission")
		}
	case Sell:
		if t.ReferencedBuy != "" && t.ReferencedBuy == t.ID {
			fail("a sell cannot reference itself")
		}
		if t.Override && !t.Settled() {
			fail("an override needs both realized profit and commission")
		}
	}
	if errs != nil {
		return &MalformedTransactionError{ID: t.ID, Err: errs}
	}
	return nil
}

// before is the replay order: occurrence time, then insertion order, then id.
func (t Transaction) before(u Transaction) bool {
	if c := t.OccurredAt.Compare(u.OccurredAt); c != 0 {
		return c < 0
	}
	if t.Seq != u.Seq {
		return t.Seq < u.Seq
	}
	return t.ID < u.ID
}

// SortTransactions sorts txs in replay order.
func SortTransactions(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		switch {
		case a.before(b):
			return -1
		case b.before(a):
			return 1
		}
		return 0
	})
}

// sameDerived reports whether two optional amounts are equal.
func sameDerived(a, b *Money) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.value.Equal(b.value)
}

// MarshalJSON writes t as a single flat object with a stable field order.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Optional("seq", t.Seq)
	w.Append("kind", t.Kind)
	w.Append("occurredAt", t.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.Append("client", t.Client)
	w.Append("stock", t.Stock)
	w.Optional("broker", t.Broker)
	w.Append("lots", t.Lots)
	w.Append("price", t.UnitPrice.value)
	w.Optional("currency", t.UnitPrice.cur)
	w.Optional("ref", t.ReferencedBuy)
	if t.RealizedProfit != nil {
		w.Append("realizedProfit", t.RealizedProfit.value)
	}
	if t.Commission != nil {
		w.Append("commission", t.Commission.value)
	}
	w.Optional("override", t.Override)
	w.Optional("memo", t.Memo)
	return w.MarshalJSON()
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	var v struct {
		ID             string           `json:"id"`
		Seq            int64            `json:"seq"`
		Kind           string           `json:"kind"`
		OccurredAt     time.Time        `json:"occurredAt"`
		Client         string           `json:"client"`
		Stock          string           `json:"stock"`
		Broker         Broker           `json:"broker"`
		Lots           Quantity         `json:"lots"`
		Price          decimal.Decimal  `json:"price"`
		Currency       string           `json:"currency"`
		Ref            string           `json:"ref"`
		RealizedProfit *decimal.Decimal `json:"realizedProfit"`
		Commission     *decimal.Decimal `json:"commission"`
		Override       bool             `json:"override"`
		Memo           string           `json:"memo"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	kind, err := ParseKind(v.Kind)
	if err != nil {
		return err
	}
	*t = Transaction{
		ID:            v.ID,
		Seq:           v.Seq,
		Client:        v.Client,
		Stock:         v.Stock,
		Broker:        v.Broker,
		Kind:          kind,
		Lots:          v.Lots,
		UnitPrice:     M(v.Price, v.Currency),
		OccurredAt:    v.OccurredAt,
		ReferencedBuy: v.Ref,
		Override:      v.Override,
		Memo:          v.Memo,
	}
	if v.RealizedProfit != nil {
		p := M(*v.RealizedProfit, v.Currency)
		t.RealizedProfit = &p
	}
	if v.Commission != nil {
		c := M(*v.Commission, v.Currency)
		t.Commission = &c
	}
	return nil
}
