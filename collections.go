package brokerage

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is money received from a client against commissions.
type Payment struct {
	ID          string
	Client      string
	Amount      Money
	OccurredAt  time.Time
	Method      string
	Description string
}

// Validate checks that a payment can be recorded.
func (p Payment) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("payment id is missing")
	case p.Client == "":
		return fmt.Errorf("payment %s: client id is missing", p.ID)
	case p.OccurredAt.IsZero():
		return fmt.Errorf("payment %s: occurrence time is missing", p.ID)
	}
	return nil
}

func (p Payment) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", p.ID)
	w.Append("occurredAt", p.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.Append("client", p.Client)
	w.Append("amount", p.Amount.value)
	w.Optional("currency", p.Amount.cur)
	w.Optional("method", p.Method)
	w.Optional("description", p.Description)
	return w.MarshalJSON()
}

func (p *Payment) UnmarshalJSON(b []byte) error {
	var v struct {
		ID          string          `json:"id"`
		OccurredAt  time.Time       `json:"occurredAt"`
		Client      string          `json:"client"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Method      string          `json:"method"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Payment{
		ID:          v.ID,
		Client:      v.Client,
		Amount:      M(v.Amount, v.Currency),
		OccurredAt:  v.OccurredAt,
		Method:      v.Method,
		Description: v.Description,
	}
	return nil
}

// CollectionsEntry is the balance between the commissions of a client and
// what the client paid, in one currency. A positive balance is owed by the
// client, a negative one is owed to the client.
type CollectionsEntry struct {
	Client           string
	Currency         string
	TotalCommission  Money
	TotalPayments    Money
	RemainingBalance Money
}

// Collect computes the collections entry of every client and currency
// appearing in sells or payments. Amounts in different currencies are
// never added: a client trading in two currencies has two entries.
//
// Commissions are read from the SELL records as stored; a SELL without a
// commission contributes nothing. Entries are sorted by absolute balance,
// largest first, then by client and currency.
func Collect(sells []Transaction, payments []Payment) []CollectionsEntry {
	type key struct{ client, currency string }
	entries := make(map[key]*CollectionsEntry)
	entry := func(client, currency string) *CollectionsEntry {
		k := key{client, currency}
		e, ok := entries[k]
		if !ok {
			e = &CollectionsEntry{
				Client:           client,
				Currency:         currency,
				TotalCommission:  M(0, currency),
				TotalPayments:    M(0, currency),
				RemainingBalance: M(0, currency),
			}
			entries[k] = e
		}
		return e
	}
	for _, tx := range sells {
		if tx.Kind != Sell {
			continue
		}
		if tx.Commission == nil {
			entry(tx.Client, tx.UnitPrice.Currency())
			continue
		}
		e := entry(tx.Client, tx.Commission.Currency())
		e.TotalCommission = e.TotalCommission.Add(*tx.Commission)
	}
	for _, p := range payments {
		e := entry(p.Client, p.Amount.Currency())
		e.TotalPayments = e.TotalPayments.Add(p.Amount)
	}

	out := make([]CollectionsEntry, 0, len(entries))
	for _, e := range entries {
		e.RemainingBalance = e.TotalCommission.Sub(e.TotalPayments)
		out = append(out, *e)
	}
	SortCollections(out)
	return out
}

// SortCollections orders entries by decreasing absolute balance, then by
// client and currency.
func SortCollections(entries []CollectionsEntry) {
	slices.SortFunc(entries, func(a, b CollectionsEntry) int {
		if c := b.RemainingBalance.CmpAbs(a.RemainingBalance); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.Client, b.Client), cmp.Compare(a.Currency, b.Currency))
	})
}
