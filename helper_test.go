package brokerage

import (
	"time"

	"github.com/shopspring/decimal"
)

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// NO is a helper for test to create money from const with no currency set
func NO(v float64) Money { return M(v, "") }

// dec parses a decimal literal, panicking on error.
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// day returns the n-th day of January 2025 at noon UTC.
func day(n int) time.Time { return time.Date(2025, time.January, n, 12, 0, 0, 0, time.UTC) }

var acme = Bucket{Client: "alice", Stock: "ACME", Broker: SomeBroker("kite")}

// buy returns a committed BUY in the acme bucket.
func buy(id string, seq int64, at time.Time, lots int, price float64) Transaction {
	tx := NewBuy(acme.Client, acme.Stock, acme.Broker, Q(lots), NO(price), at)
	tx.ID, tx.Seq = id, seq
	return tx
}

// sell returns a committed SELL in the acme bucket.
func sell(id string, seq int64, at time.Time, lots int, price float64) Transaction {
	tx := NewSell(acme.Client, acme.Stock, acme.Broker, Q(lots), NO(price), at)
	tx.ID, tx.Seq = id, seq
	return tx
}

// ref makes tx reference the buy id.
func ref(tx Transaction, id string) Transaction {
	tx.ReferencedBuy = id
	return tx
}

// scenario is the reference history: 100 lots at 10, 50 at 12, then a sale
// of 120 at 15.
func scenario() []Transaction {
	return []Transaction{
		buy("b1", 1, day(1), 100, 10),
		buy("b2", 2, day(2), 50, 12),
		sell("s1", 3, day(3), 120, 15),
	}
}
