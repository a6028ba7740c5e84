package brokerage

import (
	"cmp"
	"slices"
)

// Position summarizes the open lots of a bucket.
type Position struct {
	Bucket      Bucket
	NetLots     Quantity
	AverageCost Money // zero when the position is flat
	CostBasis   Money
}

// PositionOf summarizes an inventory. Only currently open lots count:
// lots already sold do not weigh on the average cost.
func PositionOf(inv *Inventory) Position {
	p := Position{
		Bucket:    inv.Bucket(),
		NetLots:   inv.NetLots(),
		CostBasis: inv.CostBasis(),
	}
	if p.NetLots.IsPositive() {
		p.AverageCost = p.CostBasis.Div(p.NetLots)
	}
	return p
}

// Available keeps the positions that have lots to sell.
func Available(positions []Position) []Position {
	var out []Position
	for _, p := range positions {
		if p.NetLots.IsPositive() {
			out = append(out, p)
		}
	}
	return out
}

// SortPositions orders positions by bucket.
func SortPositions(positions []Position) {
	slices.SortFunc(positions, func(a, b Position) int {
		switch {
		case a.Bucket.less(b.Bucket):
			return -1
		case b.Bucket.less(a.Bucket):
			return 1
		}
		return 0
	})
}

// Summary is the roll up of several buckets sharing a key and a currency.
type Summary struct {
	Key       string
	Currency  string
	NetLots   Quantity
	CostBasis Money
	Buckets   int
}

// AverageCost of the rolled up lots, zero when flat.
func (s Summary) AverageCost() Money {
	if !s.NetLots.IsPositive() {
		return Money{}
	}
	return s.CostBasis.Div(s.NetLots)
}

// RollupByStock sums open positions per stock, across clients and brokers.
func RollupByStock(positions []Position) []Summary {
	return rollup(positions, func(b Bucket) string { return b.Stock })
}

// RollupByBroker sums open positions per broker, across clients and stocks.
// Positions without a broker are grouped under "-".
func RollupByBroker(positions []Position) []Summary {
	return rollup(positions, func(b Bucket) string { return b.Broker.String() })
}

// rollup groups by key and currency of the cost basis, so that positions
// bought in different currencies are never added.
func rollup(positions []Position, key func(Bucket) string) []Summary {
	type group struct{ key, currency string }
	index := make(map[group]int)
	var out []Summary
	for _, p := range Available(positions) {
		g := group{key(p.Bucket), p.CostBasis.Currency()}
		i, ok := index[g]
		if !ok {
			i = len(out)
			index[g] = i
			out = append(out, Summary{Key: g.key, Currency: g.currency, CostBasis: M(0, g.currency)})
		}
		out[i].NetLots = out[i].NetLots.Add(p.NetLots)
		out[i].CostBasis = out[i].CostBasis.Add(p.CostBasis)
		out[i].Buckets++
	}
	slices.SortFunc(out, func(a, b Summary) int {
		return cmp.Or(cmp.Compare(a.Key, b.Key), cmp.Compare(a.Currency, b.Currency))
	})
	return out
}
