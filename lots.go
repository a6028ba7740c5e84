package brokerage

import "time"

// OpenLot is the unconsumed part of a BUY.
type OpenLot struct {
	Source     string // id of the BUY
	OccurredAt time.Time
	Remaining  Quantity
	UnitCost   Money
}

// Cost is the cost basis still carried by the lot.
func (l OpenLot) Cost() Money { return l.UnitCost.Mul(l.Remaining) }

// Consumption is the part of an open lot taken by a SELL.
type Consumption struct {
	Source   string
	Lots     Quantity
	UnitCost Money
}

// Cost of the consumed lots.
func (c Consumption) Cost() Money { return c.UnitCost.Mul(c.Lots) }

// Allocation is the ordered list of lots a SELL consumed.
type Allocation struct {
	Sell         string
	Consumptions []Consumption
}

// Lots is the total number of lots consumed.
func (a Allocation) Lots() Quantity {
	var q Quantity
	for _, c := range a.Consumptions {
		q = q.Add(c.Lots)
	}
	return q
}

// Cost is the total cost of the consumed lots.
func (a Allocation) Cost() Money {
	var m Money
	for _, c := range a.Consumptions {
		m = m.Add(c.Cost())
	}
	return m
}

// AverageCost is the weighted average unit cost of the consumed lots, or
// zero for an empty allocation.
func (a Allocation) AverageCost() Money {
	lots := a.Lots()
	if lots.IsZero() {
		return Money{}
	}
	return a.Cost().Div(lots)
}

// lots is a bucket queue of open lots, oldest first.
type lots []OpenLot

func (l lots) net() Quantity {
	var q Quantity
	for _, lot := range l {
		q = q.Add(lot.Remaining)
	}
	return q
}

func (l lots) cost() Money {
	var m Money
	for _, lot := range l {
		m = m.Add(lot.Cost())
	}
	return m
}

func (l lots) index(source string) int {
	for i, lot := range l {
		if lot.Source == source {
			return i
		}
	}
	return -1
}

// take consumes up to want lots from l[i], splitting it when it holds more.
// It returns the consumption and the lots still wanted.
func (l lots) take(i int, want Quantity) (Consumption, Quantity) {
	n := MinQ(l[i].Remaining, want)
	l[i].Remaining = l[i].Remaining.Sub(n)
	return Consumption{Source: l[i].Source, Lots: n, UnitCost: l[i].UnitCost}, want.Sub(n)
}

// compact drops the exhausted lots.
func (l lots) compact() lots {
	out := l[:0]
	for _, lot := range l {
		if lot.Remaining.IsPositive() {
			out = append(out, lot)
		}
	}
	return out
}
