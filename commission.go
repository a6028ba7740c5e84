package brokerage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the share of realized profit taken as commission.
var DefaultCommissionRate = decimal.RequireFromString("0.30")

// Settlement holds the derived fields of a SELL.
type Settlement struct {
	RealizedProfit Money
	Commission     Money
}

// Calculator derives realized profit and commission from allocations.
type Calculator struct {
	Rate decimal.Decimal
}

// NewCalculator returns a calculator applying rate to realized profit.
func NewCalculator(rate decimal.Decimal) (Calculator, error) {
	if rate.IsNegative() {
		return Calculator{}, fmt.Errorf("commission rate must not be negative, got %s", rate)
	}
	return Calculator{Rate: rate}, nil
}

// Settle computes the settlement of sell given the lots it consumed.
//
// The realized profit is the proceeds minus the cost of the consumed lots,
// that is (price - average consumed cost) * lots without rounding the
// average. The commission has the sign of the profit: a loss is refunded.
func (c Calculator) Settle(sell Transaction, alloc Allocation) (Settlement, error) {
	if sell.Kind != Sell {
		return Settlement{}, &MalformedTransactionError{ID: sell.ID, Err: fmt.Errorf("only sells are settled, got %s", sell.Kind)}
	}
	if alloc.Sell != sell.ID || !alloc.Lots().Equal(sell.Lots) {
		return Settlement{}, fmt.Errorf("allocation of %s does not match sell %s of %s lots", alloc.Sell, sell.ID, sell.Lots)
	}
	profit := sell.Amount().Sub(alloc.Cost())
	return Settlement{RealizedProfit: profit, Commission: profit.Scale(c.Rate)}, nil
}

// SettleAll settles every SELL of txs against inv. SELLs with an override
// keep their stored values.
func (c Calculator) SettleAll(inv *Inventory, txs []Transaction) (map[string]Settlement, error) {
	out := make(map[string]Settlement)
	for _, tx := range txs {
		if tx.Kind != Sell {
			continue
		}
		if tx.Override {
			out[tx.ID] = Settlement{RealizedProfit: *tx.RealizedProfit, Commission: *tx.Commission}
			continue
		}
		alloc, ok := inv.Allocation(tx.ID)
		if !ok {
			return nil, fmt.Errorf("sell %s was not replayed in bucket %s", tx.ID, inv.Bucket())
		}
		s, err := c.Settle(tx, alloc)
		if err != nil {
			return nil, err
		}
		out[tx.ID] = s
	}
	return out, nil
}
