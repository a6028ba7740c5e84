package brokerage

import (
	"fmt"
	"slices"
)

// Policy configures how a SELL picks the lots it consumes.
//
// Lots are consumed first-in first-out. A SELL that references a BUY takes
// that lot first.
type Policy struct {
	// ReferenceFallback lets a SELL whose referenced lot is too small take
	// the remainder first-in first-out instead of failing.
	ReferenceFallback bool
}

// Inventory is the open lot queue of one bucket, built by applying the
// bucket's transactions in replay order.
type Inventory struct {
	bucket      Bucket
	policy      Policy
	open        lots
	bought      Quantity
	sold        Quantity
	currency    string
	seen        map[string]Kind
	allocations map[string]Allocation
	sells       []string
}

// NewInventory returns the empty inventory of bucket b.
func NewInventory(b Bucket, p Policy) *Inventory {
	return &Inventory{
		bucket:      b,
		policy:      p,
		seen:        make(map[string]Kind),
		allocations: make(map[string]Allocation),
	}
}

// Replay folds the history of bucket b into its inventory. txs need not be
// sorted. It stops at the first transaction that cannot be applied.
func Replay(b Bucket, txs []Transaction, p Policy) (*Inventory, error) {
	sorted := slices.Clone(txs)
	SortTransactions(sorted)
	inv := NewInventory(b, p)
	for _, tx := range sorted {
		if _, err := inv.Apply(tx); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Apply processes the next transaction of the bucket. tx must not precede
// any transaction already applied.
//
// For a SELL it returns the lots consumed. On error the inventory is left
// unchanged.
func (inv *Inventory) Apply(tx Transaction) (Allocation, error) {
	if err := tx.Validate(); err != nil {
		return Allocation{}, err
	}
	if tx.Bucket() != inv.bucket {
		return Allocation{}, &MalformedTransactionError{ID: tx.ID, Err: fmt.Errorf("belongs to bucket %s, not %s", tx.Bucket(), inv.bucket)}
	}
	if c := tx.UnitPrice.Currency(); c != "" && inv.currency != "" && c != inv.currency {
		return Allocation{}, &MalformedTransactionError{ID: tx.ID, Err: fmt.Errorf("currency %s differs from bucket currency %s", c, inv.currency)}
	}
	if _, dup := inv.seen[tx.ID]; dup {
		return Allocation{}, &MalformedTransactionError{ID: tx.ID, Err: fmt.Errorf("duplicate id in bucket %s", inv.bucket)}
	}

	if tx.Kind == Buy {
		inv.open = append(inv.open, OpenLot{Source: tx.ID, OccurredAt: tx.OccurredAt, Remaining: tx.Lots, UnitCost: tx.UnitPrice})
		inv.bought = inv.bought.Add(tx.Lots)
		inv.seen[tx.ID] = Buy
		inv.setCurrency(tx)
		return Allocation{}, nil
	}

	work, alloc, err := inv.plan(tx)
	if err != nil {
		return Allocation{}, err
	}
	inv.open = work.compact()
	inv.sold = inv.sold.Add(tx.Lots)
	inv.seen[tx.ID] = Sell
	inv.allocations[tx.ID] = alloc
	inv.sells = append(inv.sells, tx.ID)
	inv.setCurrency(tx)
	return alloc, nil
}

func (inv *Inventory) setCurrency(tx Transaction) {
	if c := tx.UnitPrice.Currency(); c != "" {
		inv.currency = c
	}
}

// plan computes the lots consumed by sell on a copy of the queue.
func (inv *Inventory) plan(sell Transaction) (lots, Allocation, error) {
	alloc := Allocation{Sell: sell.ID}
	want := sell.Lots

	if ref := sell.ReferencedBuy; ref != "" && inv.seen[ref] != Buy {
		return nil, alloc, &InvalidReferenceError{Sell: sell.ID, Buy: ref, Reason: fmt.Sprintf("no earlier buy in bucket %s", inv.bucket)}
	}
	if available := inv.open.net(); available.LessThan(want) {
		return nil, alloc, &InsufficientPositionError{Bucket: inv.bucket, Sell: sell.ID, Requested: want, Available: available}
	}

	work := slices.Clone(inv.open)
	if ref := sell.ReferencedBuy; ref != "" {
		i := work.index(ref)
		remaining := Quantity{}
		if i >= 0 {
			remaining = work[i].Remaining
		}
		if remaining.LessThan(want) && !inv.policy.ReferenceFallback {
			return nil, alloc, &InvalidReferenceError{Sell: sell.ID, Buy: ref, Reason: fmt.Sprintf("only %s lots remain, %s wanted", remaining, want)}
		}
		if i >= 0 {
			var c Consumption
			c, want = work.take(i, want)
			alloc.Consumptions = append(alloc.Consumptions, c)
		}
	}
	for i := range work {
		if !want.IsPositive() {
			break
		}
		if !work[i].Remaining.IsPositive() {
			continue
		}
		var c Consumption
		c, want = work.take(i, want)
		alloc.Consumptions = append(alloc.Consumptions, c)
	}
	return work, alloc, nil
}

// Bucket returns the bucket of the inventory.
func (inv *Inventory) Bucket() Bucket { return inv.bucket }

// OpenLots returns a copy of the open lots, oldest first.
func (inv *Inventory) OpenLots() []OpenLot { return slices.Clone(inv.open) }

// NetLots is the number of open lots.
func (inv *Inventory) NetLots() Quantity { return inv.open.net() }

// CostBasis is the cost of the open lots.
func (inv *Inventory) CostBasis() Money { return inv.open.cost() }

// Bought and Sold are the lots bought and sold so far.
func (inv *Inventory) Bought() Quantity { return inv.bought }
func (inv *Inventory) Sold() Quantity   { return inv.sold }

// Allocation returns the lots consumed by the given SELL.
func (inv *Inventory) Allocation(sell string) (Allocation, bool) {
	a, ok := inv.allocations[sell]
	return a, ok
}

// Allocations returns the allocation of every SELL in replay order.
func (inv *Inventory) Allocations() []Allocation {
	out := make([]Allocation, 0, len(inv.sells))
	for _, id := range inv.sells {
		out = append(out, inv.allocations[id])
	}
	return out
}
