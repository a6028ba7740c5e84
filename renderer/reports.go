package renderer

import (
	"fmt"
	"time"

	"github.com/etnz/brokerage"
)

const dateLayout = "2006-01-02 15:04"

type positionRecord struct {
	Client      string             `json:"client"`
	Stock       string             `json:"stock"`
	Broker      brokerage.Broker   `json:"broker"`
	NetLots     brokerage.Quantity `json:"netLots"`
	AverageCost brokerage.Money    `json:"averageCost"`
	CostBasis   brokerage.Money    `json:"costBasis"`
}

// Positions reports one row per bucket.
func Positions(positions []brokerage.Position) Report {
	r := Report{
		Title:  "Positions",
		Header: []string{"Client", "Stock", "Broker", "Lots", "Avg cost", "Cost basis"},
		Align:  []Align{Left, Left, Left, Right, Right, Right},
		Empty:  "No positions.",
	}
	records := make([]positionRecord, 0, len(positions))
	for _, p := range positions {
		r.Rows = append(r.Rows, []string{
			p.Bucket.Client,
			p.Bucket.Stock,
			p.Bucket.Broker.String(),
			p.NetLots.String(),
			p.AverageCost.String(),
			p.CostBasis.String(),
		})
		records = append(records, positionRecord{
			Client:      p.Bucket.Client,
			Stock:       p.Bucket.Stock,
			Broker:      p.Bucket.Broker,
			NetLots:     p.NetLots,
			AverageCost: p.AverageCost,
			CostBasis:   p.CostBasis,
		})
	}
	r.Data = records
	return r
}

type summaryRecord struct {
	Key         string             `json:"key"`
	Currency    string             `json:"currency,omitempty"`
	NetLots     brokerage.Quantity `json:"netLots"`
	AverageCost brokerage.Money    `json:"averageCost"`
	CostBasis   brokerage.Money    `json:"costBasis"`
	Buckets     int                `json:"buckets"`
}

// Summaries reports positions rolled up by key, where key names the
// grouping column ("Stock" or "Broker").
func Summaries(key string, summaries []brokerage.Summary) Report {
	r := Report{
		Title:  "Positions by " + key,
		Header: []string{key, "Lots", "Avg cost", "Cost basis", "Buckets"},
		Align:  []Align{Left, Right, Right, Right, Right},
		Empty:  "No positions.",
	}
	records := make([]summaryRecord, 0, len(summaries))
	for _, s := range summaries {
		r.Rows = append(r.Rows, []string{
			s.Key,
			s.NetLots.String(),
			s.AverageCost().String(),
			s.CostBasis.String(),
			fmt.Sprint(s.Buckets),
		})
		records = append(records, summaryRecord{s.Key, s.Currency, s.NetLots, s.AverageCost(), s.CostBasis, s.Buckets})
	}
	r.Data = records
	return r
}

type lotRecord struct {
	Source     string             `json:"source"`
	OccurredAt time.Time          `json:"occurredAt"`
	Remaining  brokerage.Quantity `json:"remaining"`
	UnitCost   brokerage.Money    `json:"unitCost"`
	Cost       brokerage.Money    `json:"cost"`
}

// Lots reports the open lots of a bucket in consumption order.
func Lots(bucket brokerage.Bucket, lots []brokerage.OpenLot) Report {
	r := Report{
		Title:  "Open lots of " + bucket.String(),
		Header: []string{"Buy", "Date", "Remaining", "Unit cost", "Cost"},
		Align:  []Align{Left, Left, Right, Right, Right},
		Empty:  "No open lots.",
	}
	records := make([]lotRecord, 0, len(lots))
	for _, l := range lots {
		r.Rows = append(r.Rows, []string{
			l.Source,
			l.OccurredAt.UTC().Format(dateLayout),
			l.Remaining.String(),
			l.UnitCost.String(),
			l.Cost().String(),
		})
		records = append(records, lotRecord{l.Source, l.OccurredAt, l.Remaining, l.UnitCost, l.Cost()})
	}
	r.Data = records
	return r
}

type saleRecord struct {
	Sell         brokerage.Transaction   `json:"sell"`
	Consumptions []brokerage.Consumption `json:"consumptions"`
}

// Sales reports settled sells with the lots they consumed.
func Sales(sales []brokerage.Sale) Report {
	r := Report{
		Title:  "Sales",
		Header: []string{"Sell", "Date", "Bucket", "Lots", "Price", "Cost", "Profit", "Commission"},
		Align:  []Align{Left, Left, Left, Right, Right, Right, Right, Right},
		Empty:  "No sales.",
	}
	records := make([]saleRecord, 0, len(sales))
	for _, s := range sales {
		profit, commission := "", ""
		if s.RealizedProfit != nil {
			profit = s.RealizedProfit.SignedString()
		}
		if s.Commission != nil {
			commission = s.Commission.SignedString()
			if s.Override {
				commission += " (override)"
			}
		}
		r.Rows = append(r.Rows, []string{
			s.ID,
			s.OccurredAt.UTC().Format(dateLayout),
			s.Bucket().String(),
			s.Lots.String(),
			s.UnitPrice.String(),
			s.Allocation.Cost().String(),
			profit,
			commission,
		})
		records = append(records, saleRecord{s.Transaction, s.Allocation.Consumptions})
	}
	r.Data = records
	return r
}

type collectionsRecord struct {
	Client           string          `json:"client"`
	Currency         string          `json:"currency,omitempty"`
	TotalCommission  brokerage.Money `json:"totalCommission"`
	TotalPayments    brokerage.Money `json:"totalPayments"`
	RemainingBalance brokerage.Money `json:"remainingBalance"`
}

// Collections reports what each client still owes.
func Collections(entries []brokerage.CollectionsEntry) Report {
	r := Report{
		Title:  "Collections",
		Header: []string{"Client", "Commission", "Payments", "Balance"},
		Align:  []Align{Left, Right, Right, Right},
		Empty:  "No commissions or payments.",
	}
	records := make([]collectionsRecord, 0, len(entries))
	for _, e := range entries {
		r.Rows = append(r.Rows, []string{
			e.Client,
			e.TotalCommission.String(),
			e.TotalPayments.String(),
			e.RemainingBalance.SignedString(),
		})
		records = append(records, collectionsRecord(e))
	}
	r.Data = records
	return r
}

type driftRecord struct {
	Bucket           string           `json:"bucket"`
	ID               string           `json:"id"`
	StoredProfit     *brokerage.Money `json:"storedProfit"`
	StoredCommission *brokerage.Money `json:"storedCommission"`
	RealizedProfit   brokerage.Money  `json:"realizedProfit"`
	Commission       brokerage.Money  `json:"commission"`
}

// Drifts reports stored derived values that differ from a replay.
// fixed tells whether they have been overwritten.
func Drifts(drifts []brokerage.Drift, fixed bool) Report {
	r := Report{
		Title:  "Recomputation",
		Header: []string{"Sell", "Bucket", "Stored profit", "Profit", "Stored commission", "Commission"},
		Align:  []Align{Left, Left, Right, Right, Right, Right},
		Empty:  "All derived values are up to date.",
	}
	if len(drifts) > 0 {
		if fixed {
			r.Notes = append(r.Notes, fmt.Sprintf("%d sells have been updated.", len(drifts)))
		} else {
			r.Notes = append(r.Notes, fmt.Sprintf("%d sells differ from a replay. Run with -fix to update them.", len(drifts)))
		}
	}
	optional := func(m *brokerage.Money) string {
		if m == nil {
			return "-"
		}
		return m.SignedString()
	}
	records := make([]driftRecord, 0, len(drifts))
	for _, d := range drifts {
		r.Rows = append(r.Rows, []string{
			d.ID,
			d.Bucket.String(),
			optional(d.StoredProfit),
			d.Recomputed.RealizedProfit.SignedString(),
			optional(d.StoredCommission),
			d.Recomputed.Commission.SignedString(),
		})
		records = append(records, driftRecord{
			Bucket:           d.Bucket.String(),
			ID:               d.ID,
			StoredProfit:     d.StoredProfit,
			StoredCommission: d.StoredCommission,
			RealizedProfit:   d.Recomputed.RealizedProfit,
			Commission:       d.Recomputed.Commission,
		})
	}
	r.Data = records
	return r
}
