package renderer

import (
	"fmt"

	"github.com/etnz/brokerage"
)

// Transactions reports transactions as recorded.
func Transactions(txs []brokerage.Transaction) Report {
	r := Report{
		Title:  "Transactions",
		Header: []string{"Seq", "Id", "Date", "Kind", "Bucket", "Lots", "Price", "Ref", "Commission", "Memo"},
		Align:  []Align{Right, Left, Left, Left, Left, Right, Right, Left, Right, Left},
		Empty:  "No transactions.",
		Data:   txs,
	}
	if txs == nil {
		r.Data = []brokerage.Transaction{}
	}
	for _, tx := range txs {
		commission := ""
		if tx.Commission != nil {
			commission = tx.Commission.SignedString()
		}
		r.Rows = append(r.Rows, []string{
			fmt.Sprint(tx.Seq),
			tx.ID,
			tx.OccurredAt.UTC().Format(dateLayout),
			string(tx.Kind),
			tx.Bucket().String(),
			tx.Lots.String(),
			tx.UnitPrice.String(),
			tx.ReferencedBuy,
			commission,
			tx.Memo,
		})
	}
	return r
}
