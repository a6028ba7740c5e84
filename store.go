package brokerage

import "context"

// Derived writes back the derived fields of a SELL.
type Derived struct {
	ID             string
	RealizedProfit Money
	Commission     Money
}

// Batch is a set of changes a store applies atomically: either all of them
// are visible or none.
type Batch struct {
	Insert  []Transaction // new ids only, ErrDuplicateID otherwise
	Put     []Transaction // inserted, or replaced by id
	Delete  []string
	Derived []Derived
}

// IsEmpty reports whether b changes nothing.
func (b Batch) IsEmpty() bool {
	return len(b.Insert) == 0 && len(b.Put) == 0 && len(b.Delete) == 0 && len(b.Derived) == 0
}

// TransactionStore is the record source of transactions.
type TransactionStore interface {
	// Transactions returns the transactions of a bucket in replay order.
	Transactions(ctx context.Context, b Bucket) ([]Transaction, error)
	// Transaction returns a transaction by id, or an error matching ErrNotFound.
	Transaction(ctx context.Context, id string) (Transaction, error)
	// Buckets returns every bucket holding at least one transaction.
	Buckets(ctx context.Context) ([]Bucket, error)
	// Sells returns the SELLs of a client, or of every client when client is "".
	Sells(ctx context.Context, client string) ([]Transaction, error)
	// NextSeq reserves the next insertion sequence number.
	NextSeq(ctx context.Context) (int64, error)
	// Apply commits a batch atomically.
	Apply(ctx context.Context, b Batch) error
}

// PaymentStore is the record source of payments.
type PaymentStore interface {
	// Payments returns the payments of a client, or of every client when client is "".
	Payments(ctx context.Context, client string) ([]Payment, error)
	AddPayment(ctx context.Context, p Payment) error
}

// Store groups both record sources.
type Store interface {
	TransactionStore
	PaymentStore
}
