package brokerage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSnapshotTTL bounds how long an unused bucket snapshot stays cached.
const DefaultSnapshotTTL = 10 * time.Minute

// Book records transactions and payments and keeps the derived fields of
// every SELL in line with the history of its bucket.
//
// Writes to a bucket are serialized. Reads are served from the last settled
// snapshot of a bucket and take no lock.
type Book struct {
	store  Store
	calc   Calculator
	policy Policy
	log    *slog.Logger
	tracer trace.Tracer

	snapshots *cache.Cache

	mu    sync.Mutex
	locks map[Bucket]*bucketLock
}

// bucketLock is the write exclusion of one bucket.
type bucketLock struct {
	mu          sync.Mutex
	recomputing atomic.Bool
	// gen counts commits; a snapshot built across a commit is not cached.
	gen     atomic.Uint64
	cacheMu sync.Mutex
}

// Option configures a Book.
type Option func(*Book)

// WithCalculator sets the commission calculator.
func WithCalculator(c Calculator) Option { return func(b *Book) { b.calc = c } }

// WithPolicy sets the lot allocation policy.
func WithPolicy(p Policy) Option { return func(b *Book) { b.policy = p } }

// WithLogger sets the logger of the book.
func WithLogger(l *slog.Logger) Option { return func(b *Book) { b.log = l } }

// WithTracer sets the tracer of the book writes.
func WithTracer(t trace.Tracer) Option { return func(b *Book) { b.tracer = t } }

// WithSnapshotTTL sets how long bucket snapshots are cached.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(b *Book) { b.snapshots = cache.New(ttl, 2*ttl) }
}

// NewBook returns a book over s. By default commissions are
// DefaultCommissionRate of realized profit and lots are consumed first-in
// first-out without reference fallback.
func NewBook(s Store, opts ...Option) *Book {
	b := &Book{
		store:     s,
		calc:      Calculator{Rate: DefaultCommissionRate},
		log:       slog.Default(),
		tracer:    otel.Tracer("github.com/etnz/brokerage"),
		snapshots: cache.New(DefaultSnapshotTTL, 2*DefaultSnapshotTTL),
		locks:     make(map[Bucket]*bucketLock),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Calculator returns the commission calculator in use.
func (b *Book) Calculator() Calculator { return b.calc }

func (b *Book) lockFor(bucket Bucket) *bucketLock {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[bucket]
	if !ok {
		l = &bucketLock{}
		b.locks[bucket] = l
	}
	return l
}

// acquire takes the write exclusion of buckets, in a stable order. A writer
// reaching a bucket that is being recomputed gets a
// *RecomputationConflictError instead of waiting. recompute marks the
// buckets as being recomputed until release.
func (b *Book) acquire(recompute bool, buckets ...Bucket) (release func(), err error) {
	buckets = slices.Clone(buckets)
	slices.SortFunc(buckets, func(x, y Bucket) int {
		switch {
		case x.less(y):
			return -1
		case y.less(x):
			return 1
		}
		return 0
	})
	buckets = slices.Compact(buckets)

	var held []*bucketLock
	release = func() {
		for i := len(held) - 1; i >= 0; i-- {
			if recompute {
				held[i].recomputing.Store(false)
			}
			held[i].mu.Unlock()
		}
	}
	for _, bucket := range buckets {
		l := b.lockFor(bucket)
		if l.recomputing.Load() {
			release()
			return nil, &RecomputationConflictError{Bucket: bucket}
		}
		l.mu.Lock()
		if recompute {
			l.recomputing.Store(true)
		}
		held = append(held, l)
	}
	return release, nil
}

// recheck reads old again once its bucket is locked. Another writer may
// have moved or removed it in between, then the caller must start over.
func (b *Book) recheck(ctx context.Context, old Transaction) error {
	cur, err := b.store.Transaction(ctx, old.ID)
	if err != nil {
		return err
	}
	if cur.Bucket() != old.Bucket() || cur.Seq != old.Seq {
		return &RecomputationConflictError{Bucket: old.Bucket()}
	}
	return nil
}

func (b *Book) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, "brokerage.Book."+name, trace.WithAttributes(attrs...))
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// invalidate drops the cached snapshots of buckets after a commit.
func (b *Book) invalidate(buckets ...Bucket) {
	for _, bucket := range buckets {
		l := b.lockFor(bucket)
		l.cacheMu.Lock()
		l.gen.Add(1)
		b.snapshots.Delete(bucket.String())
		l.cacheMu.Unlock()
	}
}

// settled is the outcome of replaying one bucket.
type settled struct {
	inv         *Inventory
	txs         []Transaction
	settlements map[string]Settlement
}

// settle replays txs as the complete history of bucket and settles every
// SELL.
func (b *Book) settle(bucket Bucket, txs []Transaction) (*settled, error) {
	inv, err := Replay(bucket, txs, b.policy)
	if err != nil {
		return nil, err
	}
	s, err := b.calc.SettleAll(inv, txs)
	if err != nil {
		return nil, err
	}
	return &settled{inv: inv, txs: txs, settlements: s}, nil
}

// writeBack lists the SELLs of s whose stored derived fields differ from
// the recomputed ones. skip is excluded.
func (s *settled) writeBack(skip string) []Derived {
	var out []Derived
	for _, tx := range s.txs {
		if tx.Kind != Sell || tx.Override || tx.ID == skip {
			continue
		}
		st := s.settlements[tx.ID]
		if sameDerived(tx.RealizedProfit, &st.RealizedProfit) && sameDerived(tx.Commission, &st.Commission) {
			continue
		}
		out = append(out, Derived{ID: tx.ID, RealizedProfit: st.RealizedProfit, Commission: st.Commission})
	}
	return out
}

// Record validates and commits a new BUY or SELL. It assigns an id when tx
// has none and the insertion sequence. A SELL is returned with its realized
// profit and commission.
//
// A transaction dated before others of its bucket is inserted in the
// history, and the later SELLs are settled again.
func (b *Book) Record(ctx context.Context, tx Transaction) (_ Transaction, err error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	ctx, span := b.startSpan(ctx, "Record",
		attribute.String("id", tx.ID),
		attribute.String("kind", string(tx.Kind)),
		attribute.String("bucket", tx.Bucket().String()),
	)
	defer func() { endSpan(span, err) }()

	if !tx.Override {
		tx.RealizedProfit, tx.Commission = nil, nil
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	bucket := tx.Bucket()

	release, err := b.acquire(false, bucket)
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	if _, err := b.store.Transaction(ctx, tx.ID); err == nil {
		return Transaction{}, &MalformedTransactionError{ID: tx.ID, Err: errors.New("id already recorded")}
	} else if !errors.Is(err, ErrNotFound) {
		return Transaction{}, fmt.Errorf("could not check transaction %s: %w", tx.ID, err)
	}

	history, err := b.store.Transactions(ctx, bucket)
	if err != nil {
		return Transaction{}, fmt.Errorf("could not read bucket %s: %w", bucket, err)
	}
	if tx.Seq, err = b.store.NextSeq(ctx); err != nil {
		return Transaction{}, fmt.Errorf("could not reserve a sequence number: %w", err)
	}
	s, err := b.settle(bucket, append(history, tx))
	if err != nil {
		return Transaction{}, err
	}
	if tx.Kind == Sell && !tx.Override {
		tx = tx.WithSettlement(s.settlements[tx.ID])
	}

	// The id check above only holds the lock of tx's bucket, the store
	// settles a race with another bucket.
	batch := Batch{Insert: []Transaction{tx}, Derived: s.writeBack(tx.ID)}
	if err := b.store.Apply(ctx, batch); errors.Is(err, ErrDuplicateID) {
		return Transaction{}, &MalformedTransactionError{ID: tx.ID, Err: err}
	} else if err != nil {
		return Transaction{}, fmt.Errorf("could not save transaction %s: %w", tx.ID, err)
	}
	b.invalidate(bucket)
	b.log.InfoContext(ctx, "transaction recorded", "id", tx.ID, "kind", tx.Kind, "bucket", bucket.String(), "lots", tx.Lots.String(), "resettled", len(batch.Derived))
	return tx, nil
}

// Edit replaces a recorded transaction and replays its bucket from the
// start. Derived fields of tx are ignored unless tx.Override is set. When
// the edit moves the transaction to another bucket both buckets are
// replayed. A change that any replay rejects is not applied.
func (b *Book) Edit(ctx context.Context, tx Transaction) (_ Transaction, err error) {
	ctx, span := b.startSpan(ctx, "Edit", attribute.String("id", tx.ID), attribute.String("bucket", tx.Bucket().String()))
	defer func() { endSpan(span, err) }()

	old, err := b.store.Transaction(ctx, tx.ID)
	if err != nil {
		return Transaction{}, err
	}
	tx.Seq = old.Seq
	if !tx.Override {
		tx.RealizedProfit, tx.Commission = nil, nil
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}

	buckets := []Bucket{old.Bucket(), tx.Bucket()}
	release, err := b.acquire(true, buckets...)
	if err != nil {
		return Transaction{}, err
	}
	defer release()
	if err := b.recheck(ctx, old); err != nil {
		return Transaction{}, err
	}

	batch := Batch{Put: []Transaction{tx}}
	for _, bucket := range slices.Compact(buckets) {
		history, err := b.store.Transactions(ctx, bucket)
		if err != nil {
			return Transaction{}, fmt.Errorf("could not read bucket %s: %w", bucket, err)
		}
		history = slices.DeleteFunc(history, func(t Transaction) bool { return t.ID == tx.ID })
		if bucket == tx.Bucket() {
			history = append(history, tx)
		}
		s, err := b.settle(bucket, history)
		if err != nil {
			return Transaction{}, err
		}
		if st, ok := s.settlements[tx.ID]; ok && !tx.Override && bucket == tx.Bucket() {
			tx = tx.WithSettlement(st)
			batch.Put[0] = tx
		}
		batch.Derived = append(batch.Derived, s.writeBack(tx.ID)...)
	}

	if err := b.store.Apply(ctx, batch); err != nil {
		return Transaction{}, fmt.Errorf("could not save transaction %s: %w", tx.ID, err)
	}
	b.invalidate(buckets...)
	b.log.InfoContext(ctx, "transaction edited", "id", tx.ID, "kind", tx.Kind, "bucket", tx.Bucket().String(), "resettled", len(batch.Derived))
	return tx, nil
}

// Delete removes a recorded transaction and replays its bucket. Deleting a
// BUY whose lots are needed by later SELLs is rejected.
func (b *Book) Delete(ctx context.Context, id string) (err error) {
	ctx, span := b.startSpan(ctx, "Delete", attribute.String("id", id))
	defer func() { endSpan(span, err) }()

	old, err := b.store.Transaction(ctx, id)
	if err != nil {
		return err
	}
	bucket := old.Bucket()
	release, err := b.acquire(true, bucket)
	if err != nil {
		return err
	}
	defer release()
	if err := b.recheck(ctx, old); err != nil {
		return err
	}

	history, err := b.store.Transactions(ctx, bucket)
	if err != nil {
		return fmt.Errorf("could not read bucket %s: %w", bucket, err)
	}
	history = slices.DeleteFunc(history, func(t Transaction) bool { return t.ID == id })
	s, err := b.settle(bucket, history)
	if err != nil {
		return fmt.Errorf("cannot delete %s: %w", id, err)
	}
	batch := Batch{Delete: []string{id}, Derived: s.writeBack("")}
	if err := b.store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("could not delete transaction %s: %w", id, err)
	}
	b.invalidate(bucket)
	b.log.InfoContext(ctx, "transaction deleted", "id", id, "bucket", bucket.String(), "resettled", len(batch.Derived))
	return nil
}

// Drift is a SELL whose stored derived fields differ from a replay of its
// bucket.
type Drift struct {
	Bucket           Bucket
	ID               string
	StoredProfit     *Money
	StoredCommission *Money
	Recomputed       Settlement
}

// Recompute replays bucket and reports the SELLs whose stored derived
// fields drifted. With fix, the recomputed values are written back.
func (b *Book) Recompute(ctx context.Context, bucket Bucket, fix bool) (_ []Drift, err error) {
	ctx, span := b.startSpan(ctx, "Recompute", attribute.String("bucket", bucket.String()), attribute.Bool("fix", fix))
	defer func() { endSpan(span, err) }()

	release, err := b.acquire(true, bucket)
	if err != nil {
		return nil, err
	}
	defer release()

	history, err := b.store.Transactions(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("could not read bucket %s: %w", bucket, err)
	}
	s, err := b.settle(bucket, history)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", bucket, err)
	}
	derived := s.writeBack("")
	stored := make(map[string]Transaction, len(history))
	for _, tx := range history {
		stored[tx.ID] = tx
	}
	drifts := make([]Drift, 0, len(derived))
	for _, d := range derived {
		tx := stored[d.ID]
		drifts = append(drifts, Drift{
			Bucket:           bucket,
			ID:               d.ID,
			StoredProfit:     tx.RealizedProfit,
			StoredCommission: tx.Commission,
			Recomputed:       Settlement{RealizedProfit: d.RealizedProfit, Commission: d.Commission},
		})
		b.log.WarnContext(ctx, "derived fields drifted", "id", d.ID, "bucket", bucket.String())
	}
	if fix && len(derived) > 0 {
		if err := b.store.Apply(ctx, Batch{Derived: derived}); err != nil {
			return drifts, fmt.Errorf("could not fix bucket %s: %w", bucket, err)
		}
		b.invalidate(bucket)
		b.log.InfoContext(ctx, "bucket fixed", "bucket", bucket.String(), "resettled", len(derived))
	}
	return drifts, nil
}

// Reconcile recomputes every bucket. Buckets that cannot be replayed are
// reported in the returned error; the others are still checked.
func (b *Book) Reconcile(ctx context.Context, fix bool) ([]Drift, error) {
	buckets, err := b.store.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list buckets: %w", err)
	}
	var drifts []Drift
	var errs error
	for _, bucket := range buckets {
		d, err := b.Recompute(ctx, bucket, fix)
		drifts = append(drifts, d...)
		errs = errors.Join(errs, err)
	}
	return drifts, errs
}

// Snapshot is the settled state of a bucket.
type Snapshot struct {
	Position    Position
	OpenLots    []OpenLot
	Allocations []Allocation
}

// Snapshot returns the state of bucket, from cache when possible.
func (b *Book) Snapshot(ctx context.Context, bucket Bucket) (*Snapshot, error) {
	key := bucket.String()
	if v, ok := b.snapshots.Get(key); ok {
		return v.(*Snapshot), nil
	}
	l := b.lockFor(bucket)
	gen := l.gen.Load()

	history, err := b.store.Transactions(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("could not read bucket %s: %w", bucket, err)
	}
	inv, err := Replay(bucket, history, b.policy)
	if err != nil {
		return nil, fmt.Errorf("bucket %s: %w", bucket, err)
	}
	snap := &Snapshot{Position: PositionOf(inv), OpenLots: inv.OpenLots(), Allocations: inv.Allocations()}

	l.cacheMu.Lock()
	if l.gen.Load() == gen {
		b.snapshots.SetDefault(key, snap)
	}
	l.cacheMu.Unlock()
	return snap, nil
}

// Filter selects buckets. Empty fields match everything.
type Filter struct {
	Client string
	Stock  string
	Broker *Broker
}

func (f Filter) match(b Bucket) bool {
	return (f.Client == "" || f.Client == b.Client) &&
		(f.Stock == "" || f.Stock == b.Stock) &&
		(f.Broker == nil || *f.Broker == b.Broker)
}

// Positions returns the position of every bucket selected by f, flat ones
// included, sorted by bucket.
func (b *Book) Positions(ctx context.Context, f Filter) ([]Position, error) {
	buckets, err := b.store.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list buckets: %w", err)
	}
	var out []Position
	for _, bucket := range buckets {
		if !f.match(bucket) {
			continue
		}
		snap, err := b.Snapshot(ctx, bucket)
		if err != nil {
			return nil, err
		}
		out = append(out, snap.Position)
	}
	SortPositions(out)
	return out, nil
}

// Transactions returns the transactions of every bucket selected by f, in
// replay order.
func (b *Book) Transactions(ctx context.Context, f Filter) ([]Transaction, error) {
	buckets, err := b.store.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list buckets: %w", err)
	}
	var out []Transaction
	for _, bucket := range buckets {
		if !f.match(bucket) {
			continue
		}
		txs, err := b.store.Transactions(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("could not read bucket %s: %w", bucket, err)
		}
		out = append(out, txs...)
	}
	SortTransactions(out)
	return out, nil
}

// AvailableToSell returns, per broker, the open positions of client in
// stock.
func (b *Book) AvailableToSell(ctx context.Context, client, stock string) ([]Position, error) {
	positions, err := b.Positions(ctx, Filter{Client: client, Stock: stock})
	if err != nil {
		return nil, err
	}
	return Available(positions), nil
}

// OpenLots returns the open lots of bucket, oldest first.
func (b *Book) OpenLots(ctx context.Context, bucket Bucket) ([]OpenLot, error) {
	snap, err := b.Snapshot(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.OpenLots), nil
}

// Transaction returns the recorded transaction with the given id.
func (b *Book) Transaction(ctx context.Context, id string) (Transaction, error) {
	return b.store.Transaction(ctx, id)
}

// Sale is a SELL with the lots it consumed.
type Sale struct {
	Transaction
	Allocation Allocation
}

// Sales returns the SELLs of client, or of every client when client is "",
// in replay order.
func (b *Book) Sales(ctx context.Context, client string) ([]Sale, error) {
	sells, err := b.store.Sells(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("could not read sells: %w", err)
	}
	out := make([]Sale, 0, len(sells))
	for _, tx := range sells {
		snap, err := b.Snapshot(ctx, tx.Bucket())
		if err != nil {
			return nil, err
		}
		sale := Sale{Transaction: tx}
		for _, a := range snap.Allocations {
			if a.Sell == tx.ID {
				sale.Allocation = a
				break
			}
		}
		out = append(out, sale)
	}
	return out, nil
}

// RecordPayment validates and stores a payment, assigning an id when p
// has none.
func (b *Book) RecordPayment(ctx context.Context, p Payment) (Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return Payment{}, err
	}
	if err := b.store.AddPayment(ctx, p); err != nil {
		return Payment{}, fmt.Errorf("could not save payment %s: %w", p.ID, err)
	}
	b.log.InfoContext(ctx, "payment recorded", "id", p.ID, "client", p.Client, "amount", p.Amount.Decimal().String())
	return p, nil
}

// Payments returns the payments of client, or of every client when client
// is "".
func (b *Book) Payments(ctx context.Context, client string) ([]Payment, error) {
	return b.store.Payments(ctx, client)
}

// Collections returns the balance of every client, largest exposure first.
// Commissions are read as stored on the SELLs.
func (b *Book) Collections(ctx context.Context) ([]CollectionsEntry, error) {
	sells, err := b.store.Sells(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("could not read sells: %w", err)
	}
	payments, err := b.store.Payments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("could not read payments: %w", err)
	}
	return Collect(sells, payments), nil
}

// CollectionsOf returns the balances of a single client, one per currency.
// A client without sells or payments has a single settled entry.
func (b *Book) CollectionsOf(ctx context.Context, client string) ([]CollectionsEntry, error) {
	sells, err := b.store.Sells(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("could not read sells of %s: %w", client, err)
	}
	payments, err := b.store.Payments(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("could not read payments of %s: %w", client, err)
	}
	entries := slices.DeleteFunc(Collect(sells, payments), func(e CollectionsEntry) bool { return e.Client != client })
	if len(entries) == 0 {
		return []CollectionsEntry{{Client: client}}, nil
	}
	return entries, nil
}
