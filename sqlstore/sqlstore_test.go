package sqlstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/etnz/brokerage"
	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func at(day int) time.Time { return time.Date(2025, time.March, day, 9, 30, 0, 0, time.UTC) }

var kite = brokerage.Bucket{Client: "alice", Stock: "ACME", Broker: brokerage.SomeBroker("kite")}

func TestStore_BookScenario(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	book := brokerage.NewBook(s, brokerage.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	txs := []brokerage.Transaction{
		brokerage.NewBuy("alice", "ACME", kite.Broker, brokerage.Q(100), brokerage.M(10, "EUR"), at(1)),
		brokerage.NewBuy("alice", "ACME", kite.Broker, brokerage.Q(50), brokerage.M(12, "EUR"), at(2)),
		brokerage.NewSell("alice", "ACME", kite.Broker, brokerage.Q(120), brokerage.M(15, "EUR"), at(3)),
	}
	var sellID string
	for _, tx := range txs {
		got, err := book.Record(ctx, tx)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		sellID = got.ID
	}

	stored, err := s.Transaction(ctx, sellID)
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if !stored.Settled() {
		t.Fatal("sell stored without derived fields")
	}
	if !stored.RealizedProfit.Decimal().Equal(decimal.NewFromInt(560)) || !stored.Commission.Decimal().Equal(decimal.NewFromInt(168)) {
		t.Errorf("stored settlement = %s/%s, want 560/168", stored.RealizedProfit.Decimal(), stored.Commission.Decimal())
	}
	if stored.Commission.Currency() != "EUR" {
		t.Errorf("commission currency = %q, want EUR", stored.Commission.Currency())
	}
	if !stored.OccurredAt.Equal(at(3)) {
		t.Errorf("OccurredAt = %v, want %v", stored.OccurredAt, at(3))
	}

	lots, err := book.OpenLots(ctx, kite)
	if err != nil {
		t.Fatalf("OpenLots() error = %v", err)
	}
	if len(lots) != 1 || !lots[0].Remaining.Equal(brokerage.Q(30)) {
		t.Errorf("open lots = %+v, want 30 remaining", lots)
	}

	if _, err := book.Record(ctx, brokerage.NewSell("alice", "ACME", kite.Broker, brokerage.Q(31), brokerage.M(15, "EUR"), at(4))); !errors.Is(err, brokerage.ErrInsufficientPosition) {
		t.Errorf("Record() error = %v, want ErrInsufficientPosition", err)
	}
}

func TestStore_Buckets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	put := func(id string, broker brokerage.Broker) brokerage.Transaction {
		tx := brokerage.NewBuy("alice", "ACME", broker, brokerage.Q(1), brokerage.M(1, ""), at(1))
		tx.ID = id
		return tx
	}
	batch := brokerage.Batch{Put: []brokerage.Transaction{
		put("a", brokerage.SomeBroker("kite")),
		put("b", brokerage.NoBroker),
		put("c", brokerage.SomeBroker("")),
	}}
	if err := s.Apply(ctx, batch); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	buckets, err := s.Buckets(ctx)
	if err != nil {
		t.Fatalf("Buckets() error = %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3: %v", len(buckets), buckets)
	}
	if buckets[0].Broker.IsSet() {
		t.Errorf("first bucket = %v, want the one without broker", buckets[0])
	}

	none, err := s.Transactions(ctx, brokerage.Bucket{Client: "alice", Stock: "ACME"})
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(none) != 1 || none[0].ID != "b" {
		t.Errorf("transactions without broker = %+v, want only b", none)
	}
}

func TestStore_ApplyIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := brokerage.NewBuy("alice", "ACME", kite.Broker, brokerage.Q(1), brokerage.M(1, ""), at(1))
	tx.ID = "b1"
	err := s.Apply(ctx, brokerage.Batch{
		Put:     []brokerage.Transaction{tx},
		Derived: []brokerage.Derived{{ID: "missing"}},
	})
	if !errors.Is(err, brokerage.ErrNotFound) {
		t.Fatalf("Apply() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Transaction(ctx, "b1"); !errors.Is(err, brokerage.ErrNotFound) {
		t.Errorf("b1 was saved by a failed batch: %v", err)
	}
}

func TestStore_InsertKeepsExistingID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := brokerage.NewBuy("alice", "ACME", kite.Broker, brokerage.Q(10), brokerage.M(1, ""), at(1))
	first.ID, first.Seq = "b1", 1
	if err := s.Apply(ctx, brokerage.Batch{Insert: []brokerage.Transaction{first}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	second := brokerage.NewBuy("bob", "INFY", brokerage.NoBroker, brokerage.Q(3), brokerage.M(2, ""), at(2))
	second.ID, second.Seq = "b1", 2
	if err := s.Apply(ctx, brokerage.Batch{Insert: []brokerage.Transaction{second}}); !errors.Is(err, brokerage.ErrDuplicateID) {
		t.Fatalf("Apply() of a duplicate id error = %v, want ErrDuplicateID", err)
	}
	got, err := s.Transaction(ctx, "b1")
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	if got.Client != "alice" || !got.Lots.Equal(brokerage.Q(10)) {
		t.Errorf("b1 = %+v, want the first insert", got)
	}
}

func TestStore_NextSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := brokerage.NewBuy("alice", "ACME", kite.Broker, brokerage.Q(1), brokerage.M(1, ""), at(1))
	tx.ID, tx.Seq = "imported", 41
	if err := s.Import(ctx, []brokerage.Transaction{tx}, nil); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	for _, want := range []int64{42, 43} {
		got, err := s.NextSeq(ctx)
		if err != nil {
			t.Fatalf("NextSeq() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSeq() = %d, want %d", got, want)
		}
	}
}

func TestStore_Payments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payments := []brokerage.Payment{
		{ID: "p1", Client: "alice", Amount: brokerage.M(100, "EUR"), OccurredAt: at(5), Method: "transfer"},
		{ID: "p2", Client: "bob", Amount: brokerage.M(0.1, "EUR"), OccurredAt: at(6)},
		{ID: "p3", Client: "alice", Amount: brokerage.M(-20, "EUR"), OccurredAt: at(7), Description: "refund"},
	}
	for _, p := range payments {
		if err := s.AddPayment(ctx, p); err != nil {
			t.Fatalf("AddPayment(%s) error = %v", p.ID, err)
		}
	}
	if err := s.AddPayment(ctx, payments[0]); err == nil {
		t.Error("AddPayment() accepted a duplicate id")
	}

	got, err := s.Payments(ctx, "alice")
	if err != nil {
		t.Fatalf("Payments() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p3" {
		t.Fatalf("Payments(alice) = %+v, want p1 and p3", got)
	}
	if !got[1].Amount.Equal(brokerage.M(-20, "EUR")) || got[1].Description != "refund" {
		t.Errorf("p3 = %+v", got[1])
	}
	all, _ := s.Payments(ctx, "")
	if len(all) != 3 {
		t.Errorf("got %d payments, want 3", len(all))
	}
}
