package brokerage

import (
	"testing"
)

func TestCollect(t *testing.T) {
	withCommission := func(client, id string, commission float64) Transaction {
		tx := sell(id, 0, day(1), 1, 1)
		tx.Client = client
		c := NO(commission)
		tx.Commission = &c
		return tx
	}
	payment := func(client string, amount float64) Payment {
		return Payment{ID: client + "-p", Client: client, Amount: NO(amount), OccurredAt: day(2)}
	}

	sells := []Transaction{
		withCommission("alice", "s1", 168),
		withCommission("alice", "s2", -18),
		withCommission("bob", "s3", 50),
		withCommission("carol", "s4", 20),
		buy("b1", 0, day(1), 1, 1), // ignored
	}
	unsettled := sell("s5", 0, day(1), 1, 1)
	unsettled.Client = "dave"
	sells = append(sells, unsettled)

	payments := []Payment{
		payment("alice", 100),
		payment("bob", 150),
		payment("erin", 30),
	}

	got := Collect(sells, payments)
	want := []struct {
		client     string
		commission float64
		paid       float64
		remaining  float64
	}{
		{"bob", 50, 150, -100},
		{"alice", 150, 100, 50},
		{"erin", 0, 30, -30},
		{"carol", 20, 0, 20},
		{"dave", 0, 0, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		e := got[i]
		if e.Client != w.client {
			t.Errorf("entry %d is %s, want %s", i, e.Client, w.client)
			continue
		}
		if !e.TotalCommission.Decimal().Equal(NO(w.commission).Decimal()) ||
			!e.TotalPayments.Decimal().Equal(NO(w.paid).Decimal()) ||
			!e.RemainingBalance.Decimal().Equal(NO(w.remaining).Decimal()) {
			t.Errorf("%s = %v/%v/%v, want %v/%v/%v", e.Client, e.TotalCommission, e.TotalPayments, e.RemainingBalance, w.commission, w.paid, w.remaining)
		}
		if !e.RemainingBalance.Equal(e.TotalCommission.Sub(e.TotalPayments)) {
			t.Errorf("%s: remaining balance is not commission minus payments", e.Client)
		}
	}
}

func TestSortCollections_Ties(t *testing.T) {
	entries := []CollectionsEntry{
		{Client: "zed", RemainingBalance: NO(-10)},
		{Client: "amy", RemainingBalance: NO(10)},
		{Client: "kim", RemainingBalance: NO(11)},
	}
	SortCollections(entries)
	got := []string{entries[0].Client, entries[1].Client, entries[2].Client}
	want := []string{"kim", "amy", "zed"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestCollect_Currencies(t *testing.T) {
	settled := func(id string, commission Money) Transaction {
		tx := sell(id, 0, day(1), 1, 1)
		tx.Commission = &commission
		return tx
	}
	sells := []Transaction{
		settled("s1", EUR(168)),
		settled("s2", M(30, "USD")),
	}
	payments := []Payment{
		{ID: "p1", Client: "alice", Amount: EUR(100), OccurredAt: day(2)},
		{ID: "p2", Client: "alice", Amount: M(5, "INR"), OccurredAt: day(2)},
	}

	got := Collect(sells, payments)
	want := []CollectionsEntry{
		{Client: "alice", Currency: "EUR", TotalCommission: EUR(168), TotalPayments: EUR(100), RemainingBalance: EUR(68)},
		{Client: "alice", Currency: "USD", TotalCommission: M(30, "USD"), TotalPayments: M(0, "USD"), RemainingBalance: M(30, "USD")},
		{Client: "alice", Currency: "INR", TotalCommission: M(0, "INR"), TotalPayments: M(5, "INR"), RemainingBalance: M(-5, "INR")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Client != w.Client || g.Currency != w.Currency || !g.TotalCommission.Equal(w.TotalCommission) ||
			!g.TotalPayments.Equal(w.TotalPayments) || !g.RemainingBalance.Equal(w.RemainingBalance) {
			t.Errorf("entry %d = %+v, want %+v", i, g, w)
		}
	}
}
