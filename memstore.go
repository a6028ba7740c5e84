package brokerage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is a Store kept in memory. The zero value is not usable, use
// NewMemoryStore.
type MemoryStore struct {
	mu       sync.RWMutex
	txs      map[string]Transaction
	payments []Payment
	seq      int64
}

// NewMemoryStore returns a store holding txs and payments.
func NewMemoryStore(txs []Transaction, payments []Payment) (*MemoryStore, error) {
	s := &MemoryStore{txs: make(map[string]Transaction)}
	for _, tx := range txs {
		if _, dup := s.txs[tx.ID]; dup {
			return nil, fmt.Errorf("duplicate transaction id %q", tx.ID)
		}
		s.txs[tx.ID] = tx
		s.seq = max(s.seq, tx.Seq)
	}
	s.payments = slices.Clone(payments)
	return s, nil
}

func (s *MemoryStore) Transactions(_ context.Context, b Bucket) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, tx := range s.txs {
		if tx.Bucket() == b {
			out = append(out, tx)
		}
	}
	SortTransactions(out)
	return out, nil
}

func (s *MemoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %q: %w", id, ErrNotFound)
	}
	return tx, nil
}

func (s *MemoryStore) Buckets(_ context.Context) ([]Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[Bucket]bool)
	var out []Bucket
	for _, tx := range s.txs {
		if b := tx.Bucket(); !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *MemoryStore) Sells(_ context.Context, client string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, tx := range s.txs {
		if tx.Kind == Sell && (client == "" || tx.Client == client) {
			out = append(out, tx)
		}
	}
	SortTransactions(out)
	return out, nil
}

// All returns every transaction in replay order.
func (s *MemoryStore) All() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx)
	}
	SortTransactions(out)
	return out
}

func (s *MemoryStore) NextSeq(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Apply(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// check everything before the first write
	put := make(map[string]bool, len(b.Insert)+len(b.Put))
	for _, tx := range b.Insert {
		if _, ok := s.txs[tx.ID]; ok || put[tx.ID] {
			return fmt.Errorf("insert transaction %q: %w", tx.ID, ErrDuplicateID)
		}
		put[tx.ID] = true
	}
	for _, tx := range b.Put {
		put[tx.ID] = true
	}
	for _, id := range b.Delete {
		if _, ok := s.txs[id]; !ok {
			return fmt.Errorf("delete transaction %q: %w", id, ErrNotFound)
		}
	}
	for _, d := range b.Derived {
		if _, ok := s.txs[d.ID]; !ok && !put[d.ID] {
			return fmt.Errorf("update transaction %q: %w", d.ID, ErrNotFound)
		}
	}

	for _, id := range b.Delete {
		delete(s.txs, id)
	}
	for _, tx := range slices.Concat(b.Insert, b.Put) {
		s.txs[tx.ID] = tx
		s.seq = max(s.seq, tx.Seq)
	}
	for _, d := range b.Derived {
		tx := s.txs[d.ID]
		p, c := d.RealizedProfit, d.Commission
		tx.RealizedProfit, tx.Commission = &p, &c
		s.txs[d.ID] = tx
	}
	return nil
}

func (s *MemoryStore) Payments(_ context.Context, client string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, p := range s.payments {
		if client == "" || p.Client == client {
			out = append(out, p)
		}
	}
	return out, nil
}

// AllPayments returns every payment in insertion order.
func (s *MemoryStore) AllPayments() []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.payments)
}

func (s *MemoryStore) AddPayment(_ context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.payments, func(q Payment) bool { return q.ID == p.ID }) {
		return fmt.Errorf("duplicate payment id %q", p.ID)
	}
	s.payments = append(s.payments, p)
	return nil
}
