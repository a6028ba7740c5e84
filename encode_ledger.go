package brokerage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// maxLineSize bounds the length of a single JSONL record.
const maxLineSize = 1 << 20

// DecodeLedger reads transactions from a JSONL stream, one object per line.
// Lines without a sequence number are numbered after the highest one found,
// in file order.
func DecodeLedger(r io.Reader) ([]Transaction, error) {
	var txs []Transaction
	err := scanLines(r, func(n int, line []byte) error {
		var tx Transaction
		if err := json.Unmarshal(line, &tx); err != nil {
			return fmt.Errorf("line %d: could not decode transaction: %w", n, err)
		}
		txs = append(txs, tx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var seq int64
	for _, tx := range txs {
		seq = max(seq, tx.Seq)
	}
	for i := range txs {
		if txs[i].Seq == 0 {
			seq++
			txs[i].Seq = seq
		}
	}
	return txs, nil
}

// EncodeTransaction writes tx as a single JSON line.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", tx.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction %s: %w", tx.ID, err)
	}
	return nil
}

// EncodeLedger writes txs in replay order, one JSON object per line. The
// output of DecodeLedger followed by EncodeLedger is canonical.
func EncodeLedger(w io.Writer, txs []Transaction) error {
	sorted := slices.Clone(txs)
	SortTransactions(sorted)
	for _, tx := range sorted {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

// DecodePayments reads payments from a JSONL stream.
func DecodePayments(r io.Reader) ([]Payment, error) {
	var payments []Payment
	err := scanLines(r, func(n int, line []byte) error {
		var p Payment
		if err := json.Unmarshal(line, &p); err != nil {
			return fmt.Errorf("line %d: could not decode payment: %w", n, err)
		}
		payments = append(payments, p)
		return nil
	})
	return payments, err
}

// EncodePayments writes payments, in the given order, one per line.
func EncodePayments(w io.Writer, payments []Payment) error {
	for _, p := range payments {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal payment %s: %w", p.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write payment %s: %w", p.ID, err)
		}
	}
	return nil
}

// scanLines calls f on every non blank line of r with its 1-based number.
func scanLines(r io.Reader, f func(n int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := f(n, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading from input: %w", err)
	}
	return nil
}
