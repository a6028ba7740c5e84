// Package sqlstore keeps transactions and payments in a SQLite database.
//
// Amounts and lot counts are stored as decimal text so that they are read
// back exactly.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/etnz/brokerage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	seq             INTEGER NOT NULL,
	client          TEXT NOT NULL,
	stock           TEXT NOT NULL,
	broker          TEXT,
	kind            TEXT NOT NULL CHECK (kind IN ('BUY', 'SELL')),
	lots            TEXT NOT NULL,
	price           TEXT NOT NULL,
	currency        TEXT NOT NULL DEFAULT '',
	occurred_at     INTEGER NOT NULL,
	ref             TEXT NOT NULL DEFAULT '',
	realized_profit TEXT,
	commission      TEXT,
	override        INTEGER NOT NULL DEFAULT 0,
	memo            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_bucket ON transactions (client, stock, broker, occurred_at, seq);
CREATE INDEX IF NOT EXISTS idx_transactions_client_kind ON transactions (client, kind);

CREATE TABLE IF NOT EXISTS payments (
	pos         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	client      TEXT NOT NULL,
	amount      TEXT NOT NULL,
	currency    TEXT NOT NULL DEFAULT '',
	occurred_at INTEGER NOT NULL,
	method      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_payments_client ON payments (client);

CREATE TABLE IF NOT EXISTS sequences (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const txColumns = `id, seq, client, stock, broker, kind, lots, price, currency, occurred_at, ref, realized_profit, commission, override, memo`

// Store is a brokerage.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ brokerage.Store = (*Store)(nil)

// Open opens, and creates if needed, the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables in %s: %w", path, err)
	}
	s := &Store{db: db, log: slog.Default().With("database", path)}
	s.log.Debug("database ready")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (brokerage.Transaction, error) {
	var (
		tx                          brokerage.Transaction
		broker, profit, commission  sql.NullString
		kind, lots, price, currency string
		occurredAt                  int64
		override                    bool
	)
	err := row.Scan(&tx.ID, &tx.Seq, &tx.Client, &tx.Stock, &broker, &kind, &lots, &price, &currency,
		&occurredAt, &tx.ReferencedBuy, &profit, &commission, &override, &tx.Memo)
	if err != nil {
		return tx, err
	}
	if broker.Valid {
		tx.Broker = brokerage.SomeBroker(broker.String)
	}
	if tx.Kind, err = brokerage.ParseKind(kind); err != nil {
		return tx, err
	}
	if tx.Lots, err = brokerage.ParseQuantity(lots); err != nil {
		return tx, err
	}
	if tx.UnitPrice, err = brokerage.ParseMoney(price, currency); err != nil {
		return tx, err
	}
	tx.OccurredAt = time.Unix(0, occurredAt).UTC()
	tx.Override = override
	if profit.Valid {
		m, err := brokerage.ParseMoney(profit.String, currency)
		if err != nil {
			return tx, err
		}
		tx.RealizedProfit = &m
	}
	if commission.Valid {
		m, err := brokerage.ParseMoney(commission.String, currency)
		if err != nil {
			return tx, err
		}
		tx.Commission = &m
	}
	return tx, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]brokerage.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []brokerage.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// brokerArg maps a broker to a nullable column value.
func brokerArg(b brokerage.Broker) any {
	if id, ok := b.ID(); ok {
		return id
	}
	return nil
}

func derivedArg(m *brokerage.Money) any {
	if m == nil {
		return nil
	}
	return m.Decimal().String()
}

func (s *Store) Transactions(ctx context.Context, b brokerage.Bucket) ([]brokerage.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE client = ? AND stock = ? AND broker IS ? ORDER BY occurred_at, seq, id`,
		b.Client, b.Stock, brokerArg(b.Broker))
}

func (s *Store) Transaction(ctx context.Context, id string) (brokerage.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tx, fmt.Errorf("transaction %q: %w", id, brokerage.ErrNotFound)
	}
	return tx, err
}

func (s *Store) Buckets(ctx context.Context) ([]brokerage.Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT client, stock, broker FROM transactions ORDER BY client, stock, broker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []brokerage.Bucket
	for rows.Next() {
		var b brokerage.Bucket
		var broker sql.NullString
		if err := rows.Scan(&b.Client, &b.Stock, &broker); err != nil {
			return nil, err
		}
		if broker.Valid {
			b.Broker = brokerage.SomeBroker(broker.String)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) Sells(ctx context.Context, client string) ([]brokerage.Transaction, error) {
	if client == "" {
		return s.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions WHERE kind = 'SELL' ORDER BY occurred_at, seq, id`)
	}
	return s.queryTransactions(ctx, `SELECT `+txColumns+` FROM transactions WHERE kind = 'SELL' AND client = ? ORDER BY occurred_at, seq, id`, client)
}

func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (name, value)
		VALUES ('transactions', (SELECT coalesce(max(seq), 0) + 1 FROM transactions))
		ON CONFLICT (name) DO UPDATE SET value = max(value + 1, excluded.value)
		RETURNING value`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve sequence: %w", err)
	}
	return seq, nil
}

// Apply commits the batch in a single SQL transaction.
func (s *Store) Apply(ctx context.Context, b brokerage.Batch) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	for _, id := range b.Delete {
		res, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete transaction %q: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("delete transaction %q: %w", id, brokerage.ErrNotFound)
		}
	}
	for _, tx := range b.Insert {
		var exists bool
		if err := sqlTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = ?)`, tx.ID).Scan(&exists); err != nil {
			return fmt.Errorf("insert transaction %q: %w", tx.ID, err)
		}
		if exists {
			return fmt.Errorf("insert transaction %q: %w", tx.ID, brokerage.ErrDuplicateID)
		}
		if err := saveTransaction(ctx, sqlTx, `INSERT`, tx); err != nil {
			return err
		}
	}
	for _, tx := range b.Put {
		if err := saveTransaction(ctx, sqlTx, `INSERT OR REPLACE`, tx); err != nil {
			return err
		}
	}
	for _, d := range b.Derived {
		res, err := sqlTx.ExecContext(ctx, `UPDATE transactions SET realized_profit = ?, commission = ? WHERE id = ?`,
			d.RealizedProfit.Decimal().String(), d.Commission.Decimal().String(), d.ID)
		if err != nil {
			return fmt.Errorf("update transaction %q: %w", d.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update transaction %q: %w", d.ID, brokerage.ErrNotFound)
		}
	}
	return sqlTx.Commit()
}

// saveTransaction writes tx with the given insert verb.
func saveTransaction(ctx context.Context, sqlTx *sql.Tx, verb string, tx brokerage.Transaction) error {
	_, err := sqlTx.ExecContext(ctx, verb+` INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Seq, tx.Client, tx.Stock, brokerArg(tx.Broker), string(tx.Kind), tx.Lots.String(),
		tx.UnitPrice.Decimal().String(), tx.UnitPrice.Currency(), tx.OccurredAt.UnixNano(), tx.ReferencedBuy,
		derivedArg(tx.RealizedProfit), derivedArg(tx.Commission), tx.Override, tx.Memo)
	if err != nil {
		return fmt.Errorf("save transaction %q: %w", tx.ID, err)
	}
	return nil
}

func (s *Store) Payments(ctx context.Context, client string) ([]brokerage.Payment, error) {
	query := `SELECT id, client, amount, currency, occurred_at, method, description FROM payments`
	var args []any
	if client != "" {
		query += ` WHERE client = ?`
		args = append(args, client)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY pos`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []brokerage.Payment
	for rows.Next() {
		var (
			p                brokerage.Payment
			amount, currency string
			occurredAt       int64
		)
		if err := rows.Scan(&p.ID, &p.Client, &amount, &currency, &occurredAt, &p.Method, &p.Description); err != nil {
			return nil, err
		}
		if p.Amount, err = brokerage.ParseMoney(amount, currency); err != nil {
			return nil, err
		}
		p.OccurredAt = time.Unix(0, occurredAt).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddPayment(ctx context.Context, p brokerage.Payment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO payments (id, client, amount, currency, occurred_at, method, description) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Client, p.Amount.Decimal().String(), p.Amount.Currency(), p.OccurredAt.UnixNano(), p.Method, p.Description)
	if err != nil {
		return fmt.Errorf("save payment %q: %w", p.ID, err)
	}
	return nil
}

// Import copies transactions and payments into the database, in one SQL
// transaction for the former.
func (s *Store) Import(ctx context.Context, txs []brokerage.Transaction, payments []brokerage.Payment) error {
	if err := s.Apply(ctx, brokerage.Batch{Put: txs}); err != nil {
		return err
	}
	for _, p := range payments {
		if err := s.AddPayment(ctx, p); err != nil {
			return err
		}
	}
	s.log.Info("ledger imported", "transactions", len(txs), "payments", len(payments))
	return nil
}
