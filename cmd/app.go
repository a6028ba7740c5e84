// Package cmd implements the bocs command line application to record
// brokerage transactions and report positions and commissions.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/brokerage"
	"github.com/etnz/brokerage/config"
	"github.com/etnz/brokerage/logger"
	"github.com/etnz/brokerage/sqlstore"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&buyCmd{}, "transactions")
	c.Register(&sellCmd{}, "transactions")
	c.Register(&editCmd{}, "transactions")
	c.Register(&deleteCmd{}, "transactions")
	c.Register(&payCmd{}, "transactions")

	c.Register(&txCmd{}, "reports")
	c.Register(&positionsCmd{}, "reports")
	c.Register(&lotsCmd{}, "reports")
	c.Register(&salesCmd{}, "reports")
	c.Register(&collectionsCmd{}, "reports")
	c.Register(&recomputeCmd{}, "reports")
	c.Register(&publishCmd{}, "reports")

	c.Register(&formatLedgerCmd{}, "ledger")
	c.Register(&importCmd{}, "ledger")
	c.Register(&topicCmd{}, "ledger")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "", "Path to the configuration file (YAML). Defaults to bocs.yaml when present.")
var ledgerFile = flag.String("ledger-file", "", "Path to the ledger file containing transactions (JSONL format)")
var paymentsFile = flag.String("payments-file", "", "Path to the file containing payments (JSONL format)")
var databaseFile = flag.String("db", "", "Path to a SQLite database. Replaces the JSONL files when set.")
var commissionRate = flag.String("rate", "", "Commission rate applied to realized profit, e.g. 0.30")
var verbose = flag.Bool("v", false, "Log debug messages")
var traceFile = flag.String("trace", "", "Append the spans of the book writes to this file (JSON)")

// loadConfig reads the configuration and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *ledgerFile != "" {
		cfg.LedgerFile = *ledgerFile
	}
	if *paymentsFile != "" {
		cfg.PaymentsFile = *paymentsFile
	}
	if *databaseFile != "" {
		cfg.Database = *databaseFile
	}
	if *commissionRate != "" {
		if cfg.CommissionRate, err = decimal.NewFromString(*commissionRate); err != nil {
			return nil, fmt.Errorf("invalid -rate %q: %w", *commissionRate, err)
		}
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	if *traceFile != "" {
		cfg.TraceFile = *traceFile
	}
	return cfg, cfg.Validate()
}

// app is the book opened on the configured storage.
type app struct {
	cfg  *config.Config
	log  *slog.Logger
	book *brokerage.Book
	// mem is set when the book is backed by the JSONL files.
	mem *brokerage.MemoryStore
	db  *sqlstore.Store
	// shutdown flushes the spans when tracing is on.
	shutdown func(context.Context) error
}

// openApp loads the configuration and opens the book it designates.
func openApp() (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger.Init(cfg.LogLevel, cfg.LogFormat)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	calc, err := cfg.Calculator()
	if err != nil {
		return nil, err
	}
	if cfg.TraceFile != "" {
		if err := a.startTracing(cfg.TraceFile); err != nil {
			return nil, err
		}
	}

	var store brokerage.Store
	if cfg.Database != "" {
		if a.db, err = sqlstore.Open(cfg.Database); err != nil {
			return nil, err
		}
		store = a.db
	} else {
		txs, err := decodeLedger(cfg.LedgerFile)
		if err != nil {
			return nil, err
		}
		payments, err := decodePayments(cfg.PaymentsFile)
		if err != nil {
			return nil, err
		}
		if a.mem, err = brokerage.NewMemoryStore(txs, payments); err != nil {
			return nil, err
		}
		store = a.mem
	}
	a.book = brokerage.NewBook(store,
		brokerage.WithCalculator(calc),
		brokerage.WithPolicy(cfg.Policy()),
		brokerage.WithLogger(a.log),
	)
	return a, nil
}

// save persists the JSONL files after a successful write. It does nothing
// with a database, which is written by the book itself.
func (a *app) save() error {
	if a.mem == nil {
		return nil
	}
	if err := writeFile(a.cfg.LedgerFile, func(f *os.File) error { return brokerage.EncodeLedger(f, a.mem.All()) }); err != nil {
		return err
	}
	return writeFile(a.cfg.PaymentsFile, func(f *os.File) error { return brokerage.EncodePayments(f, a.mem.AllPayments()) })
}

// startTracing appends the spans to path until Close.
func (a *app) startTracing(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open trace file %q: %w", path, err)
	}
	shutdown, err := logger.InitTracing(f, "bocs")
	if err != nil {
		f.Close()
		return err
	}
	a.shutdown = func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), f.Close())
	}
	return nil
}

func (a *app) Close() error {
	var errs error
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = errors.Join(errs, a.shutdown(ctx))
	}
	if a.db != nil {
		errs = errors.Join(errs, a.db.Close())
	}
	return errs
}

// decodeLedger reads a JSONL ledger, a missing file is an empty ledger.
func decodeLedger(path string) ([]brokerage.Transaction, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("ledger does not exist, starting from an empty ledger", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open ledger %q: %w", path, err)
	}
	defer f.Close()
	txs, err := brokerage.DecodeLedger(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode ledger %q: %w", path, err)
	}
	return txs, nil
}

func decodePayments(path string) ([]brokerage.Payment, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not open payments %q: %w", path, err)
	}
	defer f.Close()
	payments, err := brokerage.DecodePayments(f)
	if err != nil {
		return nil, fmt.Errorf("could not decode payments %q: %w", path, err)
	}
	return payments, nil
}

// writeFile replaces path with what encode writes, through a temporary
// file in the same directory. The permissions of path are kept, a new file
// is 0644.
func writeFile(path string, encode func(*os.File) error) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("could not write %q: %w", path, err)
	}
	defer os.Remove(f.Name())
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return fmt.Errorf("could not write %q: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("could not encode %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// run opens the app, calls do and reports its error. Writes are saved
// when do succeeds.
func run(ctx context.Context, write bool, do func(context.Context, *app) error) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the book: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := do(ctx, a); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", describe(err))
		return subcommands.ExitFailure
	}
	if write {
		if err := a.save(); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving the ledger: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

// usageError is an invalid command line.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{fmt.Sprintf(format, args...)}
}

// describe prefixes engine rejections with what they mean for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, brokerage.ErrInsufficientPosition):
		return fmt.Sprintf("rejected, not enough lots: %v", err)
	case errors.Is(err, brokerage.ErrInvalidReference):
		return fmt.Sprintf("rejected, invalid reference: %v", err)
	case errors.Is(err, brokerage.ErrMalformedTransaction):
		return fmt.Sprintf("rejected, malformed transaction: %v", err)
	case errors.Is(err, brokerage.ErrRecomputationConflict):
		return fmt.Sprintf("busy, try again: %v", err)
	case errors.Is(err, brokerage.ErrNotFound):
		return fmt.Sprintf("not found: %v", err)
	default:
		return err.Error()
	}
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseTime parses a date or a timestamp in UTC. The empty string is now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want a date like 2025-01-31 or an RFC 3339 timestamp", s)
}
