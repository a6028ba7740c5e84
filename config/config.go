// Package config loads the settings of the bocs command.
//
// Settings come, from lowest to highest precedence, from the defaults, a
// YAML file, a .env file and the process environment. Command line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/etnz/brokerage"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file read when none is given.
const DefaultFile = "bocs.yaml"

// Config holds every setting of the command.
type Config struct {
	// CommissionRate is the share of realized profit charged as commission.
	CommissionRate decimal.Decimal `yaml:"commission_rate"`
	// ReferenceFallback lets a sell consume FIFO once its referenced lot is exhausted.
	ReferenceFallback bool `yaml:"reference_fallback"`
	// Currency is assumed for amounts entered without one.
	Currency string `yaml:"currency"`

	LedgerFile   string `yaml:"ledger_file"`
	PaymentsFile string `yaml:"payments_file"`
	// Database is a SQLite file; when set it replaces the JSONL files.
	Database string `yaml:"database"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// TraceFile receives the spans of the book writes, none when empty.
	TraceFile string `yaml:"trace_file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		CommissionRate: brokerage.DefaultCommissionRate,
		LedgerFile:     "transactions.jsonl",
		PaymentsFile:   "payments.jsonl",
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// Load reads the configuration file at path, then the environment. A
// missing DefaultFile is not an error, any other missing file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = DefaultFile
	}
	if err := cfg.readFile(path); err != nil {
		if !(errors.Is(err, fs.ErrNotExist) && path == DefaultFile) {
			return nil, err
		}
		slog.Debug("no configuration file, using defaults", "path", path)
	}

	if err := cfg.readEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("invalid configuration file %s: %w", path, err)
	}
	return nil
}

// readEnv applies the BOCS_* variables found by lookup.
func (c *Config) readEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	str("BOCS_CURRENCY", &c.Currency)
	str("BOCS_LEDGER_FILE", &c.LedgerFile)
	str("BOCS_PAYMENTS_FILE", &c.PaymentsFile)
	str("BOCS_DATABASE", &c.Database)
	str("BOCS_LOG_LEVEL", &c.LogLevel)
	str("BOCS_LOG_FORMAT", &c.LogFormat)
	str("BOCS_TRACE_FILE", &c.TraceFile)

	if v, ok := lookup("BOCS_COMMISSION_RATE"); ok {
		rate, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid BOCS_COMMISSION_RATE %q: %w", v, err)
		}
		c.CommissionRate = rate
	}
	if v, ok := lookup("BOCS_REFERENCE_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BOCS_REFERENCE_FALLBACK %q: %w", v, err)
		}
		c.ReferenceFallback = b
	}
	return nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	var errs error
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = errors.Join(errs, fmt.Errorf("commission rate must be between 0 and 1, got %s", c.CommissionRate))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = errors.Join(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	if c.Database == "" && (c.LedgerFile == "" || c.PaymentsFile == "") {
		errs = errors.Join(errs, errors.New("a database or both ledger and payments files are required"))
	}
	return errs
}

// Calculator returns the commission calculator for the configured rate.
func (c *Config) Calculator() (brokerage.Calculator, error) {
	return brokerage.NewCalculator(c.CommissionRate)
}

// Policy returns the lot allocation policy.
func (c *Config) Policy() brokerage.Policy {
	return brokerage.Policy{ReferenceFallback: c.ReferenceFallback}
}
