package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `
commission_rate: 0.25
reference_fallback: true
currency: INR
database: ledger.db
log_level: debug
log_format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.CommissionRate.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("CommissionRate = %s, want 0.25", cfg.CommissionRate)
	}
	if !cfg.ReferenceFallback || !cfg.Policy().ReferenceFallback {
		t.Error("ReferenceFallback not loaded")
	}
	if cfg.Currency != "INR" || cfg.Database != "ledger.db" || cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.LedgerFile != "transactions.jsonl" {
		t.Errorf("LedgerFile = %q, want the default", cfg.LedgerFile)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() without the default file error = %v", err)
	}
	if !cfg.CommissionRate.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("CommissionRate = %s, want 0.30", cfg.CommissionRate)
	}
	if _, err := Load("nope.yaml"); err == nil {
		t.Error("Load() of a missing explicit file succeeded")
	}
}

func TestReadEnv(t *testing.T) {
	env := map[string]string{
		"BOCS_COMMISSION_RATE":    "0.1",
		"BOCS_REFERENCE_FALLBACK": "true",
		"BOCS_LEDGER_FILE":        "l.jsonl",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := cfg.readEnv(lookup); err != nil {
		t.Fatalf("readEnv() error = %v", err)
	}
	if !cfg.CommissionRate.Equal(decimal.RequireFromString("0.1")) || !cfg.ReferenceFallback || cfg.LedgerFile != "l.jsonl" {
		t.Errorf("readEnv() = %+v", cfg)
	}

	env["BOCS_COMMISSION_RATE"] = "thirty"
	if err := cfg.readEnv(lookup); err == nil || !strings.Contains(err.Error(), "BOCS_COMMISSION_RATE") {
		t.Errorf("readEnv() error = %v, want an invalid rate", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative rate", func(c *Config) { c.CommissionRate = decimal.RequireFromString("-0.1") }, true},
		{"rate above one", func(c *Config) { c.CommissionRate = decimal.RequireFromString("1.5") }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"no storage", func(c *Config) { c.LedgerFile = "" }, true},
		{"database only", func(c *Config) { c.LedgerFile, c.PaymentsFile, c.Database = "", "", "x.db" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
