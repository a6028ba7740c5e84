package cmd

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"
)

// Helper function to create a temporary ledger file
func createTempLedger(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	tmpfile, err := os.Create(filepath.Join(tmp, "test_ledger.jsonl"))
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer tmpfile.Close()

	if _, err := tmpfile.WriteString(content); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	return tmpfile.Name()
}

const unformattedLedger = `{"kind":"sell","id":"s1","client":"alice","stock":"ACME","lots":40,"price":24,"currency":"EUR","occurredAt":"2025-01-02T12:00:00Z","memo":"partial exit"}
{"occurredAt":"2025-01-01T12:00:00+01:00","kind":"BUY","id":"b1","client":"alice","stock":"ACME","broker":"kite","lots":100,"price":10,"currency":"EUR"}
`

const formattedLedger = `{"id":"b1","seq":2,"kind":"BUY","occurredAt":"2025-01-01T11:00:00Z","client":"alice","stock":"ACME","broker":"kite","lots":100,"price":10,"currency":"EUR"}
{"id":"s1","seq":1,"kind":"SELL","occurredAt":"2025-01-02T12:00:00Z","client":"alice","stock":"ACME","lots":40,"price":24,"currency":"EUR","memo":"partial exit"}
`

// TestFormatLedgerDefaultOutput tests the default behavior (writes to default ledger file)
func TestFormatLedgerDefaultOutput(t *testing.T) {
	tempLedgerFile := createTempLedger(t, unformattedLedger)

	cmd := &formatLedgerCmd{}
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd.SetFlags(f)

	// Override global ledgerFile for the test
	oldLedgerFile := ledgerFile
	ledgerFile = &tempLedgerFile
	defer func() { ledgerFile = oldLedgerFile }()

	status := cmd.Execute(context.Background(), f)
	if status != subcommands.ExitSuccess {
		t.Errorf("Expected ExitSuccess, got %v", status)
	}

	gotContent, err := os.ReadFile(tempLedgerFile)
	if err != nil {
		t.Fatalf("Failed to read formatted ledger file: %v", err)
	}
	if strings.TrimSpace(string(gotContent)) != strings.TrimSpace(formattedLedger) {
		t.Errorf("Default output mismatch.\nGot:\n%s\nWant:\n%s", string(gotContent), formattedLedger)
	}
}

// TestFormatLedgerToFileOutput tests writing to a specified output file
func TestFormatLedgerToFileOutput(t *testing.T) {
	tempInputLedger := createTempLedger(t, unformattedLedger)
	tempOutputFile := filepath.Join(t.TempDir(), "test_output.jsonl")

	cmd := &formatLedgerCmd{}
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd.SetFlags(f)
	f.Set("o", tempOutputFile)

	oldLedgerFile := ledgerFile
	ledgerFile = &tempInputLedger
	defer func() { ledgerFile = oldLedgerFile }()

	if status := cmd.Execute(context.Background(), f); status != subcommands.ExitSuccess {
		t.Errorf("Expected ExitSuccess, got %v", status)
	}

	gotContent, err := os.ReadFile(tempOutputFile)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	if strings.TrimSpace(string(gotContent)) != strings.TrimSpace(formattedLedger) {
		t.Errorf("File output mismatch.\nGot:\n%s\nWant:\n%s", string(gotContent), formattedLedger)
	}

	// The input is left untouched.
	input, _ := os.ReadFile(tempInputLedger)
	if string(input) != unformattedLedger {
		t.Errorf("input ledger was modified:\n%s", input)
	}
}

// TestFormatLedgerToStdoutOutput tests writing to stdout
func TestFormatLedgerToStdoutOutput(t *testing.T) {
	tempInputLedger := createTempLedger(t, unformattedLedger)

	// Redirect stdout to capture output
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = oldStdout }()

	cmd := &formatLedgerCmd{}
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd.SetFlags(f)
	f.Set("o", "-")

	oldLedgerFile := ledgerFile
	ledgerFile = &tempInputLedger
	defer func() { ledgerFile = oldLedgerFile }()

	status := cmd.Execute(context.Background(), f)

	w.Close()
	gotOutput, _ := io.ReadAll(r)

	if status != subcommands.ExitSuccess {
		t.Errorf("Expected ExitSuccess, got %v", status)
	}
	if strings.TrimSpace(string(gotOutput)) != strings.TrimSpace(formattedLedger) {
		t.Errorf("Stdout output mismatch.\nGot:\n%s\nWant:\n%s", gotOutput, formattedLedger)
	}
}

func TestFormatLedgerInvalid(t *testing.T) {
	tempInputLedger := createTempLedger(t, `{"id":"x","kind":"HOLD"}`+"\n")

	cmd := &formatLedgerCmd{}
	f := flag.NewFlagSet("test", flag.ContinueOnError)
	cmd.SetFlags(f)

	oldLedgerFile := ledgerFile
	ledgerFile = &tempInputLedger
	defer func() { ledgerFile = oldLedgerFile }()

	if status := cmd.Execute(context.Background(), f); status != subcommands.ExitFailure {
		t.Errorf("Expected ExitFailure, got %v", status)
	}
}
