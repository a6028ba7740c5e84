package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/google/subcommands"
)

// Environment variables passed to extensions. They are the ones read by
// the configuration, so an extension loading it sees the same book.
const (
	EnvLedgerFile     = "BOCS_LEDGER_FILE"
	EnvPaymentsFile   = "BOCS_PAYMENTS_FILE"
	EnvDatabase       = "BOCS_DATABASE"
	EnvCommissionRate = "BOCS_COMMISSION_RATE"
	EnvLogLevel       = "BOCS_LOG_LEVEL"
	EnvVerbose        = "BOCS_VERBOSE"
)

// IsCommand reports whether name is registered in c.
func IsCommand(c *subcommands.Commander, name string) bool {
	for _, n := range commandNames(c) {
		if n == name {
			return true
		}
	}
	return false
}

// RunExtension attempts to find and execute an external bocs-<subcommand> binary.
// It returns (true, exitCode) if an extension was found and executed,
// and (false, 0) if no extension was found or executed.
func RunExtension(subcommand string, args []string) (bool, int) {
	externalCmdName := "bocs-" + subcommand

	lp, err := exec.LookPath(externalCmdName)
	if err != nil {
		slog.Debug("external command not found", "command", externalCmdName, "error", err)
		return false, 0
	}

	cmd := exec.Command(lp, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Pass global flags as environment variables, only those set so that
	// the extension still reads the configuration file for the others.
	cmd.Env = os.Environ()
	set := func(key, value string) {
		if value != "" {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}
	set(EnvLedgerFile, *ledgerFile)
	set(EnvPaymentsFile, *paymentsFile)
	set(EnvDatabase, *databaseFile)
	set(EnvCommissionRate, *commissionRate)
	if *verbose {
		set(EnvLogLevel, "debug")
	}
	set(EnvVerbose, strconv.FormatBool(*verbose))

	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return true, exitError.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", externalCmdName, err)
		return true, 1
	}
	return true, 0
}
