package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fakturnik/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "fakturnik",
	Short: "Fakturnik - single-operator invoicing from the command line",
	Long: `Fakturnik records customers, composes invoices from billable line
items, computes tax-inclusive totals, assigns gap-free sequential
invoice numbers, and keeps past invoices searchable for review,
correction or reprint.

All state lives in a single sqlite database file (FAKTURNIK_DB,
default fakturnik.db). Finalized invoices are immutable; corrections
are always issued as new, separately numbered documents.`,
	Version: version,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

// outputJSON writes v as indented JSON to path, or stdout when path is
// empty.
func outputJSON(v interface{}, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if path != "" {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
