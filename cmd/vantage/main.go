package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vantalabs/vantage/cmd/vantage/commands"
	"github.com/vantalabs/vantage/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vantage",
	Short: "Vantage - Resilient market data access",
	Long: `Vantage - Resilient data-access core for market data.

Vantage fetches market data through a cache, per-source circuit breakers,
and ranked fallback across registered sources, validating every payload
before it is trusted.

Available commands:
  fetch   - Fetch one data point through the fallback chain
  stats   - Show orchestrator, cache, and source health diagnostics
  journal - Inspect the fetch journal
  config  - Manage vantage configuration
  version - Show version information

Examples:
  vantage fetch price AAPL          # Fetch a quote
  vantage fetch price AAPL --fresh  # Bypass the cache
  vantage journal stats             # Aggregate fetch outcomes
  vantage config show               # Show effective configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Commands with machine-readable output keep the log channel quiet
		if cmd.Name() == "show" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(commands.FetchCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.JournalCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
