package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/vantalabs/vantage/config"
	"github.com/vantalabs/vantage/feed"
	"github.com/vantalabs/vantage/internal/httpclient"
	"github.com/vantalabs/vantage/logger"
)

var (
	fetchFresh   bool
	fetchTimeout time.Duration
)

// FetchCmd represents the fetch command
var FetchCmd = &cobra.Command{
	Use:   "fetch <data-type> <key>",
	Short: "Fetch one data point through the fallback chain",
	Long: `Fetch one data point, trying the cache first, then every catalog
source for the data type in health-ranked order.

Sources come from the catalog file named by fetch.catalog_path; entries
with a url are bound to HTTP JSON endpoints automatically.

Examples:
  vantage fetch price AAPL
  vantage fetch price AAPL --fresh
  vantage fetch news MSFT --timeout 10s`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	FetchCmd.Flags().BoolVar(&fetchFresh, "fresh", false, "Bypass the cache for this fetch")
	FetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Overall fetch deadline")
}

// buildOrchestrator wires the orchestrator from configuration: cache,
// breakers, catalog sources, and the journal when enabled.
func buildOrchestrator(cfg *config.Config) (*feed.Orchestrator, *feed.Journal, error) {
	var journal *feed.Journal
	var opts []feed.Option

	if cfg.Journal.Enabled {
		j, err := feed.OpenJournal(cfg.GetJournalPath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journal = j
		opts = append(opts, feed.WithJournal(j))
	}

	o := feed.NewFromConfig(cfg, logger.Logger, opts...)

	if cfg.Fetch.CatalogPath != "" {
		catalog, err := feed.LoadCatalog(cfg.Fetch.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		client := httpclient.NewSaferClient(30 * time.Second)
		if err := o.RegisterFromCatalog(catalog, catalog.BindHTTP(client)); err != nil {
			return nil, nil, err
		}
	}

	return o, journal, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	dataType, key := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	o, journal, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
	}

	var fetchOpts []feed.FetchOption
	if fetchFresh {
		fetchOpts = append(fetchOpts, feed.ForceRefresh())
	}

	result := o.Fetch(ctx, dataType, key, fetchOpts...)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Println(string(output))
		if !result.Success {
			return fmt.Errorf("fetch failed: %s", result.Error)
		}
		return nil
	}

	if !result.Success {
		pterm.Error.Printfln("Fetch failed: %s", result.Error)
		if len(result.TriedSources) > 0 {
			pterm.Info.Printfln("Tried: %v", result.TriedSources)
		}
		return fmt.Errorf("fetch failed")
	}

	if result.Cached {
		pterm.Success.Printfln("%s %s (cached)", dataType, key)
	} else if result.FallbackUsed {
		pterm.Warning.Printfln("%s %s via fallback source %s (tried %v)",
			dataType, key, result.Source, result.TriedSources)
	} else {
		pterm.Success.Printfln("%s %s via %s in %dms",
			dataType, key, result.Source, result.DurationMS)
	}
	if result.Validation != nil && len(result.Validation.Warnings) > 0 {
		pterm.Warning.Printfln("Validation warnings (confidence %.2f): %v",
			result.Validation.Confidence, result.Validation.Warnings)
	}

	payload, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}
