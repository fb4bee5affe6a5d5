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
)

var statsFollow time.Duration

// StatsCmd represents the stats command
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show orchestrator, cache, and source health diagnostics",
	Long: `Show the registered source tree with priorities, rate limits, and
circuit state, plus cache accounting.

With --follow the table re-renders on an interval and the process stays
up; edits to the project config file are picked up live, so fetch
thresholds can be tuned without a restart. Health counters are
per-process; for historical outcomes across runs use
"vantage journal stats".`,
	RunE: runStats,
}

func init() {
	StatsCmd.Flags().DurationVar(&statsFollow, "follow", 0, "Re-render every interval (e.g. 5s); 0 renders once")
}

func runStats(cmd *cobra.Command, args []string) error {
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

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if statsFollow <= 0 {
		return renderStats(o, jsonOutput)
	}

	if path := config.ProjectConfigPath(); path != "" {
		watcher, err := o.WatchConfig(path)
		if err != nil {
			pterm.Warning.Printfln("Config watching unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(statsFollow)
	defer ticker.Stop()
	for {
		if err := renderStats(o, jsonOutput); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func renderStats(o *feed.Orchestrator, jsonOutput bool) error {
	stats := o.GetStats()

	if jsonOutput {
		output, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	pterm.DefaultSection.Println("Sources")
	if len(stats.Sources) == 0 {
		pterm.Info.Println("No sources registered (set fetch.catalog_path to a sources.yaml)")
	}
	for dataType, sources := range stats.Sources {
		rows := pterm.TableData{
			{"Source", "Priority", "Calls", "Success rate", "Consecutive failures", "Circuit", "Skip reason"},
		}
		for _, src := range sources {
			rows = append(rows, []string{
				src.Name,
				fmt.Sprintf("%d", src.Priority),
				fmt.Sprintf("%d", src.TotalCalls),
				fmt.Sprintf("%.0f%%", src.SuccessRate*100),
				fmt.Sprintf("%d", src.ConsecutiveFailures),
				string(src.CircuitState),
				src.SkipReason,
			})
		}
		pterm.Printfln("%s:", dataType)
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
	}

	pterm.DefaultSection.Println("Cache")
	pterm.Printfln("entries: %d, hits: %d, misses: %d, hit rate: %.0f%%",
		stats.Cache.Size, stats.Cache.Hits, stats.Cache.Misses, stats.Cache.HitRate*100)

	return nil
}
