package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/vantalabs/vantage/config"
	"github.com/vantalabs/vantage/feed"
)

var (
	journalSince time.Duration
	journalLimit int
)

// JournalCmd represents the journal command
var JournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the fetch journal",
	Long: `Inspect the SQLite fetch journal written when journal.enabled is set.

Examples:
  vantage journal stats             # Aggregates for the last 24h
  vantage journal stats --since 1h  # Aggregates for the last hour
  vantage journal recent            # Most recent fetch outcomes`,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate fetch outcomes",
	RunE:  runJournalStats,
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent fetch outcomes",
	RunE:  runJournalRecent,
}

func init() {
	journalStatsCmd.Flags().DurationVar(&journalSince, "since", 24*time.Hour, "Aggregation window")
	journalRecentCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of entries to show")

	JournalCmd.AddCommand(journalStatsCmd)
	JournalCmd.AddCommand(journalRecentCmd)
}

func openJournal() (*feed.Journal, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Journal.Enabled {
		return nil, fmt.Errorf("journal is disabled (set journal.enabled = true)")
	}
	return feed.OpenJournal(cfg.GetJournalPath())
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	since := time.Now().UTC().Add(-journalSince)
	stats, err := j.Stats(since)
	if err != nil {
		return err
	}
	breakdown, err := j.SourceBreakdown(since)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		output, err := json.MarshalIndent(map[string]interface{}{
			"stats":   stats,
			"sources": breakdown,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	pterm.DefaultSection.Printfln("Fetch outcomes (last %s)", journalSince)
	pterm.Printfln("fetches: %d, successes: %d (%.0f%%), cache hits: %d, fallbacks: %d, avg %.0fms",
		stats.TotalFetches, stats.Successes, stats.SuccessRate*100,
		stats.CacheHits, stats.Fallbacks, stats.AvgDurationMS)

	if len(breakdown) > 0 {
		rows := pterm.TableData{{"Source", "Fetches", "Successes", "Avg ms"}}
		for _, sb := range breakdown {
			rows = append(rows, []string{
				sb.Source,
				fmt.Sprintf("%d", sb.FetchCount),
				fmt.Sprintf("%d", sb.Successes),
				fmt.Sprintf("%.0f", sb.AvgDurationMS),
			})
		}
		pterm.Println()
		if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
			return err
		}
	}

	if v, err := mem.VirtualMemory(); err == nil {
		pterm.Println()
		pterm.Info.Printfln("System memory: %.1f%% used (%.1f GiB available)",
			v.UsedPercent, float64(v.Available)/(1<<30))
	}

	return nil
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(journalLimit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		output, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(entries) == 0 {
		pterm.Info.Println("Journal is empty")
		return nil
	}

	rows := pterm.TableData{{"When", "Type", "Key", "Source", "Outcome", "ms"}}
	for _, e := range entries {
		outcome := "ok"
		switch {
		case !e.Success:
			outcome = "failed"
		case e.Cached:
			outcome = "cached"
		case e.FallbackUsed:
			outcome = "fallback"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("15:04:05"),
			e.DataType,
			e.Key,
			e.Source,
			outcome,
			fmt.Sprintf("%d", e.DurationMS),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
