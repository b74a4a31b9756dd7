package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/fundscan-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/fundscan-cli/internal/app"
	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

var (
	scanDryRun   bool
	scanQuery    string
	scanSince    string
	scanDeadline time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one ingestion pass across all enabled sources",
	Long: `Fetches every enabled source concurrently, diffs the merged results
against the previous run's snapshot and prints a run summary.

With --dry-run the full fetch and diff logic runs but the snapshot and
zombie tracker are not written, so persisted state is left untouched.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "suppress snapshot and zombie tracker writes")
	scanCmd.Flags().StringVarP(&scanQuery, "query", "q", "", "search term (overrides config)")
	scanCmd.Flags().StringVar(&scanSince, "since", "", "only keep items published after this date (YYYY-MM-DD)")
	scanCmd.Flags().DurationVar(&scanDeadline, "deadline", 0, "overall run deadline (overrides config)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanDeadline > 0 {
		cfg.Scan.Deadline = file.Duration{Duration: scanDeadline}
	}

	query := domain.ScanQuery{Terms: cfg.Scan.Query}
	if scanQuery != "" {
		query.Terms = scanQuery
	}
	if scanSince != "" {
		since, err := time.Parse("2006-01-02", scanSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		query.Since = since
	}

	runner, err := app.BuildRunner(cfg)
	if err != nil {
		return err
	}

	result, err := runner.Run(context.Background(), query, scanDryRun)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printSummary(cmd, result)
	return nil
}

// printSummary renders the run for the operator. Failed sources are
// enumerated explicitly so partial data loss is visible, not silent.
func printSummary(cmd *cobra.Command, result *domain.ScanResult) {
	cmd.Printf("Scan %s finished in %s\n", result.ScanID, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	if result.DryRun {
		cmd.Println("Dry run: snapshot and zombie tracker not written.")
	}

	cmd.Printf("Items: %d  (+%d added, -%d removed, ~%d modified, %d unchanged)\n",
		len(result.Items),
		len(result.Changes.Added),
		len(result.Changes.Removed),
		len(result.Changes.Modified),
		len(result.Changes.Unchanged),
	)
	if len(result.Zombies) > 0 {
		cmd.Printf("Zombie identifiers back this run (excluded from trend adds): %d\n", len(result.Zombies))
		for _, key := range result.Zombies {
			cmd.Printf("  %s\n", key)
		}
	}

	cmd.Println("Sources:")
	for _, src := range result.Sources {
		switch {
		case src.Failed:
			cmd.Printf("  %-12s FAILED: %s\n", src.Source, src.Reason)
		case src.Reason != "":
			cmd.Printf("  %-12s %d items (%s)\n", src.Source, src.Items, src.Reason)
		default:
			cmd.Printf("  %-12s %d items\n", src.Source, src.Items)
		}
	}
}
