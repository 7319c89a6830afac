package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/backfill"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

type backfillOptions struct {
	seasons       []int
	dates         []string
	allowFailures bool
}

func newBackfillCmd() *cobra.Command {
	opts := &backfillOptions{}
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Scrape every date of one or more seasons, or an explicit list of dates",
		Long: `Scrapes dates one at a time with a fixed pause between them. With
--season each configured season is walked from its first to its last day in
season order; with --date only the listed dates are scraped, in the order
given. Without either flag every configured season is backfilled.

A date that fails is recorded in the report and skipped. The command exits
non-zero when any date failed unless --allow-failures is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfill(cmd, opts)
		},
	}
	cmd.Flags().IntSliceVar(&opts.seasons, "season", nil, "season year to backfill (repeatable)")
	cmd.Flags().StringSliceVar(&opts.dates, "date", nil, "run date MM-DD-YYYY to scrape (repeatable)")
	cmd.Flags().BoolVar(&opts.allowFailures, "allow-failures", false, "exit zero even when some dates failed")
	cmd.MarkFlagsMutuallyExclusive("season", "date")
	return cmd
}

func runBackfill(cmd *cobra.Command, opts *backfillOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	// Resolve the inputs before starting the browser.
	var run func(*backfill.Runner) (backfill.Report, error)
	if len(opts.dates) > 0 {
		days, err := parseDates(opts.dates)
		if err != nil {
			return err
		}
		run = func(r *backfill.Runner) (backfill.Report, error) { return r.Run(cmd.Context(), days) }
	} else {
		ranges, err := selectSeasons(opts.seasons, a.Seasons)
		if err != nil {
			return err
		}
		run = func(r *backfill.Runner) (backfill.Report, error) { return r.RunSeasons(cmd.Context(), ranges) }
	}
	runner, err := a.Runner()
	if err != nil {
		return err
	}

	report, runErr := run(runner)
	if err := writeJSON(cmd, report); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("backfill interrupted with %d dates remaining: %w", report.Remaining, runErr)
	}
	if report.Failed() {
		a.Logger.Warn("backfill finished with failures",
			zap.String("run_id", report.RunID),
			zap.Int("failures", len(report.Failures)),
			zap.Int("successes", report.Successes),
		)
		if !opts.allowFailures {
			return errors.New(failureSummary(report))
		}
	}
	return nil
}

func parseDates(raw []string) ([]time.Time, error) {
	days := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		day, err := harvest.ParseRunDate(r)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

// selectSeasons resolves the requested seasons, defaulting to every
// configured season.
func selectSeasons(seasons []int, table map[int]harvest.SeasonRange) ([]harvest.SeasonRange, error) {
	if len(seasons) == 0 {
		for season := range table {
			seasons = append(seasons, season)
		}
		sort.Ints(seasons)
	}
	return harvest.SelectSeasons(table, seasons)
}

func failureSummary(report backfill.Report) string {
	dates := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		dates = append(dates, f.RunDate)
	}
	return fmt.Sprintf("%d of %d dates failed: %v",
		len(report.Failures), len(report.Failures)+report.Successes, dates)
}
