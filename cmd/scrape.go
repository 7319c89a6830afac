package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

func newScrapeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape and store a single run date",
		Long: `Scrapes one run date and prints the stored record. Unlike backfill, a
failure is returned directly. --date defaults to today in Alaska time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var day time.Time
			if date == "" {
				day = a.Today()
			} else if day, err = harvest.ParseRunDate(date); err != nil {
				return err
			}
			runner, err := a.Runner()
			if err != nil {
				return err
			}
			rec, err := runner.RunOne(cmd.Context(), day)
			if err != nil {
				return err
			}
			return writeJSON(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date MM-DD-YYYY (default today)")
	return cmd
}
