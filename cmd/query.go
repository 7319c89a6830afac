package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

func newShowCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored record for a run date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			day, err := harvest.ParseRunDate(date)
			if err != nil {
				return err
			}
			rec, err := a.Store.Get(cmd.Context(), harvest.FormatRunDate(day))
			if err != nil {
				return fmt.Errorf("show %s: %w", date, err)
			}
			return writeJSON(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "run date MM-DD-YYYY")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func newSeasonsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seasons",
		Short: "List seasons with stored records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			seasons, err := a.Store.ListSeasons(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, seasons)
		},
	}
}

func newDatesCmd() *cobra.Command {
	var season int
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List stored run dates",
		Long: `Without --season lists every stored run date, newest first. With
--season lists that season's dates in calendar order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var dates []string
			if season == 0 {
				dates, err = a.Store.ListDates(cmd.Context(), 0)
			} else {
				dates, err = a.Store.SeasonDates(cmd.Context(), season)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, dates)
		},
	}
	cmd.Flags().IntVar(&season, "season", 0, "season year")
	return cmd
}

func newRangeCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print stored records between two run dates, inclusive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			from, err := harvest.ParseRunDate(start)
			if err != nil {
				return err
			}
			to, err := harvest.ParseRunDate(end)
			if err != nil {
				return err
			}
			if to.Before(from) {
				return fmt.Errorf("--end %s is before --start %s", end, start)
			}
			recs, err := a.Store.Range(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return writeJSON(cmd, recs)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first run date MM-DD-YYYY")
	cmd.Flags().StringVar(&end, "end", "", "last run date MM-DD-YYYY")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cache, err := a.LatestCache()
			if err != nil {
				return err
			}
			res, err := cache.Get(cmd.Context())
			if errors.Is(err, harvest.ErrNotFound) {
				return errors.New("no records stored yet")
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd, res.Record)
		},
	}
}
