// Package cmd defines the harvest command line.
//
// Architecture overview:
//   - Fetch: internal/fetcher/headless drives the ADF&G Bristol Bay inseason
//     page in one shared Chrome session. Each date selects the run date in the
//     form, submits it, waits for the network to go quiet plus a settle delay,
//     and hands the rendered HTML to internal/extract.
//   - Extract: goquery walks the page's tables, classifies each one by its
//     headers and folds the rows into a harvest.DailyHarvestRecord.
//   - Persist: the record is saved in a single transaction to SQLite or
//     Postgres (storage.driver). Re-scraping a date replaces it completely.
//     The rendered page is optionally archived to disk or GCS first.
//   - Orchestrate: internal/backfill walks dates strictly one at a time with a
//     fixed pause between them. A failed date is recorded and skipped. SIGINT
//     stops the run between dates and prints the partial report.
//   - Daemon: robfig/cron scrapes today's date during the season and primes the
//     latest-record cache. A chi server exposes /healthz, /readyz and /metrics.
//
// Configuration comes from an optional YAML file (--config) and HARVEST_*
// environment variables, e.g. HARVEST_STORAGE_DRIVER=postgres,
// HARVEST_STORAGE_POSTGRES_DSN, HARVEST_ARCHIVE_DRIVER=gcs,
// HARVEST_ARCHIVE_GCS_BUCKET, HARVEST_DAEMON_SCHEDULE.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/app"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/config"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// appHolder carries the App built by the root command back to the caller,
// which closes it once the command returns, whether or not it failed.
type appHolder struct {
	app *app.App
}

func (h *appHolder) close() {
	if h.app != nil {
		h.app.Close()
		h.app = nil
	}
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = app.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Scrape and store Bristol Bay daily salmon harvest statistics.",
		Long: `harvest drives the ADF&G Bristol Bay inseason harvest page in a headless
browser, normalizes each day's catch, escapement and sockeye tables, and
stores one record per run date for the dashboard to read.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before every subcommand: build the services once and hand
		// them down through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LoggingOptions())
			if err != nil {
				return err
			}
			holder, ok := cmd.Context().Value(appKey).(*appHolder)
			if !ok {
				return errors.New("command context carries no app holder")
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			holder.app = appInstance
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); HARVEST_* env vars override it")

	cmd.AddCommand(
		newBackfillCmd(),
		newScrapeCmd(),
		newShowCmd(),
		newSeasonsCmd(),
		newDatesCmd(),
		newRangeCmd(),
		newLatestCmd(),
		newDaemonCmd(),
	)
	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := execute(ctx, newRootCmd())
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs root and closes whatever services the command opened.
func execute(ctx context.Context, root *cobra.Command) error {
	holder := &appHolder{}
	defer holder.close()
	return root.ExecuteContext(context.WithValue(ctx, appKey, holder))
}

func resolveApp(ctx context.Context) (*app.App, error) {
	holder, ok := ctx.Value(appKey).(*appHolder)
	if !ok || holder.app == nil {
		return nil, errors.New("application services not initialized")
	}
	return holder.app, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
