package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/api"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/app"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/backfill"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/latest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

func newDaemonCmd() *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scrape today's date on a schedule and serve health and metrics",
		Long: `Runs until SIGINT or SIGTERM. On every daemon.schedule tick, when today
(Alaska time) falls inside a configured season, today's date is scraped and
stored, and the latest-record cache is primed with it. A tick that arrives
while the previous scrape is still running is skipped. /healthz, /readyz and
/metrics are served on daemon.addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), a, runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "scrape once at startup before the first tick")
	return cmd
}

func runDaemon(ctx context.Context, a *app.App, runNow bool) error {
	logger := a.Logger.Named("daemon")
	loc, err := time.LoadLocation(app.SourceLocation)
	if err != nil {
		return fmt.Errorf("load location: %w", err)
	}

	cache, err := a.LatestCache()
	if err != nil {
		return err
	}
	job, err := newDailyScrape(a, cache)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	sched := schedule.New(loc, logger)
	if err := sched.Add(gctx, "scrape-today", a.Config.Daemon.Schedule, job.run); err != nil {
		return err
	}
	if runNow {
		if err := job.run(ctx); err != nil {
			logger.Error("startup scrape failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              a.Config.Daemon.Addr,
		Handler:           api.NewServer(a.Store, cache, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("scheduler started", zap.String("schedule", a.Config.Daemon.Schedule))
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// dailyScrape is the scheduled job: scrape today when it falls inside a
// configured season and prime the latest cache with what was saved.
type dailyScrape struct {
	today   func() time.Time
	seasons map[int]harvest.SeasonRange
	runner  *backfill.Runner
	logger  *zap.Logger
}

func newDailyScrape(a *app.App, cache *latest.Cache) (*dailyScrape, error) {
	runner, err := a.Runner(backfill.WithOnSaved(func(rec harvest.DailyHarvestRecord) {
		cache.Set(rec)
	}))
	if err != nil {
		return nil, err
	}
	return &dailyScrape{
		today:   a.Today,
		seasons: a.Seasons,
		runner:  runner,
		logger:  a.Logger.Named("daemon"),
	}, nil
}

func (j *dailyScrape) run(ctx context.Context) error {
	day := j.today()
	if !harvest.InSeason(j.seasons, day) {
		j.logger.Debug("out of season, skipping", zap.String("run_date", harvest.FormatRunDate(day)))
		return nil
	}
	rec, err := j.runner.RunOne(ctx, day)
	if err != nil {
		return err
	}
	j.logger.Info("scraped today", zap.String("run_date", rec.RunDate), zap.Int("season", rec.Season))
	return nil
}
