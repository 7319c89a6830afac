// Package backfill drives the page fetcher over many dates, one at a time,
// with a courtesy delay between requests and per-date fault isolation.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/clock/system"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/metrics"
)

// DefaultDelay is the pause between consecutive dates.
const DefaultDelay = 2 * time.Second

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// timeOrderedIDs issues UUIDv7 run IDs, so runs sort by start time.
type timeOrderedIDs struct{}

func (timeOrderedIDs) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// Config controls Runner behavior.
type Config struct {
	// Delay between consecutive dates. Values below DefaultDelay are raised
	// to it; the source host must never see dates closer together.
	Delay time.Duration
}

// Failure is one date that could not be scraped or saved.
type Failure struct {
	RunDate string `json:"runDate"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// Report summarizes a run.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Successes  int       `json:"successes"`
	Failures   []Failure `json:"failures"`
	// Remaining counts dates never attempted because the run was canceled.
	Remaining int `json:"remaining"`
}

// Failed reports whether any date failed.
func (r Report) Failed() bool {
	return len(r.Failures) > 0
}

// Option customizes a Runner.
type Option func(*Runner)

// WithArchive keeps each rendered page before its record is saved.
func WithArchive(a harvest.Archive) Option {
	return func(r *Runner) { r.archive = a }
}

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(c harvest.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithOnSaved registers a callback invoked after each successful save.
func WithOnSaved(fn func(harvest.DailyHarvestRecord)) Option {
	return func(r *Runner) { r.onSaved = fn }
}

// WithSleep replaces how the runner waits out the delay between dates. The
// wait must honor ctx; tests use it to avoid real pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// Runner processes dates strictly sequentially.
type Runner struct {
	fetcher harvest.Fetcher
	store   harvest.Store
	archive harvest.Archive
	clock   harvest.Clock
	ids     IDGenerator
	logger  *zap.Logger
	cfg     Config
	onSaved func(harvest.DailyHarvestRecord)
	sleep   func(context.Context, time.Duration) error
}

// New constructs a Runner.
func New(fetcher harvest.Fetcher, store harvest.Store, cfg Config, opts ...Option) (*Runner, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Delay < DefaultDelay {
		cfg.Delay = DefaultDelay
	}
	r := &Runner{
		fetcher: fetcher,
		store:   store,
		clock:   system.New(),
		ids:     timeOrderedIDs{},
		logger:  zap.NewNop(),
		cfg:     cfg,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunSeasons enumerates every date of each season and runs them in season order.
func (r *Runner) RunSeasons(ctx context.Context, seasons []harvest.SeasonRange) (Report, error) {
	var days []time.Time
	for _, s := range seasons {
		days = append(days, s.Dates()...)
	}
	return r.Run(ctx, days)
}

// Run scrapes and saves each day in the given order. A failed date is
// recorded and the run moves on. When ctx is canceled the run stops and
// returns the partial report together with ctx.Err().
func (r *Runner) Run(ctx context.Context, days []time.Time) (Report, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: runID, StartedAt: r.clock.Now(), Failures: []Failure{}}
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("backfill started", zap.Int("dates", len(days)), zap.Duration("delay", r.cfg.Delay))

	finish := func(err error) (Report, error) {
		report.FinishedAt = r.clock.Now()
		fields := []zap.Field{
			zap.Int("successes", report.Successes),
			zap.Int("failures", len(report.Failures)),
			zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		}
		if err != nil {
			logger.Warn("backfill interrupted", append(fields, zap.Int("remaining", report.Remaining), zap.Error(err))...)
			return report, err
		}
		logger.Info("backfill finished", fields...)
		return report, nil
	}

	for i, day := range days {
		if i > 0 {
			if err := r.sleep(ctx, r.cfg.Delay); err != nil {
				report.Remaining = len(days) - i
				return finish(err)
			}
		}
		if err := ctx.Err(); err != nil {
			report.Remaining = len(days) - i
			return finish(err)
		}

		runDate := harvest.FormatRunDate(day)
		if _, err := r.RunOne(ctx, day); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Remaining = len(days) - i
				return finish(ctxErr)
			}
			metrics.ObserveDate("failure")
			logger.Error("date failed", zap.String("run_date", runDate), zap.Error(err))
			report.Failures = append(report.Failures, Failure{RunDate: runDate, Err: err, Message: err.Error()})
			continue
		}
		metrics.ObserveDate("success")
		report.Successes++
		logger.Info("date saved", zap.String("run_date", runDate), zap.Int("index", i+1), zap.Int("of", len(days)))
	}
	return finish(nil)
}

// RunOne scrapes, archives and saves a single day, returning any error
// directly.
func (r *Runner) RunOne(ctx context.Context, day time.Time) (harvest.DailyHarvestRecord, error) {
	res, err := r.fetcher.Fetch(ctx, day)
	if err != nil {
		return harvest.DailyHarvestRecord{}, err
	}
	rec := res.Record
	r.archivePage(ctx, rec, res.HTML)
	if err := r.store.Save(ctx, rec); err != nil {
		return harvest.DailyHarvestRecord{}, fmt.Errorf("persist: %w", err)
	}
	if r.onSaved != nil {
		r.onSaved(rec)
	}
	return rec, nil
}

func (r *Runner) archivePage(ctx context.Context, rec harvest.DailyHarvestRecord, html string) {
	if r.archive == nil || html == "" {
		return
	}
	uri, err := r.archive.PutPage(ctx, rec, html)
	if err != nil {
		r.logger.Warn("archive page failed", zap.String("run_date", rec.RunDate), zap.Error(err))
		return
	}
	r.logger.Debug("page archived", zap.String("run_date", rec.RunDate), zap.String("uri", uri))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
