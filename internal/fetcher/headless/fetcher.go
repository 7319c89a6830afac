package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/clock/system"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/extract"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/metrics"
)

// Config describes the source page and the time budget of each step.
type Config struct {
	URL            string
	DateSelector   string
	SubmitSelector string
	UserAgent      string

	NavigationTimeout time.Duration
	ControlTimeout    time.Duration
	IdleTimeout       time.Duration
	IdleQuiet         time.Duration
	// Settle is the fixed pause after submit for DOM updates that happen
	// after the network has gone quiet.
	Settle time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 15 * time.Second
	}
	if c.IdleQuiet <= 0 {
		c.IdleQuiet = 500 * time.Millisecond
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
}

// Waiter paces navigations to the source host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSession makes the fetcher reuse a caller-managed session. The fetcher
// never closes it.
func WithSession(s *Session) Option {
	return func(f *Fetcher) { f.session = s }
}

// WithLimiter paces navigations.
func WithLimiter(w Waiter) Option {
	return func(f *Fetcher) { f.limiter = w }
}

// WithClock overrides the clock used for ScrapedAt.
func WithClock(c harvest.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// Fetcher implements harvest.Fetcher against the live page.
type Fetcher struct {
	cfg     Config
	session *Session
	limiter Waiter
	clock   harvest.Clock
	logger  *zap.Logger

	openSession func() (*Session, error)
	openPage    func(*Session) (page, func(), error)
	sleep       func(context.Context, time.Duration) error
}

// New builds a Fetcher. Without WithSession each Fetch launches and tears
// down its own browser.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source url is required")
	}
	if cfg.DateSelector == "" || cfg.SubmitSelector == "" {
		return nil, fmt.Errorf("date and submit selectors are required")
	}
	cfg.applyDefaults()
	f := &Fetcher{
		cfg:    cfg,
		clock:  system.New(),
		logger: zap.NewNop(),
		openSession: func() (*Session, error) {
			return NewSession(SessionConfig{UserAgent: cfg.UserAgent})
		},
		openPage: func(s *Session) (page, func(), error) {
			return openChromedpPage(s, cfg.UserAgent)
		},
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch extracts the record for day. No partial record is ever returned.
func (f *Fetcher) Fetch(ctx context.Context, day time.Time) (harvest.FetchResult, error) {
	day = harvest.Midnight(day)
	runDate := harvest.FormatRunDate(day)
	start := time.Now()

	result, err := f.fetch(ctx, day)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ObserveExtract(status, time.Since(start))
	if err != nil {
		f.logger.Warn("extraction failed", zap.String("run_date", runDate), zap.Error(err))
		return harvest.FetchResult{}, err
	}
	f.logger.Debug("extraction finished",
		zap.String("run_date", runDate),
		zap.Int("districts", len(result.Record.Districts)),
		zap.Int("rivers", len(result.Record.Rivers)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, day time.Time) (harvest.FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, f.cfg.URL); err != nil {
			return harvest.FetchResult{}, err
		}
	}

	session := f.session
	if session == nil {
		owned, err := f.openSession()
		if err != nil {
			return harvest.FetchResult{}, fmt.Errorf("open browser session: %w", err)
		}
		defer owned.Close()
		session = owned
	}

	p, closeTab, err := f.openPage(session)
	if err != nil {
		return harvest.FetchResult{}, fmt.Errorf("open page: %w", err)
	}
	defer closeTab()

	return f.drive(ctx, p, day)
}

// drive runs the page protocol: navigate, locate the date control, select
// the date, submit, settle, extract.
func (f *Fetcher) drive(ctx context.Context, p page, day time.Time) (harvest.FetchResult, error) {
	runDate := harvest.FormatRunDate(day)
	fail := func(step harvest.Step, err error) (harvest.FetchResult, error) {
		return harvest.FetchResult{}, &harvest.ExtractError{RunDate: runDate, Step: step, Err: err}
	}

	err := f.withTimeout(ctx, f.cfg.NavigationTimeout, func(stepCtx context.Context) error {
		if err := p.Navigate(stepCtx, f.cfg.URL); err != nil {
			return err
		}
		return p.WaitIdle(stepCtx, f.cfg.IdleQuiet)
	})
	if err != nil {
		return fail(harvest.StepNavigate, classify(ctx, err, harvest.ErrNavigationTimeout))
	}

	err = f.withTimeout(ctx, f.cfg.ControlTimeout, func(stepCtx context.Context) error {
		return p.WaitPresent(stepCtx, f.cfg.DateSelector)
	})
	if err != nil {
		return fail(harvest.StepLocateControl, classify(ctx, err, harvest.ErrControlNotFound))
	}

	err = f.withTimeout(ctx, f.cfg.ControlTimeout, func(stepCtx context.Context) error {
		return p.SetValue(stepCtx, f.cfg.DateSelector, runDate)
	})
	if err != nil {
		return fail(harvest.StepSelectDate, classify(ctx, err, harvest.ErrControlNotFound))
	}

	err = f.withTimeout(ctx, f.cfg.ControlTimeout, func(stepCtx context.Context) error {
		return p.WaitPresent(stepCtx, f.cfg.SubmitSelector)
	})
	if err != nil {
		return fail(harvest.StepSubmit, classify(ctx, err, harvest.ErrSubmitControlNotFound))
	}

	err = f.withTimeout(ctx, f.cfg.IdleTimeout, func(stepCtx context.Context) error {
		p.MarkActivity()
		g, gctx := errgroup.WithContext(stepCtx)
		g.Go(func() error {
			if err := p.Click(gctx, f.cfg.SubmitSelector); err != nil {
				return fmt.Errorf("click submit: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if err := p.WaitIdle(gctx, f.cfg.IdleQuiet); err != nil {
				return fmt.Errorf("wait for network idle: %w", err)
			}
			return nil
		})
		return g.Wait()
	})
	if err != nil {
		return fail(harvest.StepSubmit, classify(ctx, err, harvest.ErrNavigationTimeout))
	}

	if err := f.sleep(ctx, f.cfg.Settle); err != nil {
		return fail(harvest.StepSettle, err)
	}

	var html string
	err = f.withTimeout(ctx, f.cfg.ControlTimeout, func(stepCtx context.Context) error {
		var err error
		html, err = p.HTML(stepCtx)
		return err
	})
	if err != nil {
		return fail(harvest.StepExtract, err)
	}

	rec, summary, err := extract.ParseHTML(html, day, f.clock.Now())
	if err != nil {
		return fail(harvest.StepExtract, err)
	}
	if summary.Tables[extract.CatchEscapement] == 0 {
		f.logger.Info("no catch/escapement table rendered", zap.String("run_date", runDate))
	}
	return harvest.FetchResult{Record: rec, HTML: html}, nil
}

func (f *Fetcher) withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(stepCtx)
}

// classify maps a step's deadline expiry to the typed failure for that step.
// Cancellation of the caller's own context is passed through untouched.
func classify(parent context.Context, err error, onTimeout error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", onTimeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

