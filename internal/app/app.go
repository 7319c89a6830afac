// Package app holds the long-lived services shared by the CLI commands.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/archive"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/backfill"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/clock/system"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/config"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/latest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/storage"
)

// SourceLocation is the time zone the source publishes its run dates in.
const SourceLocation = "America/Anchorage"

// App is the dependency container built once per command invocation.
// The browser is started lazily so read-only commands never launch it.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Store   storage.Store
	Archive harvest.Archive
	Clock   *system.Clock
	Seasons map[int]harvest.SeasonRange
	// RunnerOptions are applied to every runner the app builds.
	RunnerOptions []backfill.Option

	closeArchive func() error

	mu         sync.Mutex
	session    *headless.Session
	fetcher    harvest.Fetcher
	newFetcher func() (harvest.Fetcher, error)
}

// New opens the store and archive described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seasons, err := cfg.Seasons()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.StorageOptions(), logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	arch, closeArchive, err := archive.Open(ctx, cfg.ArchiveOptions(), logger.Named("archive"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a := &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Archive:      arch,
		Clock:        system.New(),
		Seasons:      seasons,
		closeArchive: closeArchive,
	}
	a.newFetcher = a.startBrowser
	return a, nil
}

// SetFetcher replaces the browser-backed fetcher, primarily for tests.
func (a *App) SetFetcher(f harvest.Fetcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetcher = f
}

// Fetcher returns the page fetcher, starting the shared browser session on
// first use.
func (a *App) Fetcher() (harvest.Fetcher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetcher != nil {
		return a.fetcher, nil
	}
	f, err := a.newFetcher()
	if err != nil {
		return nil, err
	}
	a.fetcher = f
	return f, nil
}

// startBrowser opens one session for the whole command. The fetcher borrows
// it, so pages across many dates reuse the same browser.
func (a *App) startBrowser() (harvest.Fetcher, error) {
	session, err := headless.NewSession(headless.SessionConfig{
		UserAgent: a.Config.Source.UserAgent,
		Headful:   a.Config.Headless.Headful,
	})
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	f, err := headless.New(a.Config.FetcherConfig(),
		headless.WithSession(session),
		headless.WithLimiter(ratelimit.New(a.Config.RateLimit())),
		headless.WithClock(a.Clock),
		headless.WithLogger(a.Logger.Named("fetcher")),
	)
	if err != nil {
		session.Close()
		return nil, err
	}
	a.session = session
	return f, nil
}

// Runner builds a backfill runner over the app's fetcher, store and archive.
func (a *App) Runner(opts ...backfill.Option) (*backfill.Runner, error) {
	f, err := a.Fetcher()
	if err != nil {
		return nil, err
	}
	base := []backfill.Option{
		backfill.WithArchive(a.Archive),
		backfill.WithLogger(a.Logger.Named("backfill")),
		backfill.WithClock(a.Clock),
	}
	base = append(base, a.RunnerOptions...)
	return backfill.New(f, a.Store, backfill.Config{
		Delay: a.Config.BackfillDelay(),
	}, append(base, opts...)...)
}

// LatestCache builds a latest-record cache that refreshes from the store.
func (a *App) LatestCache() (*latest.Cache, error) {
	return latest.New(a.Config.CacheTTL(), a.Store.Latest,
		latest.WithClock(a.Clock),
		latest.WithLogger(a.Logger.Named("latest")),
	)
}

// Today is the current calendar day at the source.
func (a *App) Today() time.Time {
	loc, err := time.LoadLocation(SourceLocation)
	if err != nil {
		loc = time.UTC
	}
	return a.Clock.Today(loc)
}

// Close shuts down the browser, archive and store.
func (a *App) Close() {
	a.mu.Lock()
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	a.mu.Unlock()
	if a.closeArchive != nil {
		if err := a.closeArchive(); err != nil {
			a.Logger.Warn("error closing archive", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("error closing store", zap.Error(err))
	}
	// Sync fails on stderr-backed loggers on some platforms; nothing to do then.
	_ = a.Logger.Sync()
}
