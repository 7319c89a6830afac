package cmd

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/app"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/config"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/latest"
)

// countingFetcher counts calls before delegating.
type countingFetcher struct {
	harvest.Fetcher
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, day time.Time) (harvest.FetchResult, error) {
	f.calls.Add(1)
	return f.Fetcher.Fetch(ctx, day)
}

// app loads the harness config and builds an app through newApp.
func (h *harness) app() *app.App {
	h.t.Helper()
	cfg, err := config.Load(h.cfgPath)
	require.NoError(h.t, err)
	a, err := newApp(context.Background(), cfg, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(a.Close)
	return a
}

func countingCache(t *testing.T, refreshes *atomic.Int32) *latest.Cache {
	t.Helper()
	cache, err := latest.New(time.Hour, func(context.Context) (harvest.DailyHarvestRecord, error) {
		refreshes.Add(1)
		return harvest.DailyHarvestRecord{}, harvest.ErrNotFound
	})
	require.NoError(t, err)
	return cache
}

func fixedDay(t *testing.T, runDate string) func() time.Time {
	t.Helper()
	day, err := harvest.ParseRunDate(runDate)
	require.NoError(t, err)
	return func() time.Time { return day }
}

func TestDailyScrapeSkipsOutOfSeasonDay(t *testing.T) {
	h := newHarness(t)
	fetcher := &countingFetcher{Fetcher: fakeFetcher{}}
	h.fetcher = fetcher
	a := h.app()

	var refreshes atomic.Int32
	job, err := newDailyScrape(a, countingCache(t, &refreshes))
	require.NoError(t, err)
	job.today = fixedDay(t, "07-01-2024")

	require.NoError(t, job.run(context.Background()))
	assert.Zero(t, fetcher.calls.Load())
	_, err = a.Store.Get(context.Background(), "07-01-2024")
	assert.ErrorIs(t, err, harvest.ErrNotFound)
	assert.Empty(t, h.delays)
}

func TestDailyScrapeSavesAndPrimesCache(t *testing.T) {
	h := newHarness(t)
	fetcher := &countingFetcher{Fetcher: fakeFetcher{}}
	h.fetcher = fetcher
	a := h.app()

	var refreshes atomic.Int32
	cache := countingCache(t, &refreshes)
	job, err := newDailyScrape(a, cache)
	require.NoError(t, err)
	job.today = fixedDay(t, "06-11-2024")

	require.NoError(t, job.run(context.Background()))
	assert.EqualValues(t, 1, fetcher.calls.Load())

	stored, err := a.Store.Get(context.Background(), "06-11-2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, stored.Season)

	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "06-11-2024", res.Record.RunDate)
	assert.False(t, res.Stale)
	assert.Zero(t, refreshes.Load(), "a primed cache must not reload from the store")
}

func TestDailyScrapeReturnsFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher = fakeFetcher{fail: map[string]bool{"06-12-2024": true}}
	a := h.app()

	var refreshes atomic.Int32
	cache := countingCache(t, &refreshes)
	job, err := newDailyScrape(a, cache)
	require.NoError(t, err)
	job.today = fixedDay(t, "06-12-2024")

	require.ErrorIs(t, job.run(context.Background()), harvest.ErrNavigationTimeout)
	_, err = cache.Get(context.Background())
	require.ErrorIs(t, err, harvest.ErrNotFound)
}

func TestRunDaemonReturnsWhenCanceled(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a.Config.Daemon.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runDaemon(ctx, a, true) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runDaemon did not return after cancellation")
	}
}

func TestRunDaemonRejectsBadSchedule(t *testing.T) {
	h := newHarness(t)
	a := h.app()
	a.Config.Daemon.Schedule = "not a schedule"

	err := runDaemon(context.Background(), a, false)
	require.ErrorContains(t, err, "scrape-today")
}
