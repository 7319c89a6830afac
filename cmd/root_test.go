package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/app"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/backfill"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/config"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// fakeFetcher builds a small record for any day and fails on the listed dates.
type fakeFetcher struct {
	fail map[string]bool
}

func (f fakeFetcher) Fetch(_ context.Context, day time.Time) (harvest.FetchResult, error) {
	runDate := harvest.FormatRunDate(day)
	if f.fail[runDate] {
		return harvest.FetchResult{}, &harvest.ExtractError{RunDate: runDate, Step: harvest.StepNavigate, Err: harvest.ErrNavigationTimeout}
	}
	rec := harvest.NewRecord(day, time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC))
	rec.TotalRunSummary.CatchDaily = float64(day.Day()) * 1000
	rec.AddDistrict(harvest.DistrictObservation{ID: "NAK", Name: "Naknek-Kvichak", CatchDaily: float64(day.Day())})
	rec.AddRiver(harvest.RiverObservation{Name: "Kvichak", EscapementDaily: 42})
	rec.SockeyePerDelivery["NAK"] = 5.5
	return harvest.FetchResult{Record: rec, HTML: "<html>" + runDate + "</html>"}, nil
}

const testConfig = `
storage:
  driver: sqlite
  sqlite_path: %s
archive:
  driver: memory
backfill:
  delay_seconds: 2
  seasons:
    "2024":
      start: "06-10-2024"
      end: "06-12-2024"
    "2023":
      start: "06-12-2023"
      end: "06-13-2023"
logging:
  development: false
  level: error
`

// harness runs the CLI against one sqlite file with the fetcher swapped out.
type harness struct {
	t       *testing.T
	cfgPath string
	fetcher harvest.Fetcher

	mu     sync.Mutex
	delays []time.Duration
}

// sleep records the pacing delay instead of waiting it out.
func (h *harness) sleep(ctx context.Context, d time.Duration) error {
	h.mu.Lock()
	h.delays = append(h.delays, d)
	h.mu.Unlock()
	return ctx.Err()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harvest.yaml")
	body := fmt.Sprintf(testConfig, filepath.Join(dir, "harvest.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	h := &harness{t: t, cfgPath: cfgPath, fetcher: fakeFetcher{}}
	prev := newApp
	newApp = func(ctx context.Context, cfg config.Config, _ *zap.Logger) (*app.App, error) {
		a, err := app.New(ctx, cfg, zap.NewNop())
		if err != nil {
			return nil, err
		}
		a.SetFetcher(h.fetcher)
		a.RunnerOptions = append(a.RunnerOptions, backfill.WithSleep(h.sleep))
		return a, nil
	}
	t.Cleanup(func() { newApp = prev })
	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := execute(context.Background(), root)
	return out.String(), err
}

func TestScrapeThenShow(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("scrape", "--date", "06-18-2024")
	require.NoError(t, err)
	var scraped harvest.DailyHarvestRecord
	require.NoError(t, json.Unmarshal([]byte(out), &scraped))
	assert.Equal(t, "06-18-2024", scraped.RunDate)

	out, err = h.run("show", "--date", "06-18-2024")
	require.NoError(t, err)
	var shown harvest.DailyHarvestRecord
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 2024, shown.Season)
	assert.Equal(t, 18000.0, shown.TotalRunSummary.CatchDaily)
	require.Len(t, shown.Districts, 1)
	assert.Equal(t, "NAK", shown.Districts[0].ID)
	assert.Equal(t, map[string]float64{"NAK": 5.5}, shown.SockeyePerDelivery)
}

func TestScrapeSurfacesFetchError(t *testing.T) {
	h := newHarness(t)
	h.fetcher = fakeFetcher{fail: map[string]bool{"06-18-2024": true}}

	_, err := h.run("scrape", "--date", "06-18-2024")
	require.Error(t, err)
	assert.True(t, errors.Is(err, harvest.ErrNavigationTimeout))
}

func TestShowMissingDate(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("show", "--date", "07-04-2024")
	require.Error(t, err)
	assert.True(t, errors.Is(err, harvest.ErrNotFound))
}

func TestShowRejectsMalformedDate(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("show", "--date", "2024-06-18")
	require.Error(t, err)
}

func TestBackfillSeasonsThenRead(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("backfill", "--season", "2024", "--season", "2023")
	require.NoError(t, err)
	var report backfill.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 5, report.Successes)
	assert.Empty(t, report.Failures)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, h.delays)

	out, err = h.run("seasons")
	require.NoError(t, err)
	var seasons []int
	require.NoError(t, json.Unmarshal([]byte(out), &seasons))
	assert.Equal(t, []int{2024, 2023}, seasons)

	out, err = h.run("dates")
	require.NoError(t, err)
	var dates []string
	require.NoError(t, json.Unmarshal([]byte(out), &dates))
	assert.Equal(t, []string{"06-12-2024", "06-11-2024", "06-10-2024", "06-13-2023", "06-12-2023"}, dates)

	out, err = h.run("dates", "--season", "2024")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &dates))
	assert.Equal(t, []string{"06-10-2024", "06-11-2024", "06-12-2024"}, dates)

	out, err = h.run("range", "--start", "06-11-2024", "--end", "06-12-2024")
	require.NoError(t, err)
	var recs []harvest.DailyHarvestRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "06-11-2024", recs[0].RunDate)
	assert.Equal(t, "06-12-2024", recs[1].RunDate)

	out, err = h.run("latest")
	require.NoError(t, err)
	var latest harvest.DailyHarvestRecord
	require.NoError(t, json.Unmarshal([]byte(out), &latest))
	assert.Equal(t, "06-12-2024", latest.RunDate)
}

func TestBackfillDefaultsToAllConfiguredSeasons(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("backfill")
	require.NoError(t, err)
	var report backfill.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Greater(t, report.Successes, 5)
	assert.Empty(t, report.Failures)

	out, err = h.run("seasons")
	require.NoError(t, err)
	var seasons []int
	require.NoError(t, json.Unmarshal([]byte(out), &seasons))
	assert.Equal(t, []int{2025, 2024, 2023, 2022}, seasons)
}

func TestBackfillUnknownSeason(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("backfill", "--season", "1999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1999")
}

func TestBackfillExplicitDatesWithFailures(t *testing.T) {
	h := newHarness(t)
	h.fetcher = fakeFetcher{fail: map[string]bool{"07-01-2023": true}}

	out, err := h.run("backfill", "--date", "06-18-2024", "--date", "07-01-2023")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "07-01-2023")
	var report backfill.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Successes)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "07-01-2023", report.Failures[0].RunDate)

	_, err = h.run("backfill", "--allow-failures", "--date", "07-01-2023")
	require.NoError(t, err)
}

func TestBackfillRejectsBothModes(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("backfill", "--season", "2024", "--date", "06-18-2024")
	require.Error(t, err)
}

func TestRangeRejectsInvertedBounds(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("range", "--start", "06-12-2024", "--end", "06-10-2024")
	require.Error(t, err)
}

func TestLatestOnEmptyStore(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records")
}

func TestInvalidConfigFailsBeforeRunning(t *testing.T) {
	h := newHarness(t)
	t.Setenv("HARVEST_STORAGE_DRIVER", "mysql")

	_, err := h.run("seasons")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}
