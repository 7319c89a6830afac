package latest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func record(runDate string) harvest.DailyHarvestRecord {
	return harvest.DailyHarvestRecord{RunDate: runDate}
}

func TestGetServesFreshValueWithoutRefresh(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	cache, err := New(time.Minute, func(context.Context) (harvest.DailyHarvestRecord, error) {
		calls.Add(1)
		return record("07-01-2024"), nil
	}, WithClock(clock))
	require.NoError(t, err)

	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "07-01-2024", res.Record.RunDate)
	require.False(t, res.Stale)

	clock.advance(59 * time.Second)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	clock.advance(time.Second)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestGetFallsBackToStaleValue(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)}
	fail := false
	cache, err := New(time.Minute, func(context.Context) (harvest.DailyHarvestRecord, error) {
		if fail {
			return harvest.DailyHarvestRecord{}, errors.New("page unavailable")
		}
		return record("07-01-2024"), nil
	}, WithClock(clock))
	require.NoError(t, err)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)

	fail = true
	clock.advance(2 * time.Minute)
	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.True(t, res.Stale)
	require.Equal(t, "07-01-2024", res.Record.RunDate)
	require.Equal(t, first.FetchedAt, res.FetchedAt)
}

func TestGetWithoutValueReturnsRefreshError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	cache, err := New(time.Minute, func(context.Context) (harvest.DailyHarvestRecord, error) {
		return harvest.DailyHarvestRecord{}, boom
	})
	require.NoError(t, err)

	_, err = cache.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSetAndInvalidate(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	cache, err := New(time.Hour, func(context.Context) (harvest.DailyHarvestRecord, error) {
		calls.Add(1)
		return record("07-02-2024"), nil
	}, WithClock(clock))
	require.NoError(t, err)

	cache.Set(record("07-01-2024"))
	res, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "07-01-2024", res.Record.RunDate)
	require.Zero(t, calls.Load())

	cache.Invalidate()
	res, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "07-02-2024", res.Record.RunDate)
	require.Equal(t, int32(1), calls.Load())
}

func TestConcurrentGetsShareOneRefresh(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	release := make(chan struct{})
	cache, err := New(time.Hour, func(context.Context) (harvest.DailyHarvestRecord, error) {
		calls.Add(1)
		<-release
		return record("07-01-2024"), nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background())
			require.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	_, err := New(0, func(context.Context) (harvest.DailyHarvestRecord, error) { return harvest.DailyHarvestRecord{}, nil })
	require.Error(t, err)
	_, err = New(time.Minute, nil)
	require.Error(t, err)
}
