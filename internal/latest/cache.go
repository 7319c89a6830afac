// Package latest caches the most recent harvest record behind a TTL.
//
// The cache holds a single slot. A read older than the TTL triggers a
// refresh; when the refresh fails and a value is held, the stale value is
// returned instead of the error.
package latest

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/clock/system"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/metrics"
)

// Refresher produces a fresh record.
type Refresher func(ctx context.Context) (harvest.DailyHarvestRecord, error)

// Result is a cached record and when it was obtained.
type Result struct {
	Record    harvest.DailyHarvestRecord
	FetchedAt time.Time
	// Stale is set when the last refresh failed and an older value was served.
	Stale bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(clock harvest.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used for refresh failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache is a single-slot TTL cache.
type Cache struct {
	ttl     time.Duration
	refresh Refresher
	clock   harvest.Clock
	logger  *zap.Logger
	group   singleflight.Group

	mu        sync.RWMutex
	rec       harvest.DailyHarvestRecord
	fetchedAt time.Time
	held      bool
}

// New builds a cache. ttl must be positive.
func New(ttl time.Duration, refresh Refresher, opts ...Option) (*Cache, error) {
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be > 0")
	}
	if refresh == nil {
		return nil, errors.New("refresher is required")
	}
	c := &Cache{
		ttl:     ttl,
		refresh: refresh,
		clock:   system.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached record, refreshing it first when it has expired.
// Concurrent callers share a single refresh.
func (c *Cache) Get(ctx context.Context) (Result, error) {
	if res, ok := c.fresh(); ok {
		metrics.ObserveCacheRefresh("hit")
		return res, nil
	}

	v, err, _ := c.group.Do("latest", func() (any, error) {
		if res, ok := c.fresh(); ok {
			return res, nil
		}
		rec, err := c.refresh(ctx)
		if err != nil {
			return nil, err
		}
		return c.Set(rec), nil
	})
	if err == nil {
		metrics.ObserveCacheRefresh("ok")
		return v.(Result), nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.held {
		metrics.ObserveCacheRefresh("error")
		return Result{}, err
	}
	metrics.ObserveCacheRefresh("stale")
	c.logger.Warn("latest refresh failed; serving stale record",
		zap.String("run_date", c.rec.RunDate),
		zap.Time("fetched_at", c.fetchedAt),
		zap.Error(err),
	)
	return Result{Record: c.rec, FetchedAt: c.fetchedAt, Stale: true}, nil
}

// Set stores rec as the current value, stamped now.
func (c *Cache) Set(rec harvest.DailyHarvestRecord) Result {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec, c.fetchedAt, c.held = rec, now, true
	return Result{Record: rec, FetchedAt: now}
}

// Invalidate forces the next Get to refresh. The held value is kept as the
// stale fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}

func (c *Cache) fresh() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.held || c.fetchedAt.IsZero() {
		return Result{}, false
	}
	if c.clock.Now().Sub(c.fetchedAt) >= c.ttl {
		return Result{}, false
	}
	return Result{Record: c.rec, FetchedAt: c.fetchedAt}, true
}
