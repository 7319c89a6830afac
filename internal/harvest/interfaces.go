package harvest

import (
	"context"
	"time"
)

// FetchResult is one extracted record plus the rendered page it came from.
type FetchResult struct {
	Record DailyHarvestRecord
	HTML   string
}

// Fetcher obtains the record for a single day from the source page.
type Fetcher interface {
	Fetch(ctx context.Context, day time.Time) (FetchResult, error)
}

// Store persists records and answers the read queries used by the dashboard.
type Store interface {
	Save(ctx context.Context, record DailyHarvestRecord) error
	Get(ctx context.Context, runDate string) (DailyHarvestRecord, error)
	Latest(ctx context.Context) (DailyHarvestRecord, error)
	// ListDates returns run dates newest first; season 0 means all seasons.
	ListDates(ctx context.Context, season int) ([]string, error)
	// ListSeasons returns distinct seasons newest first.
	ListSeasons(ctx context.Context) ([]int, error)
	// SeasonDates returns a season's run dates oldest first.
	SeasonDates(ctx context.Context, season int) ([]string, error)
	// Range returns records with start <= day <= end, oldest first.
	Range(ctx context.Context, start, end time.Time) ([]DailyHarvestRecord, error)
	Delete(ctx context.Context, runDate string) error
	Close() error
}

// Archive keeps the rendered page of each scraped date under PageKey.
// Archiving a date again replaces its page. PutPage returns the page's URI.
type Archive interface {
	PutPage(ctx context.Context, rec DailyHarvestRecord, html string) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
