package harvest

import (
	"fmt"
	"sort"
	"time"
)

// SeasonRange is the fixed [Start, End] window of one fishing season.
type SeasonRange struct {
	Season int
	Start  time.Time
	End    time.Time
}

// Dates enumerates every day of the season.
func (s SeasonRange) Dates() []time.Time {
	return EnumerateDates(s.Start, s.End)
}

// DefaultSeasons are the historical windows backfilled when no override is
// configured.
var DefaultSeasons = map[int]SeasonRange{
	2022: mustSeason(2022, "06-13-2022", "07-31-2022"),
	2023: mustSeason(2023, "06-12-2023", "07-31-2023"),
	2024: mustSeason(2024, "06-10-2024", "07-31-2024"),
	2025: mustSeason(2025, "06-09-2025", "07-31-2025"),
}

// NewSeasonRange validates and builds a season window from MM-DD-YYYY bounds.
func NewSeasonRange(season int, start, end string) (SeasonRange, error) {
	s, err := ParseRunDate(start)
	if err != nil {
		return SeasonRange{}, err
	}
	e, err := ParseRunDate(end)
	if err != nil {
		return SeasonRange{}, err
	}
	if s.After(e) {
		return SeasonRange{}, fmt.Errorf("season %d: start %s is after end %s", season, start, end)
	}
	if s.Year() != season || e.Year() != season {
		return SeasonRange{}, fmt.Errorf("season %d: bounds %s..%s fall outside the season year", season, start, end)
	}
	return SeasonRange{Season: season, Start: s, End: e}, nil
}

// SelectSeasons resolves the requested seasons against table, returning them
// in ascending season order.
func SelectSeasons(table map[int]SeasonRange, seasons []int) ([]SeasonRange, error) {
	out := make([]SeasonRange, 0, len(seasons))
	seen := make(map[int]bool, len(seasons))
	for _, season := range seasons {
		if seen[season] {
			continue
		}
		r, ok := table[season]
		if !ok {
			return nil, fmt.Errorf("no date range configured for season %d", season)
		}
		seen[season] = true
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Season < out[j].Season })
	return out, nil
}

func mustSeason(season int, start, end string) SeasonRange {
	r, err := NewSeasonRange(season, start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// InSeason reports whether day falls inside the fishing season for its year.
// Years without a configured range fall back to June through September.
func InSeason(table map[int]SeasonRange, day time.Time) bool {
	day = Midnight(day)
	if r, ok := table[day.Year()]; ok {
		return !day.Before(r.Start) && !day.After(r.End)
	}
	return day.Month() >= time.June && day.Month() <= time.September
}
