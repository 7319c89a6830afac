package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnumerateDatesScenario(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)

	days := EnumerateDates(start, end)
	got := make([]string, 0, len(days))
	for _, d := range days {
		got = append(got, FormatRunDate(d))
	}
	require.Equal(t, []string{"06-18-2024", "06-19-2024", "06-20-2024"}, got)
}

func TestEnumerateDatesProperties(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, span := range []int{0, 1, 29, 60, 365, 366} {
		start := anchor.AddDate(0, 0, span%7)
		end := start.AddDate(0, 0, span)
		days := EnumerateDates(start, end)

		require.Len(t, days, span+1, "span %d", span)
		require.True(t, days[0].Equal(start))
		require.True(t, days[len(days)-1].Equal(end))
		for i := 1; i < len(days); i++ {
			require.Equal(t, 24*time.Hour, days[i].Sub(days[i-1]))
		}
	}
}

func TestEnumerateDatesAcrossDSTInLocalZone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Anchorage")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Spans the March DST transition in a zone observing it.
	start := time.Date(2024, time.March, 8, 0, 0, 0, 0, loc)
	end := time.Date(2024, time.March, 12, 0, 0, 0, 0, loc)

	days := EnumerateDates(start, end)
	require.Len(t, days, 5)
	require.Equal(t, "03-10-2024", FormatRunDate(days[2]))
	require.Equal(t, "03-12-2024", FormatRunDate(days[4]))
}

func TestEnumerateDatesStartAfterEnd(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC)
	require.Empty(t, EnumerateDates(start, end))
}

func TestParseRunDate(t *testing.T) {
	t.Parallel()

	day, err := ParseRunDate("07-04-2024")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC), day)
	require.Equal(t, "2024-07-04", SortKey(day))

	_, err = ParseRunDate("2024-07-04")
	require.Error(t, err)
}

func TestSelectSeasons(t *testing.T) {
	t.Parallel()

	got, err := SelectSeasons(DefaultSeasons, []int{2024, 2022, 2024})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 2022, got[0].Season)
	require.Equal(t, 2024, got[1].Season)

	_, err = SelectSeasons(DefaultSeasons, []int{1999})
	require.ErrorContains(t, err, "1999")
}

func TestNewSeasonRangeValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSeasonRange(2024, "07-31-2024", "06-01-2024")
	require.ErrorContains(t, err, "after end")

	_, err = NewSeasonRange(2024, "06-01-2023", "07-01-2024")
	require.ErrorContains(t, err, "outside")

	r, err := NewSeasonRange(2024, "06-10-2024", "06-12-2024")
	require.NoError(t, err)
	require.Len(t, r.Dates(), 3)
}

func TestInSeason(t *testing.T) {
	t.Parallel()

	at := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 15, 30, 0, 0, time.UTC) }

	require.True(t, InSeason(DefaultSeasons, at(2024, time.June, 10)))
	require.True(t, InSeason(DefaultSeasons, at(2024, time.July, 31)))
	require.False(t, InSeason(DefaultSeasons, at(2024, time.June, 9)))
	require.False(t, InSeason(DefaultSeasons, at(2024, time.August, 1)))

	// No configured range for 2026.
	require.True(t, InSeason(DefaultSeasons, at(2026, time.September, 30)))
	require.False(t, InSeason(DefaultSeasons, at(2026, time.October, 1)))
	require.False(t, InSeason(DefaultSeasons, at(2026, time.May, 31)))
}
