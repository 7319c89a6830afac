package harvest

import (
	"fmt"
	"time"
)

// RunDateLayout is the MM-DD-YYYY form used as primary key and as the value
// written into the page's date control.
const RunDateLayout = "01-02-2006"

// Midnight truncates t to the start of its calendar day in UTC. All day
// arithmetic happens in UTC so stepping by one day is never 23 or 25 hours.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatRunDate renders the calendar day of t as MM-DD-YYYY.
func FormatRunDate(t time.Time) string {
	return t.Format(RunDateLayout)
}

// ParseRunDate parses an MM-DD-YYYY string into a UTC midnight.
func ParseRunDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(RunDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run date %q: %w", s, err)
	}
	return t, nil
}

// EnumerateDates returns every calendar day from start through end inclusive.
// It returns nil when start is after end.
func EnumerateDates(start, end time.Time) []time.Time {
	start, end = Midnight(start), Midnight(end)
	if start.After(end) {
		return nil
	}
	n := int(end.Sub(start).Hours()/24) + 1
	out := make([]time.Time, 0, n)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// SortKey renders the ISO form of a run date, which orders lexically.
func SortKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
