// Package system provides the wall clock used to stamp scraped records.
package system

import "time"

// Clock implements harvest.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the current calendar day in loc, as a UTC midnight. The
// season runs on Alaska time, so "today" is decided there rather than in UTC.
func (c Clock) Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := c.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
