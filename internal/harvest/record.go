package harvest

import (
	"fmt"
	"time"
)

// TotalRunSummary is the bay-wide aggregate row of the catch/escapement table.
type TotalRunSummary struct {
	CatchDaily           float64 `json:"catchDaily"`
	CatchCumulative      float64 `json:"catchCumulative"`
	EscapementDaily      float64 `json:"escapementDaily"`
	EscapementCumulative float64 `json:"escapementCumulative"`
	InRiverEstimate      float64 `json:"inRiverEstimate"`
	TotalRun             float64 `json:"totalRun"`
}

// DistrictObservation is one district row of the catch/escapement table.
type DistrictObservation struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	CatchDaily           float64 `json:"catchDaily"`
	CatchCumulative      float64 `json:"catchCumulative"`
	EscapementDaily      float64 `json:"escapementDaily"`
	EscapementCumulative float64 `json:"escapementCumulative"`
	InRiverEstimate      float64 `json:"inRiverEstimate"`
	TotalRun             float64 `json:"totalRun"`
}

// RiverObservation is one row of the river escapement table. Rivers are keyed
// by the name printed on the source page.
type RiverObservation struct {
	Name                 string  `json:"name"`
	EscapementDaily      float64 `json:"escapementDaily"`
	EscapementCumulative float64 `json:"escapementCumulative"`
	InRiverEstimate      float64 `json:"inRiverEstimate"`
}

// DailyHarvestRecord is everything scraped for a single calendar day.
type DailyHarvestRecord struct {
	RunDate            string                `json:"runDate"`
	ScrapedAt          time.Time             `json:"scrapedAt"`
	Season             int                   `json:"season"`
	TotalRunSummary    TotalRunSummary       `json:"totalRunSummary"`
	Districts          []DistrictObservation `json:"districts"`
	Rivers             []RiverObservation    `json:"rivers"`
	SockeyePerDelivery map[string]float64    `json:"sockeyePerDelivery,omitempty"`
}

// NewRecord returns an empty record stamped for the given day.
func NewRecord(day time.Time, scrapedAt time.Time) DailyHarvestRecord {
	return DailyHarvestRecord{
		RunDate:            FormatRunDate(day),
		ScrapedAt:          scrapedAt,
		Season:             day.Year(),
		Districts:          []DistrictObservation{},
		Rivers:             []RiverObservation{},
		SockeyePerDelivery: map[string]float64{},
	}
}

// AddDistrict appends obs unless the record already holds that district.
// It reports whether the observation was added.
func (r *DailyHarvestRecord) AddDistrict(obs DistrictObservation) bool {
	for _, existing := range r.Districts {
		if existing.ID == obs.ID {
			return false
		}
	}
	r.Districts = append(r.Districts, obs)
	return true
}

// AddRiver appends obs unless a river with the same name is already present.
func (r *DailyHarvestRecord) AddRiver(obs RiverObservation) bool {
	for _, existing := range r.Rivers {
		if existing.Name == obs.Name {
			return false
		}
	}
	r.Rivers = append(r.Rivers, obs)
	return true
}

// Pin overrides the identity fields with the requested day. The date control
// on the source page can silently keep its previous selection, so the caller's
// day wins over anything read back from the page.
func (r *DailyHarvestRecord) Pin(day time.Time) {
	day = Midnight(day)
	r.RunDate = FormatRunDate(day)
	r.Season = day.Year()
}

// Day parses RunDate back into a calendar day.
func (r DailyHarvestRecord) Day() (time.Time, error) {
	return ParseRunDate(r.RunDate)
}

// CheckedDay is Day plus the identity invariant stores rely on: Season must
// equal the year of RunDate.
func (r DailyHarvestRecord) CheckedDay() (time.Time, error) {
	day, err := r.Day()
	if err != nil {
		return time.Time{}, err
	}
	if r.Season != day.Year() {
		return time.Time{}, fmt.Errorf("%w: run date %s, season %d", ErrSeasonMismatch, r.RunDate, r.Season)
	}
	return day, nil
}
