package extract

import (
	"strings"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// Row is the trimmed text of each cell in a table row.
type Row []string

func (r Row) cell(i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

func (r Row) number(i int) float64 {
	return harvest.ParseNumber(r.cell(i))
}

// ParseCatchEscapement fills the total summary and district observations.
// Columns after the label: catch daily, catch cumulative, escapement daily,
// escapement cumulative, in-river estimate, total run. Labels that do not
// resolve to a district are skipped.
func ParseCatchEscapement(rows []Row, rec *harvest.DailyHarvestRecord) {
	sawTotal := false
	for _, row := range rows {
		label := row.cell(0)
		if label == "" {
			continue
		}
		if strings.Contains(strings.ToLower(label), "total") {
			if sawTotal {
				continue
			}
			sawTotal = true
			rec.TotalRunSummary = harvest.TotalRunSummary{
				CatchDaily:           row.number(1),
				CatchCumulative:      row.number(2),
				EscapementDaily:      row.number(3),
				EscapementCumulative: row.number(4),
				InRiverEstimate:      row.number(5),
				TotalRun:             row.number(6),
			}
			continue
		}
		id, ok := harvest.CanonicalizeDistrict(label)
		if !ok {
			continue
		}
		rec.AddDistrict(harvest.DistrictObservation{
			ID:                   id,
			Name:                 harvest.DistrictName(id),
			CatchDaily:           row.number(1),
			CatchCumulative:      row.number(2),
			EscapementDaily:      row.number(3),
			EscapementCumulative: row.number(4),
			InRiverEstimate:      row.number(5),
			TotalRun:             row.number(6),
		})
	}
}

// headerWords are the classifier markers plus the column captions the source
// repeats in <td> header rows.
var headerWords = map[string]bool{
	"river": true, "rivers": true, "system": true, "escapement": true,
	"district": true, "catch": true, "sockeye": true, "delivery": true,
}

// isHeader reports a caption row: its label opens with a header word and no
// data cell carries a digit.
func (r Row) isHeader() bool {
	fields := strings.Fields(strings.ToLower(r.cell(0)))
	if len(fields) == 0 || !headerWords[strings.Trim(fields[0], ":")] {
		return false
	}
	for _, c := range r[1:] {
		if strings.ContainsAny(c, "0123456789") {
			return false
		}
	}
	return true
}

// ParseRivers adds one observation per row with at least three cells and a
// name longer than two characters. Caption rows are skipped.
func ParseRivers(rows []Row, rec *harvest.DailyHarvestRecord) {
	for _, row := range rows {
		if len(row) < 3 || len(row.cell(0)) <= 2 || row.isHeader() {
			continue
		}
		rec.AddRiver(harvest.RiverObservation{
			Name:                 row.cell(0),
			EscapementDaily:      row.number(1),
			EscapementCumulative: row.number(2),
			InRiverEstimate:      row.number(3),
		})
	}
}

// ParseSockeyeDelivery records the fish-per-delivery ratio of each district.
func ParseSockeyeDelivery(rows []Row, rec *harvest.DailyHarvestRecord) {
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		id, ok := harvest.CanonicalizeDistrict(row.cell(0))
		if !ok {
			continue
		}
		if rec.SockeyePerDelivery == nil {
			rec.SockeyePerDelivery = map[string]float64{}
		}
		if _, dup := rec.SockeyePerDelivery[id]; dup {
			continue
		}
		rec.SockeyePerDelivery[id] = row.number(1)
	}
}
