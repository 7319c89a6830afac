package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// Summary counts what a document yielded, for logging.
type Summary struct {
	Tables map[TableKind]int
}

// ParseHTML builds the record for day from a rendered page.
func ParseHTML(html string, day time.Time, scrapedAt time.Time) (harvest.DailyHarvestRecord, Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return harvest.DailyHarvestRecord{}, Summary{}, fmt.Errorf("parse html: %w", err)
	}
	rec, summary := ParseDocument(doc, day, scrapedAt)
	return rec, summary, nil
}

// ParseDocument scans every table in doc and dispatches it by kind.
func ParseDocument(doc *goquery.Document, day time.Time, scrapedAt time.Time) (harvest.DailyHarvestRecord, Summary) {
	rec := harvest.NewRecord(harvest.Midnight(day), scrapedAt)
	summary := Summary{Tables: map[TableKind]int{}}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		kind := ClassifyTable(table)
		summary.Tables[kind]++
		switch kind {
		case CatchEscapement:
			ParseCatchEscapement(TableRows(table), &rec)
		case River:
			ParseRivers(TableRows(table), &rec)
		case SockeyeDelivery:
			ParseSockeyeDelivery(TableRows(table), &rec)
		}
	})
	rec.Pin(day)
	return rec, summary
}

// ClassifyTable classifies a single table. Layout tables that wrap other
// tables are Unknown so their text does not shadow the inner tables.
func ClassifyTable(table *goquery.Selection) TableKind {
	if table.Find("table").Length() > 0 {
		return Unknown
	}
	return Classify(table.Text())
}

// TableRows returns the data rows of table. Rows made only of <th> cells are
// treated as headers and dropped.
func TableRows(table *goquery.Selection) []Row {
	var rows []Row
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th,td")
		if tr.ChildrenFiltered("td").Length() == 0 {
			return
		}
		row := make(Row, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, row)
	})
	return rows
}
