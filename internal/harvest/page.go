package harvest

import (
	"path"
	"strconv"
)

// PageContentType is recorded on every archived page.
const PageContentType = "text/html; charset=utf-8"

// PageKey is the archive key of a record's rendered page:
// <prefix>/<season>/<MM-DD-YYYY>.html. The key is rebuilt from the parsed
// day, so a record failing CheckedDay has no key.
func PageKey(prefix string, rec DailyHarvestRecord) (string, error) {
	day, err := rec.CheckedDay()
	if err != nil {
		return "", err
	}
	return path.Join(prefix, strconv.Itoa(day.Year()), FormatRunDate(day)+".html"), nil
}
