package harvest

import (
	"strconv"
	"strings"
)

// ParseNumber converts cell text such as "1,234,567" or " $12.5 " into a
// number. Everything except digits, '.' and '-' is dropped first. Text that
// still does not parse yields 0; it never fails.
func ParseNumber(text string) float64 {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}
