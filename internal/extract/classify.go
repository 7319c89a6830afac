package extract

import "strings"

// TableKind tags a table found on the page.
type TableKind int

// Known table kinds.
const (
	Unknown TableKind = iota
	CatchEscapement
	River
	SockeyeDelivery
)

func (k TableKind) String() string {
	switch k {
	case CatchEscapement:
		return "catch_escapement"
	case River:
		return "river"
	case SockeyeDelivery:
		return "sockeye_delivery"
	default:
		return "unknown"
	}
}

// Classify decides the kind of a table from its text content.
func Classify(text string) TableKind {
	has := func(word string) bool { return strings.Contains(text, word) }
	switch {
	case has("District") && has("Catch") && has("Escapement"):
		return CatchEscapement
	case has("River") && has("Escapement") && !has("District"):
		return River
	case has("Sockeye") && has("Delivery"):
		return SockeyeDelivery
	default:
		return Unknown
	}
}
