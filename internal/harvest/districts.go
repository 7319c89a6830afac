package harvest

import "strings"

// District is one entry of the fixed fishing-district enumeration.
type District struct {
	ID         string
	Name       string
	Label      string
	Alternates []string
}

// Districts lists the five management districts in canonical order. Both the
// extractor and the stores resolve ids and display names from this table.
var Districts = []District{
	{ID: "naknek", Name: "Naknek-Kvichak", Label: "Naknek-Kvichak", Alternates: []string{"Naknek/Kvichak"}},
	{ID: "egegik", Name: "Egegik", Label: "Egegik"},
	{ID: "ugashik", Name: "Ugashik", Label: "Ugashik"},
	{ID: "nushagak", Name: "Nushagak", Label: "Nushagak"},
	{ID: "togiak", Name: "Togiak", Label: "Togiak"},
}

// CanonicalizeDistrict maps a label rendered on the page to a district id.
// An exact, case-sensitive match on a canonical or alternate label wins; otherwise the
// part of each label before its first '-' or '/' is searched for inside raw.
// Table order breaks ties. The second return is false when nothing matches.
func CanonicalizeDistrict(raw string) (string, bool) {
	for _, d := range Districts {
		if raw == d.Label {
			return d.ID, true
		}
		for _, alt := range d.Alternates {
			if raw == alt {
				return d.ID, true
			}
		}
	}
	for _, d := range Districts {
		stem := d.Label
		if i := strings.IndexAny(stem, "-/"); i >= 0 {
			stem = stem[:i]
		}
		if stem != "" && strings.Contains(raw, stem) {
			return d.ID, true
		}
	}
	return "", false
}

// DistrictName returns the display name for id, or id itself when unknown.
func DistrictName(id string) string {
	if d, ok := LookupDistrict(id); ok {
		return d.Name
	}
	return id
}

// LookupDistrict finds a district by id.
func LookupDistrict(id string) (District, bool) {
	for _, d := range Districts {
		if d.ID == id {
			return d, true
		}
	}
	return District{}, false
}
