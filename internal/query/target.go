package query

import (
	"strings"

	"buildingsearch/internal/scrapers/hcr"

	"github.com/antzucaro/matchr"
)

// Counties the portal knows by a two word name that callers commonly pass
// without the space.
var concatenatedCounties = map[string]string{
	"NEWYORK": "NEW YORK",
}

// NewYorkCounties is every county of the state as the portal spells them.
var NewYorkCounties = []string{
	"ALBANY", "ALLEGANY", "BRONX", "BROOME", "CATTARAUGUS", "CAYUGA",
	"CHAUTAUQUA", "CHEMUNG", "CHENANGO", "CLINTON", "COLUMBIA", "CORTLAND",
	"DELAWARE", "DUTCHESS", "ERIE", "ESSEX", "FRANKLIN", "FULTON",
	"GENESEE", "GREENE", "HAMILTON", "HERKIMER", "JEFFERSON", "KINGS",
	"LEWIS", "LIVINGSTON", "MADISON", "MONROE", "MONTGOMERY", "NASSAU",
	"NEW YORK", "NIAGARA", "ONEIDA", "ONONDAGA", "ONTARIO", "ORANGE",
	"ORLEANS", "OSWEGO", "OTSEGO", "PUTNAM", "QUEENS", "RENSSELAER",
	"RICHMOND", "ROCKLAND", "SARATOGA", "SCHENECTADY", "SCHOHARIE", "SCHUYLER",
	"SENECA", "ST. LAWRENCE", "STEUBEN", "SUFFOLK", "SULLIVAN", "TIOGA",
	"TOMPKINS", "ULSTER", "WARREN", "WASHINGTON", "WAYNE", "WESTCHESTER",
	"WYOMING", "YATES",
}

// Target is a single county and zip code to query.
type Target struct {
	County string
	Zip    string
}

// NormalizeCounty expands the concatenated spelling of known two word
// counties. Every other name is returned unchanged.
func NormalizeCounty(county string) string {
	if expanded, ok := concatenatedCounties[county]; ok {
		return expanded
	}
	return county
}

// KnownCounty reports whether county is spelled the way the portal lists it.
func KnownCounty(county string) bool {
	for _, c := range NewYorkCounties {
		if c == county {
			return true
		}
	}
	return false
}

// SuggestCounty returns the known county closest to the given name.
func SuggestCounty(county string) string {
	best := ""
	bestScore := -1.0
	upper := strings.ToUpper(county)
	for _, c := range NewYorkCounties {
		score := matchr.JaroWinkler(upper, c, false)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NewTarget normalizes the county and validates both fields. The zip code is
// used verbatim.
func NewTarget(county, zip string) (Target, error) {
	if strings.TrimSpace(county) == "" {
		return Target{}, &hcr.InputError{Field: "county", Value: county, Reason: "must not be empty"}
	}
	if zip == "" || !isDigits(zip) {
		return Target{}, &hcr.InputError{Field: "zip code", Value: zip, Reason: "must be digits"}
	}
	return Target{County: NormalizeCounty(county), Zip: zip}, nil
}
