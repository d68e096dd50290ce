// Package geomatch decides when two civic records refer to the same physical
// location, and groups records by address on that basis. Matching is fuzzy:
// geocoordinates within a distance tolerance, or normalized address-string
// equality when coordinates are missing on either side.
package geomatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// streetAbbrevs collapses the long and short forms of street suffixes and
// directionals to one canonical token. Civic datasets are inconsistent even
// within one portal ("N Milwaukee Ave" vs "NORTH MILWAUKEE AVENUE").
var streetAbbrevs = map[string]string{
	"street": "st", "avenue": "ave", "av": "ave", "boulevard": "blvd",
	"drive": "dr", "road": "rd", "lane": "ln", "court": "ct",
	"place": "pl", "plaza": "plz", "square": "sq", "terrace": "ter",
	"parkway": "pkwy", "highway": "hwy", "expressway": "expy",
	"north": "n", "south": "s", "east": "e", "west": "w",
	"northeast": "ne", "northwest": "nw", "southeast": "se", "southwest": "sw",
}

// unitMarkers start a secondary-address designator. The marker and the token
// after it (the unit number) are both dropped.
var unitMarkers = map[string]bool{
	"unit": true, "suite": true, "ste": true, "apt": true,
	"apartment": true, "floor": true, "fl": true, "rm": true, "room": true,
	"#": true, "bldg": true, "building": true,
}

// foldDiacritics strips combining marks after NFD decomposition, so
// "Café" and "Cafe" normalize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeAddress canonicalizes an address string for equality comparison:
// case-folded, diacritics stripped, punctuation removed, unit/suite
// designators dropped, street suffixes and directionals abbreviated, and
// whitespace collapsed.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}

	if folded, _, err := transform.String(foldDiacritics, addr); err == nil {
		addr = folded
	}

	var b strings.Builder
	b.Grow(len(addr))
	for _, r := range addr {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ':
			b.WriteRune(r)
		case r == '#':
			b.WriteString(" # ")
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	out := make([]string, 0, len(tokens))
	skipNext := false
	for _, tok := range tokens {
		if skipNext {
			skipNext = false
			continue
		}
		if unitMarkers[tok] {
			skipNext = true
			continue
		}
		if abbr, ok := streetAbbrevs[tok]; ok {
			tok = abbr
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}
