package profile

import (
	"regexp"
	"strconv"
	"strings"
)

// Keyword tables for service model and operator type detection. Matching is
// count-based over the concatenated evidence text: the label with the most
// fragment hits wins, ties broken by table order.

type labeledKeywords struct {
	label     string
	fragments []string
}

var serviceModelKeywords = []labeledKeywords{
	{"full_service", []string{
		"full service", "full-service", "dine-in", "dine in", "table service",
		"sit-down", "sit down", "fine dining", "bar and grill", "tavern",
		"reservation",
	}},
	{"fast_casual", []string{
		"fast casual", "fast-casual", "counter service", "counter-service",
		"quick service", "quick-service", "order at the counter",
	}},
	{"takeout_only", []string{
		"takeout", "take-out", "take out only", "carryout", "carry-out",
		"to-go only", "no seating",
	}},
	{"delivery_first", []string{
		"delivery only", "delivery-only", "delivery first", "ghost kitchen",
		"cloud kitchen", "virtual kitchen", "virtual brand",
	}},
}

var operatorTypeKeywords = []labeledKeywords{
	{"chain_expansion", []string{
		"franchise", "franchisee", "chain", "corporate", "another location",
		"second location", "third location", "new location of", "expansion",
	}},
	{"existing_operator", []string{
		"existing operator", "relocat", "rebrand", "ownership change",
		"change of ownership", "same owner", "dba",
	}},
	{"new_operator", []string{
		"new business", "new application", "first restaurant", "first location",
		"start-up", "startup",
	}},
}

// matchLabel returns the best-matching label and its hit count, or ("", 0)
// when no fragment matches.
func matchLabel(hay string, table []labeledKeywords) (string, int) {
	bestLabel, bestHits := "", 0
	for _, entry := range table {
		hits := 0
		for _, f := range entry.fragments {
			hits += strings.Count(hay, f)
		}
		if hits > bestHits {
			bestLabel, bestHits = entry.label, hits
		}
	}
	return bestLabel, bestHits
}

// Explicit numeric mentions. Permit descriptions write capacity both ways:
// "120 seats" and "occupancy of 120".
var (
	seatsBeforeRe = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:-\s*)?(?:seats?\b|person\b)`)
	seatsAfterRe  = regexp.MustCompile(`(?i)\b(?:seating|occupancy|capacity)\s*(?:of|for|:)?\s*(\d{1,4})\b`)
	sqftRe        = regexp.MustCompile(`(?i)\b([\d,]{3,7})\s*(?:sq\.?\s?ft\.?|square\s+feet|sf\b)`)
)

const (
	minSeats = 1
	maxSeats = 2000
	minSqft  = 100
	maxSqft  = 200000
)

// extractSeats pulls an explicit seat or occupancy count from the text.
// Returns 0 when no plausible number is present.
func extractSeats(hay string) int {
	for _, re := range []*regexp.Regexp{seatsBeforeRe, seatsAfterRe} {
		if m := re.FindStringSubmatch(hay); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= minSeats && n <= maxSeats {
				return n
			}
		}
	}
	return 0
}

// extractSqft pulls an explicit square-footage mention from the text.
func extractSqft(hay string) int {
	m := sqftRe.FindStringSubmatch(hay)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < minSqft || n > maxSqft {
		return 0
	}
	return n
}

// Qualitative size fallbacks, used only when no explicit number appears.
var sizeKeywords = []struct {
	fragments []string
	seats     int
	sqft      int
}{
	{[]string{"banquet", "event space", "large-format", "large format"}, 150, 6000},
	{[]string{"mid-size", "midsize", "full buildout", "full build-out"}, 80, 2500},
	{[]string{"intimate", "small cafe", "small café", "kiosk", "counter only"}, 30, 1200},
}

func qualitativeSize(hay string) (seats, sqft int) {
	for _, entry := range sizeKeywords {
		for _, f := range entry.fragments {
			if strings.Contains(hay, f) {
				return entry.seats, entry.sqft
			}
		}
	}
	return 0, 0
}

// liquorLicenseType maps Chicago-style license wording to a coarse type.
// Table order is most-specific first.
var liquorLicenseTypes = []struct {
	fragment string
	label    string
}{
	{"late hour", "late_hour"},
	{"package goods", "package_goods"},
	{"consumption on premises", "consumption_on_premises"},
	{"tavern", "tavern"},
	{"brewpub", "brewpub"},
	{"liquor", "liquor"},
}

func detectLiquorType(hay string) string {
	for _, entry := range liquorLicenseTypes {
		if strings.Contains(hay, entry.fragment) {
			return entry.label
		}
	}
	return ""
}

// kitchenComplexity buckets build-out evidence by equipment footprint. A hood
// or grease install marks a full line; fryers and ovens a standard kitchen;
// prep-only terms a light one.
func kitchenComplexity(hay string) string {
	switch {
	case strings.Contains(hay, "hood") || strings.Contains(hay, "ventilation") ||
		strings.Contains(hay, "ansul") || strings.Contains(hay, "grease"):
		return "complex"
	case strings.Contains(hay, "fryer") || strings.Contains(hay, "oven") ||
		strings.Contains(hay, "grill") || strings.Contains(hay, "range"):
		return "standard"
	case strings.Contains(hay, "prep ") || strings.Contains(hay, "warming") ||
		strings.Contains(hay, "reheat"):
		return "light"
	default:
		return ""
	}
}
