package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/openings-cli/internal/geomatch"
)

// Heuristic is the deterministic offline oracle. It is the fallback behind
// the remote client and a usable oracle in its own right for heuristic-only
// runs. All results carry reduced confidence so downstream thresholds
// (operational-filter 75, dedup 80) rarely fire on heuristic output alone.
type Heuristic struct{}

// NewHeuristic returns the offline oracle.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// categoryKeywords maps lowercase fragments to a category and confidence.
// Order matters: more specific fragments first.
var categoryKeywords = []struct {
	fragment   string
	category   string
	confidence float64
}{
	{"restaurant", "restaurant", 65},
	{"food establishment", "restaurant", 60},
	{"tavern", "bar", 65},
	{"brewpub", "bar", 65},
	{"bar", "bar", 55},
	{"liquor", "bar", 50},
	{"cafe", "cafe", 60},
	{"coffee", "cafe", 60},
	{"bakery", "food_service", 60},
	{"catering", "food_service", 60},
	{"food", "food_service", 45},
	{"grocery", "retail", 55},
	{"retail", "retail", 55},
	{"salon", "personal_service", 55},
	{"barber", "personal_service", 55},
	{"fitness", "personal_service", 50},
}

func (h *Heuristic) Classify(_ context.Context, text, name string) (Classification, error) {
	hay := strings.ToLower(text + " " + name)
	for _, kw := range categoryKeywords {
		if strings.Contains(hay, kw.fragment) {
			return Classification{Category: kw.category, Confidence: kw.confidence}, nil
		}
	}
	return Classification{Category: "other", Confidence: 30}, nil
}

func (h *Heuristic) Analyze(ctx context.Context, text, name string) (Analysis, error) {
	cls, _ := h.Classify(ctx, text, name)

	hay := strings.ToLower(text + " " + name)
	var features []string
	for _, f := range []string{"liquor", "patio", "outdoor", "delivery", "drive-thru", "carryout", "hood", "kitchen", "seats"} {
		if strings.Contains(hay, f) {
			features = append(features, f)
		}
	}
	return Analysis{
		BusinessType: cls.Category,
		KeyFeatures:  features,
		Confidence:   cls.Confidence,
	}, nil
}

// operationalMarkers indicate an already-operating business;
// openingMarkers indicate pre-opening activity.
var (
	operationalMarkers = []string{
		"renewal", "renew", "existing", "annual", "violation",
		"complaint", "re-inspection", "reinspection", "canvass",
		"expir", "amendment",
	}
	openingMarkers = []string{
		"new application", "new business", "proposed", "build-out", "buildout",
		"coming soon", "grand opening", "opening soon", "under construction",
		"tenant improvement", "initial", "pre-opening",
	}
)

func (h *Heuristic) OperationalStatus(_ context.Context, text string, types []string, name string, _ *time.Time) (Status, error) {
	hay := strings.ToLower(text + " " + strings.Join(types, " ") + " " + name)

	var opVotes, openVotes int
	for _, m := range operationalMarkers {
		opVotes += strings.Count(hay, m)
	}
	for _, m := range openingMarkers {
		openVotes += strings.Count(hay, m)
	}

	diff := opVotes - openVotes
	if diff < 0 {
		diff = -diff
	}
	conf := 50 + float64(diff)*10
	if conf > 80 {
		conf = 80
	}
	return Status{IsOperational: opVotes > openVotes, Confidence: conf}, nil
}

func (h *Heuristic) ResolveEntity(_ context.Context, addrA, nameA, addrB, nameB string) (Resolution, error) {
	sameAddr := geomatch.NormalizeAddress(addrA) != "" &&
		geomatch.NormalizeAddress(addrA) == geomatch.NormalizeAddress(addrB)
	if !sameAddr {
		return Resolution{IsSame: false, Confidence: 70}, nil
	}

	overlap := nameTokenOverlap(nameA, nameB)
	switch {
	case nameA == "" || nameB == "":
		// Same address, one side unnamed: plausibly the same business but
		// below the dedup threshold on heuristic evidence alone.
		return Resolution{IsSame: true, Confidence: 65}, nil
	case overlap >= 0.5:
		return Resolution{IsSame: true, Confidence: 85}, nil
	default:
		return Resolution{IsSame: false, Confidence: 60}, nil
	}
}

// nameTokenOverlap returns the fraction of the smaller name's tokens present
// in the other name (case-insensitive).
func nameTokenOverlap(a, b string) float64 {
	ta := strings.Fields(strings.ToLower(a))
	tb := strings.Fields(strings.ToLower(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	set := make(map[string]bool, len(tb))
	for _, tok := range tb {
		set[tok] = true
	}
	var hits int
	for _, tok := range ta {
		if set[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(ta))
}
