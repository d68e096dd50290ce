// Package scoring converts an address's Events into a ranked Lead. The
// score is a sum of five independently-clamped components, total capped at
// 130. For a fixed evidence set, a fixed "now", and a fixed oracle, the
// score is fully deterministic; there is no jitter.
package scoring

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
)

// Component names, used as keys in Lead.Components.
const (
	CompRecency         = "recency"
	CompTypeComplexity  = "type_complexity"
	CompContact         = "contact"
	CompDensity         = "density"
	CompOraclePotential = "oracle_potential"
)

// Component caps and the total cap.
const (
	maxRecency         = 35.0
	maxTypeComplexity  = 45.0
	contactBonus       = 20.0
	maxDensity         = 20.0
	maxOraclePotential = 20.0
	MaxScore           = 130.0
)

// maxOracleRecords bounds classification calls per Lead; the cache makes
// repeats free but first-time evidence should not fan out unbounded.
const maxOracleRecords = 4

// Scorer computes Lead scores. Oracle failures degrade to fixed heuristic
// contributions inside the client, so Score never errors and never drops a
// Lead.
type Scorer struct {
	orc oracle.Oracle
}

// NewScorer creates a scorer. orc may not be nil; pass the heuristic oracle
// for offline runs.
func NewScorer(orc oracle.Oracle) *Scorer {
	return &Scorer{orc: orc}
}

// Score computes the total and per-component scores for one address's
// Events. An empty evidence set scores zero.
func (s *Scorer) Score(ctx context.Context, events []model.Event, intel *model.BusinessIntelligence, now time.Time) (float64, map[string]float64) {
	evidence := collectEvidence(events)
	if len(evidence) == 0 {
		return 0, nil
	}

	hay := strings.ToLower(combinedText(events))
	rType := detectRestaurantType(hay)
	w := windowsFor(rType, now)

	components := map[string]float64{
		CompRecency:         recencyComponent(evidence, w, now),
		CompTypeComplexity:  typeComplexityComponent(rType, hay, intel),
		CompContact:         contactComponent(evidence),
		CompDensity:         densityComponent(events),
		CompOraclePotential: s.oraclePotential(ctx, events, evidence, hay, now),
	}

	var total float64
	for _, v := range components {
		total += v
	}
	return clamp(total, 0, MaxScore), components
}

// recencyComponent awards the highest tier for the most advanced stage
// signal inside its window, falling back to generic age buckets over the
// freshest past-dated record.
func recencyComponent(evidence []model.NormalizedRecord, w signalWindows, now time.Time) float64 {
	switch stage, _ := advancedStage(evidence, w, now); stage {
	case StageUtilityHookup:
		return maxRecency
	case StageEquipmentInstall:
		return 30
	case StageFoodInspection:
		return 26
	case StageBuildingPass:
		return 22
	}

	age, ok := freshestPastAge(evidence, now)
	if !ok {
		return 0
	}
	switch {
	case age <= 14:
		return 18
	case age <= 30:
		return 14
	case age <= 60:
		return 10
	case age <= 90:
		return 6
	default:
		return 0
	}
}

var typeBasePoints = map[string]float64{
	typeFullService: 35,
	typeFastCasual:  30,
	typeFastFood:    25,
	typeUnknown:     20,
}

// typeComplexityComponent adds liquor and equipment complexity bonuses to
// the type base, scales by the profile composite, and clamps to the cap.
// The composite maps to a bounded 0.85-1.15 multiplier so a thin profile
// dampens and a rich one amplifies without ever dominating.
func typeComplexityComponent(rType, hay string, intel *model.BusinessIntelligence) float64 {
	points := typeBasePoints[rType]
	if containsAny(hay, []string{"liquor", "tavern", "alcohol", "consumption on premises"}) {
		points += 5
	}
	if containsAny(hay, equipmentMarkers) {
		points += 5
	}

	multiplier := 1.0
	if intel != nil {
		multiplier = 0.85 + intel.Composite/100*0.3
	}
	return clamp(points*multiplier, 0, maxTypeComplexity)
}

func contactComponent(evidence []model.NormalizedRecord) float64 {
	for i := range evidence {
		if phone, email := evidence[i].Contact(); phone != "" || email != "" {
			return contactBonus
		}
	}
	return 0
}

// densityComponent rewards corroboration: full points when more than one
// Event contributed, otherwise a tier by the primary Event's strength.
func densityComponent(events []model.Event) float64 {
	if len(events) > 1 {
		return maxDensity
	}
	if len(events) == 1 && events[0].SignalStrength >= 75 {
		return 15
	}
	return 10
}

// categoryValues weight oracle classifications by how much the category is
// worth to a restaurant-supply sales motion.
var categoryValues = map[string]float64{
	"restaurant":       1.0,
	"bar":              0.95,
	"cafe":             0.85,
	"food_service":     0.8,
	"retail":           0.6,
	"personal_service": 0.5,
	"other":            0.4,
}

// Intent markers voted over the combined evidence text. Opening language
// boosts the component; strongly operational language collapses it.
var (
	openingWords = []string{
		"coming soon", "grand opening", "opening soon", "new business",
		"proposed", "build-out", "buildout", "under construction", "now hiring",
	}
	operationalWords = []string{
		"renewal", "existing", "annual", "violation", "complaint",
		"re-inspection", "canvass",
	}
)

// oraclePotential averages per-record classification confidence, weighted
// by category value and record recency, scaled to the component cap, then
// adjusted by the opening-vs-operational intent vote.
func (s *Scorer) oraclePotential(ctx context.Context, events []model.Event, evidence []model.NormalizedRecord, hay string, now time.Time) float64 {
	name := ""
	if len(events) > 0 {
		name = events[0].Name
	}

	n := len(evidence)
	if n > maxOracleRecords {
		n = maxOracleRecords
	}

	var sum float64
	for i := 0; i < n; i++ {
		r := &evidence[i]
		cls, err := s.orc.Classify(ctx, r.Text(), name)
		if err != nil {
			zap.L().Warn("scoring: classification failed", zap.Error(err))
			sum += 8
			continue
		}
		catValue, ok := categoryValues[cls.Category]
		if !ok {
			catValue = categoryValues["other"]
		}
		sum += cls.Confidence / 100 * catValue * recencyWeight(r, now) * maxOraclePotential
	}
	base := sum / float64(n)

	openVotes, opVotes := countVotes(hay, openingWords), countVotes(hay, operationalWords)
	switch {
	case opVotes >= openVotes+3:
		base *= 0.3
	case openVotes > opVotes:
		base *= 1.2
	}
	return clamp(base, 0, maxOraclePotential)
}

func recencyWeight(r *model.NormalizedRecord, now time.Time) float64 {
	age, ok := r.AgeDays(now)
	if !ok || age < 0 {
		return 0.4
	}
	switch {
	case age <= 30:
		return 1.0
	case age <= 90:
		return 0.8
	case age <= 180:
		return 0.6
	default:
		return 0.4
	}
}

func countVotes(hay string, words []string) int {
	var n int
	for _, w := range words {
		n += strings.Count(hay, w)
	}
	return n
}

func collectEvidence(events []model.Event) []model.NormalizedRecord {
	var out []model.NormalizedRecord
	for i := range events {
		out = append(out, events[i].Evidence...)
	}
	return out
}

func combinedText(events []model.Event) string {
	var parts []string
	for i := range events {
		for j := range events[i].Evidence {
			if t := events[i].Evidence[j].Text(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// freshestPastAge returns the age of the most recent past-dated record.
func freshestPastAge(evidence []model.NormalizedRecord, now time.Time) (int, bool) {
	best := -1
	for i := range evidence {
		age, ok := evidence[i].AgeDays(now)
		if !ok || age < 0 {
			continue
		}
		if best == -1 || age < best {
			best = age
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
