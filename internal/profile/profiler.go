// Package profile derives secondary business attributes (service model,
// operator type, capacity, liquor license type, kitchen complexity) from an
// Event's evidence, plus a weighted composite used as one scoring input.
package profile

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
)

// Named filter matches carried on the profile. Each contributes its weight
// to the 0-100 composite when it fires.
const (
	MatchServiceModel = "service_model_fit"
	MatchCapacity     = "capacity_fit"
	MatchLicenseType  = "license_type_fit"
	MatchTimeline     = "timeline_window_fit"
	MatchReservation  = "reservation_system"
	MatchOperatorType = "operator_type_fit"
)

var compositeWeights = map[string]float64{
	MatchServiceModel: 25,
	MatchCapacity:     15,
	MatchLicenseType:  20,
	MatchTimeline:     15,
	MatchReservation:  10,
	MatchOperatorType: 15,
}

// timelineWindowDays bounds how far out a predicted opening still counts as
// an actionable timeline for sales outreach.
const timelineWindowDays = 120

// Seat-capacity band considered a fit for the sales motion. Below is a
// kiosk, above is a venue.
const (
	capacityFitMin = 25
	capacityFitMax = 300
)

// Profiler derives BusinessIntelligence from Events. Keyword matching runs
// first; the oracle is consulted only when the text is too ambiguous to
// label, and its failure falls back internally, so Profile never errors.
type Profiler struct {
	orc oracle.Oracle
}

// NewProfiler creates a profiler. orc may not be nil; pass the heuristic
// oracle for offline runs.
func NewProfiler(orc oracle.Oracle) *Profiler {
	return &Profiler{orc: orc}
}

// Profile derives the intelligence attributes for one Event at evaluation
// time now. The result is deterministic for a fixed evidence set and a fixed
// oracle.
func (p *Profiler) Profile(ctx context.Context, ev *model.Event, now time.Time) *model.BusinessIntelligence {
	hay := strings.ToLower(evidenceText(ev))

	bi := &model.BusinessIntelligence{
		ServiceModel:      model.ServiceUnknown,
		OperatorType:      model.OperatorUnknown,
		LiquorLicenseType: detectLiquorType(hay),
		KitchenComplexity: kitchenComplexity(hay),
	}

	if label, hits := matchLabel(hay, serviceModelKeywords); hits > 0 {
		bi.ServiceModel = label
	}
	if label, hits := matchLabel(hay, operatorTypeKeywords); hits > 0 {
		bi.OperatorType = label
	}
	if bi.ServiceModel == model.ServiceUnknown {
		p.consultOracle(ctx, ev, bi)
	}

	bi.SeatCapacity = extractSeats(hay)
	bi.SquareFootage = extractSqft(hay)
	if bi.SeatCapacity == 0 && bi.SquareFootage == 0 {
		bi.SeatCapacity, bi.SquareFootage = qualitativeSize(hay)
	}

	bi.FilterMatches = p.filterMatches(ev, bi, hay, now)
	bi.Composite = composite(bi.FilterMatches)
	return bi
}

// consultOracle asks for a business-type analysis when keywords found
// nothing. The oracle client degrades to its heuristic internally, so a
// returned error here means a programming error, not an outage.
func (p *Profiler) consultOracle(ctx context.Context, ev *model.Event, bi *model.BusinessIntelligence) {
	analysis, err := p.orc.Analyze(ctx, evidenceText(ev), ev.Name)
	if err != nil {
		zap.L().Warn("profile: oracle analysis failed", zap.String("address", ev.Address), zap.Error(err))
		return
	}
	if analysis.Confidence < 50 {
		return
	}

	switch analysis.BusinessType {
	case "restaurant", "bar":
		bi.ServiceModel = model.ServiceFullService
	case "cafe":
		bi.ServiceModel = model.ServiceFastCasual
	case "food_service":
		bi.ServiceModel = model.ServiceTakeoutOnly
	}
	for _, f := range analysis.KeyFeatures {
		switch f {
		case "delivery":
			bi.ServiceModel = model.ServiceDeliveryFirst
		case "carryout":
			bi.ServiceModel = model.ServiceTakeoutOnly
		}
	}
}

func (p *Profiler) filterMatches(ev *model.Event, bi *model.BusinessIntelligence, hay string, now time.Time) []string {
	var matches []string
	add := func(name string, ok bool) {
		if ok {
			matches = append(matches, name)
		}
	}

	add(MatchServiceModel, bi.ServiceModel != model.ServiceUnknown)
	add(MatchCapacity, bi.SeatCapacity >= capacityFitMin && bi.SeatCapacity <= capacityFitMax)
	add(MatchLicenseType, bi.LiquorLicenseType != "")
	add(MatchTimeline, timelineFit(ev, now))
	add(MatchReservation, strings.Contains(hay, "reservation") ||
		strings.Contains(hay, "opentable") || strings.Contains(hay, "resy"))
	add(MatchOperatorType, bi.OperatorType != model.OperatorUnknown)
	return matches
}

// timelineFit reports whether the predicted opening lands inside the
// actionable outreach window: not already past, not further out than
// timelineWindowDays.
func timelineFit(ev *model.Event, now time.Time) bool {
	if ev.PredictedOpenWeek.IsZero() {
		return false
	}
	days := int(ev.PredictedOpenWeek.Sub(now).Hours() / 24)
	return days >= -6 && days <= timelineWindowDays
}

func composite(matches []string) float64 {
	var total float64
	for _, m := range matches {
		total += compositeWeights[m]
	}
	if total > 100 {
		total = 100
	}
	return total
}

func evidenceText(ev *model.Event) string {
	parts := make([]string, 0, len(ev.Evidence)+1)
	if ev.Name != "" {
		parts = append(parts, ev.Name)
	}
	for i := range ev.Evidence {
		if t := ev.Evidence[i].Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
