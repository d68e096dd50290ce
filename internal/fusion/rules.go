package fusion

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openings-cli/internal/model"
)

// Rule is one named opening-signal pattern. Strength is the fixed signal
// weight carried onto any Event the rule emits. match returns the evidence
// records backing the match, or nil for no match — a rule that needs two
// record kinds and finds none of one kind never matches.
type Rule struct {
	Name     string
	Strength int
	match    func(g *model.AddressGroup, now time.Time) []model.NormalizedRecord
}

// Rule window thresholds, in days.
const (
	progressionPermitToInspection  = 120
	progressionInspectionToLicense = 60
	progressionTotalSpan           = 180
	buildingPassLicenseGap         = 60
	foodInspectionWindow           = 30
	permitLicenseGap               = 120
	hiringWindow                   = 30
	hiringPairGap                  = 45
	activeLicenseHorizon           = 90
	commercialPermitWindow         = 60
	recentApprovalWindow           = 90
)

// DefaultRules returns the rule list in evaluation order: highest strength
// first, declaration order breaking ties. The engine stops at the first
// match, so this order is load-bearing.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "opening_progression", Strength: 85, match: matchOpeningProgression},
		{Name: "permit_license_combo", Strength: 80, match: matchPermitLicenseCombo},
		{Name: "food_inspection_pass", Strength: 75, match: matchFoodInspectionPass},
		{Name: "hiring_combo", Strength: 75, match: matchHiringCombo},
		{Name: "building_pass_license", Strength: 70, match: matchBuildingPassLicense},
		{Name: "active_license_future", Strength: 70, match: matchActiveLicenseFuture},
		{Name: "commercial_permit", Strength: 60, match: matchCommercialPermit},
		{Name: "recent_approval", Strength: 50, match: matchRecentApproval},
	}
}

// RulesByName resolves a configured rule-name list against the default set,
// preserving evaluation order. An unrecognized name is a configuration
// error and aborts the run — silently skipping a rule would shift every
// downstream score.
func RulesByName(names []string) ([]Rule, error) {
	if len(names) == 0 {
		return DefaultRules(), nil
	}
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}
	var out []Rule
	for _, r := range DefaultRules() {
		if enabled[r.Name] {
			out = append(out, r)
			delete(enabled, r.Name)
		}
	}
	for n := range enabled {
		return nil, eris.Errorf("fusion: unrecognized rule name %q", n)
	}
	return out, nil
}

// matchOpeningProgression finds the full pre-opening sequence: a permit,
// then an inspection, then an approved liquor license, in chronological
// order within the progression windows, with the license date still in the
// future at evaluation time.
func matchOpeningProgression(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	recs := dated(g.Records)
	for pi := range recs {
		p := &recs[pi]
		if !isPermit(p) {
			continue
		}
		for ii := range recs {
			i := &recs[ii]
			if !isInspection(i) || !i.EventDate.After(*p.EventDate) {
				continue
			}
			if daysBetween(i, p) > progressionPermitToInspection {
				continue
			}
			for li := range recs {
				l := &recs[li]
				if !isLiquorLicense(l) || !statusApproved(l) {
					continue
				}
				if !l.EventDate.After(*i.EventDate) || !l.EventDate.After(now) {
					continue
				}
				if daysBetween(l, i) > progressionInspectionToLicense ||
					daysBetween(l, p) > progressionTotalSpan {
					continue
				}
				return []model.NormalizedRecord{*p, *i, *l}
			}
		}
	}
	return nil
}

// matchPermitLicenseCombo pairs a permit with an approved liquor license at
// the same address within 120 days, either order.
func matchPermitLicenseCombo(g *model.AddressGroup, _ time.Time) []model.NormalizedRecord {
	recs := dated(g.Records)
	for pi := range recs {
		p := &recs[pi]
		if !isPermit(p) {
			continue
		}
		for li := range recs {
			l := &recs[li]
			if !isLiquorLicense(l) || !statusApproved(l) {
				continue
			}
			if daysBetween(p, l) <= permitLicenseGap {
				return []model.NormalizedRecord{*p, *l}
			}
		}
	}
	return nil
}

// matchFoodInspectionPass finds a recently passed food inspection tied to a
// license application.
func matchFoodInspectionPass(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	for i := range g.Records {
		r := &g.Records[i]
		if isFoodInspection(r) && foldContains(detailText(r), "license") &&
			statusPassed(r) && withinDays(r, now, foodInspectionWindow) {
			return []model.NormalizedRecord{*r}
		}
	}
	return nil
}

// matchHiringCombo pairs a recent hiring posting with a nearby-in-time
// permit or license record.
func matchHiringCombo(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	recs := dated(g.Records)
	for ji := range recs {
		j := &recs[ji]
		if !isJobPosting(j) || !statusHiring(j) || !withinDays(j, now, hiringWindow) {
			continue
		}
		for oi := range recs {
			o := &recs[oi]
			if oi == ji || (!isPermit(o) && !isLicense(o)) {
				continue
			}
			if daysBetween(j, o) <= hiringPairGap {
				return []model.NormalizedRecord{*j, *o}
			}
		}
	}
	return nil
}

// matchBuildingPassLicense pairs a passed building inspection with an
// approved liquor license within 60 days, either order.
func matchBuildingPassLicense(g *model.AddressGroup, _ time.Time) []model.NormalizedRecord {
	recs := dated(g.Records)
	for bi := range recs {
		b := &recs[bi]
		if !isBuildingInspection(b) || !statusPassed(b) {
			continue
		}
		for li := range recs {
			l := &recs[li]
			if !isLiquorLicense(l) || !statusApproved(l) {
				continue
			}
			if daysBetween(b, l) <= buildingPassLicenseGap {
				return []model.NormalizedRecord{*b, *l}
			}
		}
	}
	return nil
}

// matchActiveLicenseFuture finds a license already in an active status whose
// start date is 0-90 days out.
func matchActiveLicenseFuture(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	for i := range g.Records {
		r := &g.Records[i]
		if !isLicense(r) || !statusActive(r) {
			continue
		}
		age, ok := ageDays(r, now)
		if ok && age <= 0 && age >= -activeLicenseHorizon {
			return []model.NormalizedRecord{*r}
		}
	}
	return nil
}

// matchCommercialPermit finds a recent permit whose text indicates a
// commercial, restaurant, or retail build-out.
func matchCommercialPermit(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	for i := range g.Records {
		r := &g.Records[i]
		if isPermit(r) && withinDays(r, now, commercialPermitWindow) &&
			foldContains(detailText(r), "commercial", "restaurant", "retail", "build-out", "buildout", "tenant") {
			return []model.NormalizedRecord{*r}
		}
	}
	return nil
}

// matchRecentApproval is the catch-all for license records that lack a
// descriptive type field: any approved-for-issuance status in the last 90
// days.
func matchRecentApproval(g *model.AddressGroup, now time.Time) []model.NormalizedRecord {
	for i := range g.Records {
		r := &g.Records[i]
		if statusApproved(r) && withinDays(r, now, recentApprovalWindow) {
			return []model.NormalizedRecord{*r}
		}
	}
	return nil
}
