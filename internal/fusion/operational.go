package fusion

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
)

// FilterConfig holds the operational-filter windows, in days.
type FilterConfig struct {
	RecentInspectionDays    int     // non-licensing inspection lookback (default 90)
	ActiveLicenseDays       int     // active business license minimum age (default 90)
	EstablishedLicenseDays  int     // license age marking an established business (default 365)
	EstablishedLicenseCount int     // license count marking an established business (default 3)
	RecentActivityDays      int     // required freshness of latest activity (default 120)
	OracleConfidence        float64 // oracle operational-judgment threshold (default 75)
}

// DefaultFilterConfig returns the standard windows.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		RecentInspectionDays:    90,
		ActiveLicenseDays:       90,
		EstablishedLicenseDays:  365,
		EstablishedLicenseCount: 3,
		RecentActivityDays:      120,
		OracleConfidence:        75,
	}
}

func (c FilterConfig) withDefaults() FilterConfig {
	d := DefaultFilterConfig()
	if c.RecentInspectionDays <= 0 {
		c.RecentInspectionDays = d.RecentInspectionDays
	}
	if c.ActiveLicenseDays <= 0 {
		c.ActiveLicenseDays = d.ActiveLicenseDays
	}
	if c.EstablishedLicenseDays <= 0 {
		c.EstablishedLicenseDays = d.EstablishedLicenseDays
	}
	if c.EstablishedLicenseCount <= 0 {
		c.EstablishedLicenseCount = d.EstablishedLicenseCount
	}
	if c.RecentActivityDays <= 0 {
		c.RecentActivityDays = d.RecentActivityDays
	}
	if c.OracleConfidence <= 0 {
		c.OracleConfidence = d.OracleConfidence
	}
	return c
}

// History holds the full historical record sets at one address for the
// dataset categories the filter reasons over.
type History struct {
	Licenses         []model.NormalizedRecord
	BusinessLicenses []model.NormalizedRecord
	Inspections      []model.NormalizedRecord
}

// HistoryFor splits a group's records into the filter's categories.
func HistoryFor(g *model.AddressGroup) History {
	var h History
	for i := range g.Records {
		r := g.Records[i]
		switch {
		case foldContains(kindText(&r), "business license", "business_license"):
			h.BusinessLicenses = append(h.BusinessLicenses, r)
			h.Licenses = append(h.Licenses, r)
		case isLicense(&r):
			h.Licenses = append(h.Licenses, r)
		case isInspection(&r):
			h.Inspections = append(h.Inspections, r)
		}
	}
	return h
}

// Filter decides "new opening" vs "existing business" for an address,
// independent of the rule engine. Licensing inspections and approvals are
// pre-opening signals; recurring or long-lived license history indicates an
// operating business; the liquor-approval requirement anchors the filter to
// a concrete, hard-to-fake opening signal.
type Filter struct {
	cfg FilterConfig
	orc oracle.Oracle
}

// NewFilter creates an operational filter. orc may not be nil; pass the
// heuristic oracle for offline runs.
func NewFilter(cfg FilterConfig, orc oracle.Oracle) *Filter {
	return &Filter{cfg: cfg.withDefaults(), orc: orc}
}

// Filter rejection reasons, reported in run stats.
const (
	ReasonRecentInspection  = "recent_inspection"
	ReasonActiveLicense     = "active_license"
	ReasonEstablished       = "established"
	ReasonOracleOperational = "oracle_operational"
	ReasonNoLiquorApproval  = "no_liquor_approval"
	ReasonStaleActivity     = "stale_activity"
)

// IsNewOpening runs the decision ladder; the first step that fires decides.
// Returns true with an empty reason for a credible new-opening candidate,
// or false with the rejecting step's reason.
func (f *Filter) IsNewOpening(ctx context.Context, g *model.AddressGroup, hist History, now time.Time) (bool, string) {
	// 1. A routine (non-licensing) inspection in the recent window means
	// somebody is already cooking.
	for i := range hist.Inspections {
		r := &hist.Inspections[i]
		if !isLicensingInspection(r) && withinDays(r, now, f.cfg.RecentInspectionDays) {
			return false, ReasonRecentInspection
		}
	}

	// 2. An active business license issued beyond the new-license window.
	for i := range hist.BusinessLicenses {
		r := &hist.BusinessLicenses[i]
		if !statusActive(r) {
			continue
		}
		if age, ok := ageDays(r, now); ok && age > f.cfg.ActiveLicenseDays {
			return false, ReasonActiveLicense
		}
	}

	// 3. Deep license history marks an established business.
	if len(hist.Licenses) >= f.cfg.EstablishedLicenseCount {
		return false, ReasonEstablished
	}
	for i := range hist.Licenses {
		if age, ok := ageDays(&hist.Licenses[i], now); ok && age > f.cfg.EstablishedLicenseDays {
			return false, ReasonEstablished
		}
	}

	// 4. Oracle judgment, honored only above the confidence threshold.
	if status, err := f.orc.OperationalStatus(ctx, groupText(g), groupTypes(g), g.Name(), latestDate(g)); err == nil {
		if status.IsOperational && status.Confidence > f.cfg.OracleConfidence {
			return false, ReasonOracleOperational
		}
	} else {
		zap.L().Warn("opfilter: oracle status unavailable", zap.String("address", g.Address), zap.Error(err))
	}

	// 5. Positive requirement: an approved liquor-type license.
	if !hasLiquorApproval(g, hist) {
		return false, ReasonNoLiquorApproval
	}

	// 6. The latest past-dated activity must be fresh. Future-dated records
	// (e.g. a license start date) don't count as activity.
	latest, ok := latestPastAge(g, now)
	if !ok || latest > f.cfg.RecentActivityDays {
		return false, ReasonStaleActivity
	}

	return true, ""
}

func hasLiquorApproval(g *model.AddressGroup, hist History) bool {
	check := func(recs []model.NormalizedRecord) bool {
		for i := range recs {
			if isLiquorLicense(&recs[i]) && statusApproved(&recs[i]) {
				return true
			}
		}
		return false
	}
	return check(hist.Licenses) || check(g.Records)
}

// latestPastAge returns the age in days of the most recent record dated at
// or before now. ok is false when no record carries a past date.
func latestPastAge(g *model.AddressGroup, now time.Time) (int, bool) {
	best := -1
	for i := range g.Records {
		age, ok := ageDays(&g.Records[i], now)
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

func latestDate(g *model.AddressGroup) *time.Time {
	var latest *time.Time
	for i := range g.Records {
		d := g.Records[i].EventDate
		if d == nil {
			continue
		}
		if latest == nil || d.After(*latest) {
			latest = d
		}
	}
	return latest
}

func groupText(g *model.AddressGroup) string {
	var parts []string
	for i := range g.Records {
		if t := g.Records[i].Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func groupTypes(g *model.AddressGroup) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range g.Records {
		t := strings.TrimSpace(g.Records[i].Type)
		if t == "" {
			t = strings.TrimSpace(g.Records[i].Dataset)
		}
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
