// Package fusion groups civic records by address, screens out
// already-operating businesses, and applies the ordered opening-signal rules
// that emit at most one Event per address.
package fusion

import (
	"strings"
	"time"

	"github.com/sells-group/openings-cli/internal/model"
)

// Record kind and status matching is case-insensitive substring matching
// over free-text fields. Civic portals do not share an enum: Chicago says
// "AAI" where another city says "Approved for Issuance", and a single portal
// mixes "PERMIT - RENOVATION/ALTERATION" with "building_permits".

func foldContains(hay string, frags ...string) bool {
	hay = strings.ToLower(hay)
	for _, f := range frags {
		if strings.Contains(hay, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func kindText(r *model.NormalizedRecord) string { return r.Dataset + " " + r.Type }
func detailText(r *model.NormalizedRecord) string {
	return r.Dataset + " " + r.Type + " " + r.Description
}

func isPermit(r *model.NormalizedRecord) bool {
	return foldContains(kindText(r), "permit")
}

func isInspection(r *model.NormalizedRecord) bool {
	return foldContains(kindText(r), "inspection")
}

func isLicense(r *model.NormalizedRecord) bool {
	return foldContains(kindText(r), "license")
}

func isJobPosting(r *model.NormalizedRecord) bool {
	return foldContains(kindText(r), "job", "posting", "hiring")
}

func isBuildingInspection(r *model.NormalizedRecord) bool {
	return isInspection(r) && foldContains(detailText(r), "building")
}

func isFoodInspection(r *model.NormalizedRecord) bool {
	return isInspection(r) && foldContains(detailText(r), "food")
}

// isLicensingInspection marks pre-opening inspections tied to a license
// application, as opposed to routine canvass or complaint inspections.
func isLicensingInspection(r *model.NormalizedRecord) bool {
	return isInspection(r) && foldContains(detailText(r), "license")
}

func isLiquorLicense(r *model.NormalizedRecord) bool {
	return isLicense(r) && foldContains(detailText(r), "liquor", "tavern", "alcohol", "consumption on premises")
}

// statusApproved matches approved-for-issuance statuses ("AAI" is Chicago's
// code for it).
func statusApproved(r *model.NormalizedRecord) bool {
	return foldContains(r.Status, "aai", "approved", "issuance")
}

func statusActive(r *model.NormalizedRecord) bool {
	return foldContains(r.Status, "aac", "active", "issued")
}

func statusPassed(r *model.NormalizedRecord) bool {
	return foldContains(r.Status, "pass")
}

func statusHiring(r *model.NormalizedRecord) bool {
	return foldContains(r.Status, "hiring", "posted")
}

// dated filters to records with a parseable event date. Records without one
// are skipped by every window check, never treated as day zero.
func dated(records []model.NormalizedRecord) []model.NormalizedRecord {
	out := make([]model.NormalizedRecord, 0, len(records))
	for i := range records {
		if records[i].EventDate != nil {
			out = append(out, records[i])
		}
	}
	return out
}

// withinDays reports whether the record's date falls in the last n days
// (inclusive), excluding future dates.
func withinDays(r *model.NormalizedRecord, now time.Time, n int) bool {
	age, ok := ageDays(r, now)
	return ok && age >= 0 && age <= n
}

func ageDays(r *model.NormalizedRecord, now time.Time) (int, bool) {
	if r.EventDate == nil {
		return 0, false
	}
	return int(now.Sub(*r.EventDate).Hours() / 24), true
}

// daysBetween returns the absolute gap in days between two dated records.
func daysBetween(a, b *model.NormalizedRecord) int {
	d := a.EventDate.Sub(*b.EventDate)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
