package fusion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openings-cli/internal/oracle"
)

// stubOracle returns a fixed operational-status judgment.
type stubOracle struct {
	oracle.Heuristic
	status oracle.Status
}

func (s *stubOracle) OperationalStatus(context.Context, string, []string, string, *time.Time) (oracle.Status, error) {
	return s.status, nil
}

func newTestFilter(status oracle.Status) *Filter {
	return NewFilter(DefaultFilterConfig(), &stubOracle{status: status})
}

func quietOracle() *Filter {
	return newTestFilter(oracle.Status{IsOperational: false, Confidence: 40})
}

func TestFilterNewOpeningPasses(t *testing.T) {
	g := grp(
		civic("building_permits", "PERMIT - RENOVATION", "ISSUED", daysAgo(40)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(10)),
	)

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestFilterRecentRoutineInspection(t *testing.T) {
	g := grp(
		civic("food_inspections", "Canvass Inspection", "PASS", daysAgo(30)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(10)),
	)

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonRecentInspection, reason)
}

func TestFilterLicensingInspectionDoesNotReject(t *testing.T) {
	// A license-related inspection is a pre-opening signal, not evidence of
	// an operating business.
	g := grp(
		civic("food_inspections", "License Inspection", "PASS", daysAgo(30)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(10)),
	)

	ok, _ := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.True(t, ok)
}

func TestFilterActiveLicenseWinsOverApproval(t *testing.T) {
	// A 200-day-old active business license excludes the address even when
	// a liquor approval dated yesterday would satisfy the positive
	// requirement: step 2 fires before step 5.
	g := grp(
		civic("business_licenses", "Retail Food Business License", "AAC - ACTIVE", daysAgo(200)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(1)),
	)

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonActiveLicense, reason)
}

func TestFilterStaleLicenseEstablished(t *testing.T) {
	// Single license 400 days old, status active, nothing else: established.
	g := grp(civic("licenses", "Retail Food License", "AAC - ACTIVE", daysAgo(400)))

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonEstablished, reason)
}

func TestFilterThreeLicensesEstablished(t *testing.T) {
	g := grp(
		civic("licenses", "Retail Food License", "AAI", daysAgo(10)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(20)),
		civic("licenses", "Sidewalk Cafe License", "AAI", daysAgo(30)),
	)

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonEstablished, reason)
}

func TestFilterOracleOperationalHighConfidence(t *testing.T) {
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", daysAgo(40)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(10)),
	)

	f := newTestFilter(oracle.Status{IsOperational: true, Confidence: 90})
	ok, reason := f.IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonOracleOperational, reason)
}

func TestFilterOracleLowConfidenceIgnored(t *testing.T) {
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", daysAgo(40)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(10)),
	)

	f := newTestFilter(oracle.Status{IsOperational: true, Confidence: 60})
	ok, _ := f.IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.True(t, ok)
}

func TestFilterRequiresLiquorApproval(t *testing.T) {
	g := grp(civic("building_permits", "PERMIT - RENOVATION", "ISSUED", daysAgo(20)))

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonNoLiquorApproval, reason)
}

func TestFilterStaleActivity(t *testing.T) {
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", daysAgo(300)),
		civic("licenses", "Tavern Liquor License", "AAI", daysAgo(150)),
	)

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonStaleActivity, reason)
}

func TestFilterFutureOnlyActivityRejected(t *testing.T) {
	// A lone future-dated license start is not recent activity.
	g := grp(civic("licenses", "Tavern Liquor License", "AAI", daysAgo(-30)))

	ok, reason := quietOracle().IsNewOpening(context.Background(), g, HistoryFor(g), testNow)
	assert.False(t, ok)
	assert.Equal(t, ReasonStaleActivity, reason)
}

func TestHistoryForSplitsCategories(t *testing.T) {
	g := grp(
		civic("business_licenses", "Retail Food", "AAI", daysAgo(1)),
		civic("licenses", "Tavern Liquor", "AAI", daysAgo(2)),
		civic("food_inspections", "Canvass", "PASS", daysAgo(3)),
		civic("building_permits", "PERMIT", "ISSUED", daysAgo(4)),
	)
	h := HistoryFor(g)
	require.Len(t, h.BusinessLicenses, 1)
	assert.Len(t, h.Licenses, 2)
	assert.Len(t, h.Inspections, 1)
}

func TestFilterDefaultsApplied(t *testing.T) {
	f := NewFilter(FilterConfig{}, oracle.NewHeuristic())
	assert.Equal(t, 90, f.cfg.RecentInspectionDays)
	assert.Equal(t, 365, f.cfg.EstablishedLicenseDays)
	assert.Equal(t, 75.0, f.cfg.OracleConfidence)
}
