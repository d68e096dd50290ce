package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openings-cli/internal/model"
)

// testNow is the fixed evaluation time used across fusion tests.
var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// onDay returns a time n days after an arbitrary day-zero anchor that sits
// 85 days before testNow, so a day-90 license lands in the future at
// evaluation time.
func onDay(n int) *time.Time {
	t := testNow.AddDate(0, 0, n-85)
	return &t
}

// daysAgo returns a time n days before testNow.
func daysAgo(n int) *time.Time {
	t := testNow.AddDate(0, 0, -n)
	return &t
}

func grp(recs ...model.NormalizedRecord) *model.AddressGroup {
	return &model.AddressGroup{Address: "4800 N Damen Ave", Records: recs}
}

func civic(dataset, typ, status string, date *time.Time) model.NormalizedRecord {
	return model.NormalizedRecord{
		City:      "chicago",
		Dataset:   dataset,
		Address:   "4800 N Damen Ave",
		Type:      typ,
		Status:    status,
		EventDate: date,
	}
}

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	require.NoError(t, err)
	return e
}

func TestOpeningProgressionScenario(t *testing.T) {
	// Permit day 0, inspection day 40, approved liquor license day 90 —
	// still in the future at evaluation time.
	g := grp(
		civic("building_permits", "PERMIT - RENOVATION", "ISSUED", onDay(0)),
		civic("food_inspections", "License Inspection", "PASS", onDay(40)),
		civic("business_licenses", "Retail Food - Liquor", "AAI", onDay(90)),
	)

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, "opening_progression", ev.Rule)
	assert.Equal(t, 85, ev.SignalStrength)
	assert.Len(t, ev.Evidence, 3)
}

func TestProgressionRequiresFutureLicense(t *testing.T) {
	// Same shape but the license date is already past: progression must not
	// fire; the permit+license combo (80) picks it up instead.
	g := grp(
		civic("building_permits", "PERMIT - RENOVATION", "ISSUED", daysAgo(150)),
		civic("food_inspections", "License Inspection", "PASS", daysAgo(110)),
		civic("business_licenses", "Retail Food - Liquor", "AAI", daysAgo(60)),
	)

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, "permit_license_combo", ev.Rule)
	assert.Equal(t, 80, ev.SignalStrength)
}

func TestProgressionWindowBounds(t *testing.T) {
	// Permit→inspection gap over 120 days breaks the progression.
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", onDay(-40)),
		civic("food_inspections", "Inspection", "PASS", onDay(85)),
		civic("licenses", "Tavern Liquor License", "AAI", onDay(20)),
	)

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.NotEqual(t, "opening_progression", ev.Rule)
}

func TestRulePriorityHighestWins(t *testing.T) {
	// Satisfies both commercial_permit (60) and permit_license_combo (80):
	// the emitted Event must carry the higher strength, and only one Event
	// is emitted.
	g := grp(
		civic("building_permits", "PERMIT - NEW CONSTRUCTION", "ISSUED", daysAgo(20)),
		civic("licenses", "Consumption on Premises Liquor", "APPROVED", daysAgo(10)),
	)
	g.Records[0].Description = "commercial restaurant build-out"

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, 80, ev.SignalStrength)
}

func TestNoVacuousMatch(t *testing.T) {
	// permit_license_combo needs both kinds; a lone permit with an approved
	// status must not satisfy the pair rules. It does hit the catch-all.
	g := grp(civic("building_permits", "PERMIT", "APPROVED", daysAgo(10)))

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, "recent_approval", ev.Rule)
	assert.Equal(t, 50, ev.SignalStrength)
}

func TestUndatedRecordsSkipped(t *testing.T) {
	// Undated records must be skipped, not treated as day zero.
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", nil),
		civic("licenses", "Liquor License", "AAI", nil),
	)

	_, ok := mustEngine(t).Evaluate(g, testNow)
	assert.False(t, ok)
}

func TestNoMatchEmitsNothing(t *testing.T) {
	g := grp(civic("food_inspections", "Canvass", "FAIL", daysAgo(200)))
	_, ok := mustEngine(t).Evaluate(g, testNow)
	assert.False(t, ok)
}

func TestHiringCombo(t *testing.T) {
	g := grp(
		civic("job_postings", "Line Cook Posting", "HIRING", daysAgo(5)),
		civic("building_permits", "PERMIT - SIGNS", "ISSUED", daysAgo(30)),
	)

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, "hiring_combo", ev.Rule)
	assert.Equal(t, 75, ev.SignalStrength)
}

func TestActiveLicenseFutureStart(t *testing.T) {
	g := grp(civic("business_licenses", "Retail Food License", "AAC - ACTIVE", daysAgo(-30)))

	ev, ok := mustEngine(t).Evaluate(g, testNow)
	require.True(t, ok)
	assert.Equal(t, "active_license_future", ev.Rule)
}

func TestFoodInspectionPass(t *testing.T) {
	r := civic("food_inspections", "License Re-Inspection", "PASS", daysAgo(10))
	ev, ok := mustEngine(t).Evaluate(grp(r), testNow)
	require.True(t, ok)
	assert.Equal(t, "food_inspection_pass", ev.Rule)
	assert.Equal(t, 75, ev.SignalStrength)
}

func TestRulesByNameUnknownIsFatal(t *testing.T) {
	_, err := RulesByName([]string{"opening_progression", "definitely_not_a_rule"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely_not_a_rule")
}

func TestRulesByNameSubsetKeepsOrder(t *testing.T) {
	rules, err := RulesByName([]string{"recent_approval", "opening_progression"})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "opening_progression", rules[0].Name)
	assert.Equal(t, "recent_approval", rules[1].Name)
}

func TestDefaultRuleOrderDescending(t *testing.T) {
	rules := DefaultRules()
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Strength, rules[i].Strength)
	}
}

func TestPredictOpenWeekIsMonday(t *testing.T) {
	lic := civic("licenses", "Liquor License", "AAI", daysAgo(-10))
	wk := predictOpenWeek([]model.NormalizedRecord{lic}, testNow)
	assert.Equal(t, time.Monday, wk.Weekday())
	assert.True(t, wk.After(testNow.AddDate(0, 0, -7)))
}

func TestEvaluateDeterministic(t *testing.T) {
	g := grp(
		civic("building_permits", "PERMIT", "ISSUED", daysAgo(20)),
		civic("licenses", "Tavern Liquor", "AAI", daysAgo(5)),
	)
	e := mustEngine(t)

	a, okA := e.Evaluate(g, testNow)
	b, okB := e.Evaluate(g, testNow)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a.Rule, b.Rule)
	assert.Equal(t, a.SignalStrength, b.SignalStrength)
	assert.Equal(t, a.PredictedOpenWeek, b.PredictedOpenWeek)
	assert.Equal(t, a.Evidence, b.Evidence)
}
