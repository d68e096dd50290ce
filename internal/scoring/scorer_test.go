package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func rec(desc string, ageDays int) model.NormalizedRecord {
	d := testNow.AddDate(0, 0, -ageDays)
	return model.NormalizedRecord{
		City:        "chicago",
		Dataset:     "building_permits",
		Address:     "4800 N Damen Ave",
		Description: desc,
		EventDate:   &d,
	}
}

func evt(strength int, evidence ...model.NormalizedRecord) model.Event {
	return model.Event{
		ID:                "ev-1",
		City:              "chicago",
		Address:           "4800 N Damen Ave",
		Name:              "Damen Social House",
		Rule:              "permit_license_combo",
		SignalStrength:    strength,
		PredictedOpenWeek: testNow.AddDate(0, 0, 28),
		Evidence:          evidence,
		CreatedAt:         testNow,
	}
}

// failingOracle errors on every call, simulating a full outage.
type failingOracle struct{}

func (failingOracle) Classify(context.Context, string, string) (oracle.Classification, error) {
	return oracle.Classification{}, errors.New("oracle down")
}

func (failingOracle) Analyze(context.Context, string, string) (oracle.Analysis, error) {
	return oracle.Analysis{}, errors.New("oracle down")
}

func (failingOracle) OperationalStatus(context.Context, string, []string, string, *time.Time) (oracle.Status, error) {
	return oracle.Status{}, errors.New("oracle down")
}

func (failingOracle) ResolveEntity(context.Context, string, string, string, string) (oracle.Resolution, error) {
	return oracle.Resolution{}, errors.New("oracle down")
}

func richEvents() []model.Event {
	withContact := rec("dine-in restaurant build-out with tavern liquor license", 10)
	withContact.Payload = map[string]string{"phone": "312-555-0100"}
	return []model.Event{
		evt(80, withContact, rec("kitchen hood and ansul system installation", 8)),
		evt(60, rec("electrical service hookup for restaurant", 5)),
	}
}

func TestScoreBounds(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())

	total, components := s.Score(context.Background(), richEvents(), nil, testNow)
	require.NotNil(t, components)
	assert.Greater(t, total, 0.0)
	assert.LessOrEqual(t, total, MaxScore)
	for name, v := range components {
		assert.GreaterOrEqual(t, v, 0.0, name)
	}
}

func TestEmptyEvidenceScoresZero(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())

	total, components := s.Score(context.Background(), nil, nil, testNow)
	assert.Equal(t, 0.0, total)
	assert.Nil(t, components)

	total, components = s.Score(context.Background(), []model.Event{evt(80)}, nil, testNow)
	assert.Equal(t, 0.0, total)
	assert.Nil(t, components)
}

func TestOracleOutageStillProducesLead(t *testing.T) {
	s := NewScorer(failingOracle{})

	lead := s.BuildLead(context.Background(), richEvents(), nil, testNow)
	require.NotNil(t, lead)
	assert.Greater(t, lead.Score, 0.0)
	assert.LessOrEqual(t, lead.Score, MaxScore)
	// The oracle component degrades to the fixed fallback, never to zero or
	// an error.
	assert.Greater(t, lead.Components[CompOraclePotential], 0.0)
}

func TestRecencyStageLadder(t *testing.T) {
	tests := []struct {
		name string
		rec  model.NormalizedRecord
		want float64
	}{
		{"utility hookup", rec("electrical service hookup", 5), 35},
		{"equipment install", rec("kitchen hood installation", 10), 30},
		{"fresh generic", rec("interior alterations", 10), 18},
		{"month-old generic", rec("interior alterations", 20), 14},
		{"stale", rec("interior alterations", 100), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := windowsFor(typeUnknown, testNow)
			got := recencyComponent([]model.NormalizedRecord{tt.rec}, w, testNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaleStageSignalFallsToAgeBucket(t *testing.T) {
	// A hookup outside its window is not an advanced-stage signal anymore.
	w := windowsFor(typeUnknown, testNow)
	got := recencyComponent([]model.NormalizedRecord{rec("electrical service hookup", 50)}, w, testNow)
	assert.Equal(t, 10.0, got)
}

func TestTypeComplexityComponent(t *testing.T) {
	got := typeComplexityComponent(typeFullService, "tavern liquor license, kitchen hood", nil)
	assert.Equal(t, maxTypeComplexity, got)

	got = typeComplexityComponent(typeUnknown, "", nil)
	assert.Equal(t, 20.0, got)

	// Composite 0 dampens by 0.85, composite 100 amplifies but stays capped.
	got = typeComplexityComponent(typeUnknown, "", &model.BusinessIntelligence{Composite: 0})
	assert.InDelta(t, 17.0, got, 0.01)

	got = typeComplexityComponent(typeFullService, "liquor hood", &model.BusinessIntelligence{Composite: 100})
	assert.Equal(t, maxTypeComplexity, got)
}

func TestDensityComponent(t *testing.T) {
	assert.Equal(t, 20.0, densityComponent([]model.Event{evt(50), evt(60)}))
	assert.Equal(t, 15.0, densityComponent([]model.Event{evt(85)}))
	assert.Equal(t, 10.0, densityComponent([]model.Event{evt(50)}))
}

func TestContactComponent(t *testing.T) {
	r := rec("permit", 10)
	assert.Equal(t, 0.0, contactComponent([]model.NormalizedRecord{r}))

	r.Payload = map[string]string{"applicant_email": "owner@example.com"}
	assert.Equal(t, contactBonus, contactComponent([]model.NormalizedRecord{r}))
}

func TestOperationalLanguageCollapsesPotential(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())

	opening := []model.Event{evt(80, rec("new business build-out, coming soon, now hiring restaurant", 10))}
	operational := []model.Event{evt(80, rec("restaurant annual renewal after complaint violation, existing canvass", 10))}

	_, openComponents := s.Score(context.Background(), opening, nil, testNow)
	_, opComponents := s.Score(context.Background(), operational, nil, testNow)
	require.NotNil(t, openComponents)
	require.NotNil(t, opComponents)
	assert.Greater(t, openComponents[CompOraclePotential], opComponents[CompOraclePotential])
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())
	events := richEvents()

	a, _ := s.Score(context.Background(), events, nil, testNow)
	b, _ := s.Score(context.Background(), events, nil, testNow)
	assert.Equal(t, a, b)
}

func TestBuildLeadFields(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())

	lead := s.BuildLead(context.Background(), richEvents(), nil, testNow)
	require.NotNil(t, lead)
	assert.Equal(t, "4800 N Damen Ave", lead.Address)
	assert.Equal(t, "Damen Social House", lead.Name)
	assert.Equal(t, "312-555-0100", lead.Phone)
	assert.Equal(t, StageUtilityHookup, lead.ProjectStage)
	assert.Equal(t, 28, lead.DaysRemaining)
	assert.Equal(t, testNow, lead.CreatedAt)
	assert.Len(t, lead.Evidence, 2)
}

func TestBuildLeadNilWithoutEvidence(t *testing.T) {
	s := NewScorer(oracle.NewHeuristic())
	assert.Nil(t, s.BuildLead(context.Background(), nil, nil, testNow))
}

func TestProjectStagePaperworkFallback(t *testing.T) {
	stage := projectStage([]model.NormalizedRecord{rec("permit issued", 10)}, testNow)
	assert.Equal(t, StagePaperwork, stage)
}

func TestRankOrdering(t *testing.T) {
	older := testNow.AddDate(0, 0, -1)
	leads := []model.Lead{
		{ID: "a", Score: 90, CreatedAt: older},
		{ID: "b", Score: 110, CreatedAt: older},
		{ID: "c", Score: 90, CreatedAt: testNow},
	}

	Rank(leads)
	assert.Equal(t, "b", leads[0].ID)
	assert.Equal(t, "c", leads[1].ID)
	assert.Equal(t, "a", leads[2].ID)
}

func TestWinterWidensWindows(t *testing.T) {
	summer := windowsFor(typeFullService, testNow)
	winter := windowsFor(typeFullService, time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC))
	assert.Greater(t, winter.Permit, summer.Permit)
	assert.Greater(t, winter.Equipment, summer.Equipment)
}
