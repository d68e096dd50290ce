package scoring

import (
	"strings"
	"time"

	"github.com/sells-group/openings-cli/internal/model"
)

// Restaurant types used for window selection and base scoring. These are
// coarser than the profiler's service model: scoring only needs to know how
// long this kind of build-out usually runs.
const (
	typeFullService = "full_service"
	typeFastCasual  = "fast_casual"
	typeFastFood    = "fast_food"
	typeUnknown     = "unknown"
)

var restaurantTypeMarkers = []struct {
	label     string
	fragments []string
}{
	{typeFastFood, []string{"fast food", "drive-thru", "drive thru", "drive-through"}},
	{typeFastCasual, []string{"fast casual", "fast-casual", "counter service", "quick service", "cafe", "coffee"}},
	{typeFullService, []string{"full service", "dine-in", "dine in", "table service", "tavern", "brewpub", "fine dining", "restaurant", "bar and grill"}},
}

// detectRestaurantType classifies the combined evidence text. Fast-food
// markers are checked first: a drive-thru permit often also says
// "restaurant", and the more specific label should win.
func detectRestaurantType(hay string) string {
	for _, entry := range restaurantTypeMarkers {
		for _, f := range entry.fragments {
			if strings.Contains(hay, f) {
				return entry.label
			}
		}
	}
	return typeUnknown
}

// signalWindows holds the expected days between each stage signal and
// opening day, per restaurant type. A signal older than its window has gone
// stale: the opening either happened or stalled.
type signalWindows struct {
	Permit         int
	License        int
	InspectionPass int
	Equipment      int
	UtilityHookup  int
}

var windowsByType = map[string]signalWindows{
	typeFullService: {Permit: 180, License: 60, InspectionPass: 45, Equipment: 30, UtilityHookup: 21},
	typeFastCasual:  {Permit: 120, License: 45, InspectionPass: 30, Equipment: 21, UtilityHookup: 14},
	typeFastFood:    {Permit: 90, License: 30, InspectionPass: 21, Equipment: 14, UtilityHookup: 10},
	typeUnknown:     {Permit: 150, License: 60, InspectionPass: 35, Equipment: 21, UtilityHookup: 14},
}

// seasonFactor widens the windows over the winter months, when Chicago
// build-outs reliably slip.
func seasonFactor(now time.Time) float64 {
	switch now.Month() {
	case time.November, time.December, time.January, time.February:
		return 1.25
	default:
		return 1.0
	}
}

func windowsFor(restaurantType string, now time.Time) signalWindows {
	w, ok := windowsByType[restaurantType]
	if !ok {
		w = windowsByType[typeUnknown]
	}
	f := seasonFactor(now)
	w.Permit = int(float64(w.Permit) * f)
	w.License = int(float64(w.License) * f)
	w.InspectionPass = int(float64(w.InspectionPass) * f)
	w.Equipment = int(float64(w.Equipment) * f)
	w.UtilityHookup = int(float64(w.UtilityHookup) * f)
	return w
}

// Project stages, most advanced first. The stage ladder drives both the
// recency component and the Lead's reported project stage.
const (
	StageUtilityHookup    = "utility_hookup"
	StageEquipmentInstall = "equipment_install"
	StageFoodInspection   = "food_inspection_pass"
	StageBuildingPass     = "building_inspection_pass"
	StagePaperwork        = "paperwork"
)

var (
	utilityMarkers = []string{
		"utility", "electrical service", "gas service", "water service",
		"hookup", "hook-up", "meter install", "service upgrade",
	}
	equipmentMarkers = []string{
		"equipment", "hood", "fryer", "walk-in", "walk in cooler",
		"refrigeration", "kitchen install", "ansul",
	}
)

func recordText(r *model.NormalizedRecord) string {
	return strings.ToLower(r.Dataset + " " + r.Type + " " + r.Status + " " + r.Description)
}

func containsAny(hay string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(hay, f) {
			return true
		}
	}
	return false
}

func isUtilitySignal(r *model.NormalizedRecord) bool {
	return containsAny(recordText(r), utilityMarkers)
}

func isEquipmentSignal(r *model.NormalizedRecord) bool {
	return containsAny(recordText(r), equipmentMarkers)
}

func isFoodInspectionPass(r *model.NormalizedRecord) bool {
	hay := recordText(r)
	return strings.Contains(hay, "inspection") && strings.Contains(hay, "food") &&
		strings.Contains(strings.ToLower(r.Status), "pass")
}

func isBuildingInspectionPass(r *model.NormalizedRecord) bool {
	hay := recordText(r)
	return strings.Contains(hay, "inspection") && strings.Contains(hay, "building") &&
		strings.Contains(strings.ToLower(r.Status), "pass")
}

// withinWindow reports whether the record's age sits inside [0, days].
func withinWindow(r *model.NormalizedRecord, now time.Time, days int) bool {
	age, ok := r.AgeDays(now)
	return ok && age >= 0 && age <= days
}

// advancedStage walks the stage ladder top-down and returns the most
// advanced stage with a signal inside its window, plus that signal's record.
// Returns ("", nil) when only generic-age signals remain.
func advancedStage(evidence []model.NormalizedRecord, w signalWindows, now time.Time) (string, *model.NormalizedRecord) {
	ladder := []struct {
		stage  string
		window int
		match  func(*model.NormalizedRecord) bool
	}{
		{StageUtilityHookup, w.UtilityHookup, isUtilitySignal},
		{StageEquipmentInstall, w.Equipment, isEquipmentSignal},
		{StageFoodInspection, w.InspectionPass, isFoodInspectionPass},
		{StageBuildingPass, w.InspectionPass, isBuildingInspectionPass},
	}
	for _, step := range ladder {
		for i := range evidence {
			r := &evidence[i]
			if step.match(r) && withinWindow(r, now, step.window) {
				return step.stage, r
			}
		}
	}
	return "", nil
}
