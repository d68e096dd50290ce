package model

import "time"

// Service model labels derived by the business intelligence profiler.
const (
	ServiceFullService   = "full_service"
	ServiceFastCasual    = "fast_casual"
	ServiceTakeoutOnly   = "takeout_only"
	ServiceDeliveryFirst = "delivery_first"
	ServiceUnknown       = "unknown"
)

// Operator type labels derived by the business intelligence profiler.
const (
	OperatorChainExpansion   = "chain_expansion"
	OperatorExistingOperator = "existing_operator"
	OperatorNewOperator      = "new_operator"
	OperatorUnknown          = "unknown"
)

// BusinessIntelligence holds the secondary attributes the profiler derives
// from an Event's evidence. Composite is a 0-100 weighted score over the
// named filter matches; it feeds the main score as one input, never as a
// replacement for it.
type BusinessIntelligence struct {
	ServiceModel      string   `json:"service_model"`
	OperatorType      string   `json:"operator_type"`
	SeatCapacity      int      `json:"seat_capacity,omitempty"`
	SquareFootage     int      `json:"square_footage,omitempty"`
	LiquorLicenseType string   `json:"liquor_license_type,omitempty"`
	KitchenComplexity string   `json:"kitchen_complexity,omitempty"`
	FilterMatches     []string `json:"filter_matches,omitempty"`
	Composite         float64  `json:"composite_score"`
}

// Lead is the final ranked unit: a scored business-opening candidate at one
// address. Score is recomputed deterministically from Evidence; a Lead is
// never mutated after scoring — deduplication deletes the lower-scoring Lead
// of a matched pair, it does not edit fields.
type Lead struct {
	ID            string                `json:"id"`
	City          string                `json:"city,omitempty"`
	Address       string                `json:"address"`
	Name          string                `json:"name,omitempty"`
	Phone         string                `json:"phone,omitempty"`
	Email         string                `json:"email,omitempty"`
	Score         float64               `json:"score"`
	Components    map[string]float64    `json:"component_scores,omitempty"`
	ProjectStage  string                `json:"project_stage,omitempty"`
	DaysRemaining int                   `json:"days_remaining,omitempty"`
	Intelligence  *BusinessIntelligence `json:"business_intelligence,omitempty"`
	Evidence      []Event               `json:"evidence"`
	CreatedAt     time.Time             `json:"created_at"`
}

// PrimaryEvent returns the strongest Event backing this Lead, or nil for an
// evidence-free Lead (which scores zero by construction).
func (l *Lead) PrimaryEvent() *Event {
	var best *Event
	for i := range l.Evidence {
		if best == nil || l.Evidence[i].SignalStrength > best.SignalStrength {
			best = &l.Evidence[i]
		}
	}
	return best
}
