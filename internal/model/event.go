package model

import "time"

// Event is the output of one fusion rule match at one address. An address
// yields at most one Event per fusion pass — the engine stops at the first
// matching rule — so SignalStrength always equals that rule's fixed weight.
type Event struct {
	ID                string             `json:"id"`
	City              string             `json:"city,omitempty"`
	Address           string             `json:"address"`
	Name              string             `json:"name,omitempty"`
	Rule              string             `json:"rule"`
	SignalStrength    int                `json:"signal_strength"`
	PredictedOpenWeek time.Time          `json:"predicted_open_week"`
	Evidence          []NormalizedRecord `json:"evidence"`
	CreatedAt         time.Time          `json:"created_at"`
}

// LatestEvidence returns the most recent dated evidence record, or nil when
// no evidence carries a parseable date.
func (e *Event) LatestEvidence() *NormalizedRecord {
	var latest *NormalizedRecord
	for i := range e.Evidence {
		r := &e.Evidence[i]
		if r.EventDate == nil {
			continue
		}
		if latest == nil || r.EventDate.After(*latest.EventDate) {
			latest = r
		}
	}
	return latest
}
