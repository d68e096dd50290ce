package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/openings-cli/internal/model"
)

// BuildLead scores one address's Events and assembles the Lead. Returns nil
// when the events carry no evidence; the caller skips the address rather
// than emitting a zero-score Lead.
func (s *Scorer) BuildLead(ctx context.Context, events []model.Event, intel *model.BusinessIntelligence, now time.Time) *model.Lead {
	total, components := s.Score(ctx, events, intel, now)
	if components == nil {
		return nil
	}

	lead := &model.Lead{
		ID:           uuid.New().String(),
		Score:        total,
		Components:   components,
		Intelligence: intel,
		Evidence:     events,
		CreatedAt:    now,
	}

	primary := lead.PrimaryEvent()
	lead.City = primary.City
	lead.Address = primary.Address
	lead.Name = primary.Name
	lead.DaysRemaining = daysRemaining(primary, now)

	evidence := collectEvidence(events)
	lead.Phone, lead.Email = groupContact(evidence)
	lead.ProjectStage = projectStage(evidence, now)
	return lead
}

// projectStage reports the most advanced build-out stage the evidence
// supports, or "paperwork" when only permits and license records exist.
func projectStage(evidence []model.NormalizedRecord, now time.Time) string {
	hay := ""
	for i := range evidence {
		hay += recordText(&evidence[i]) + "\n"
	}
	w := windowsFor(detectRestaurantType(hay), now)
	if stage, _ := advancedStage(evidence, w, now); stage != "" {
		return stage
	}
	return StagePaperwork
}

func daysRemaining(ev *model.Event, now time.Time) int {
	if ev.PredictedOpenWeek.IsZero() {
		return 0
	}
	days := int(ev.PredictedOpenWeek.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// groupContact returns the first phone and first email found across the
// evidence, independently.
func groupContact(evidence []model.NormalizedRecord) (phone, email string) {
	for i := range evidence {
		p, e := evidence[i].Contact()
		if phone == "" {
			phone = p
		}
		if email == "" {
			email = e
		}
		if phone != "" && email != "" {
			break
		}
	}
	return phone, email
}

// Rank orders leads by score descending, creation time descending on ties.
func Rank(leads []model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
}
