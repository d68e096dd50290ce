package fusion

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
)

// Engine evaluates the ordered rule list against address groups. Evaluation
// is pure and synchronous — safe to call concurrently from many goroutines.
type Engine struct {
	rules []Rule
}

// NewEngine creates a fusion engine with the given rule names (nil enables
// every rule). Returns a configuration error for unknown names.
func NewEngine(ruleNames []string) (*Engine, error) {
	rules, err := RulesByName(ruleNames)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(rules); i++ {
		if rules[i].Strength > rules[i-1].Strength {
			return nil, eris.Errorf("fusion: rule %q out of strength order", rules[i].Name)
		}
	}
	return &Engine{rules: rules}, nil
}

// Evaluate runs the group through the rules in order and returns the Event
// for the first match, or (nil, false) when no rule matches. At most one
// Event is emitted per group per pass.
func (e *Engine) Evaluate(g *model.AddressGroup, now time.Time) (*model.Event, bool) {
	for _, rule := range e.rules {
		evidence := rule.match(g, now)
		if evidence == nil {
			continue
		}

		ev := &model.Event{
			ID:                uuid.New().String(),
			Address:           g.Address,
			Name:              g.Name(),
			Rule:              rule.Name,
			SignalStrength:    rule.Strength,
			PredictedOpenWeek: predictOpenWeek(evidence, now),
			Evidence:          evidence,
			CreatedAt:         now,
		}
		if len(g.Records) > 0 {
			ev.City = g.Records[0].City
		}

		zap.L().Debug("fusion: rule matched",
			zap.String("address", g.Address),
			zap.String("rule", rule.Name),
			zap.Int("strength", rule.Strength),
			zap.Int("evidence", len(evidence)),
		)
		return ev, true
	}
	return nil, false
}

// openOffsetDays maps the kind of the most recent evidence record to the
// typical days between that signal and doors opening. A liquor license in
// hand means weeks out; a permit means the build-out hasn't started.
func openOffsetDays(r *model.NormalizedRecord) int {
	switch {
	case isLiquorLicense(r) || isLicense(r):
		return 21
	case isInspection(r):
		return 28
	case isJobPosting(r):
		return 14
	case isPermit(r):
		return 60
	default:
		return 30
	}
}

// predictOpenWeek derives the predicted opening week from the most recent
// dated evidence record and its kind, truncated to the Monday of that week.
// A prediction already in the past is pushed two weeks out from now.
func predictOpenWeek(evidence []model.NormalizedRecord, now time.Time) time.Time {
	var latest *model.NormalizedRecord
	for i := range evidence {
		r := &evidence[i]
		if r.EventDate == nil {
			continue
		}
		if latest == nil || r.EventDate.After(*latest.EventDate) {
			latest = r
		}
	}

	var predicted time.Time
	if latest == nil {
		predicted = now.AddDate(0, 0, 30)
	} else {
		predicted = latest.EventDate.AddDate(0, 0, openOffsetDays(latest))
	}
	if predicted.Before(now) {
		predicted = now.AddDate(0, 0, 14)
	}
	return weekStart(predicted)
}

// weekStart truncates to the Monday of the date's ISO week, at UTC midnight.
func weekStart(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// SortEvents orders events by signal strength descending, address ascending
// for a stable report order.
func SortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].SignalStrength != events[j].SignalStrength {
			return events[i].SignalStrength > events[j].SignalStrength
		}
		return events[i].Address < events[j].Address
	})
}
