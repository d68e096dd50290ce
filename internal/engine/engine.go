// Package engine orchestrates a fusion run: group records by address,
// screen out operating businesses, match opening-signal rules, profile and
// score the survivors, and rank the resulting leads.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/openings-cli/internal/dedupe"
	"github.com/sells-group/openings-cli/internal/fusion"
	"github.com/sells-group/openings-cli/internal/geomatch"
	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
	"github.com/sells-group/openings-cli/internal/profile"
	"github.com/sells-group/openings-cli/internal/scoring"
)

// Config holds the run-level knobs. Zero values select the defaults.
type Config struct {
	ChunkSize   int      // address groups per chunk (default 1000)
	Parallelism int      // concurrent group evaluations per chunk (default 8)
	ToleranceM  float64  // address-match tolerance in meters (default 100)
	RuleNames   []string // enabled fusion rules (nil enables all)
	Filter      fusion.FilterConfig
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 8
	}
	if c.ToleranceM <= 0 {
		c.ToleranceM = 100
	}
	return c
}

// Engine wires the pipeline stages together. Construct once per run
// configuration; Run may be called repeatedly.
type Engine struct {
	cfg      Config
	orc      oracle.Oracle
	matcher  *geomatch.Matcher
	filter   *fusion.Filter
	rules    *fusion.Engine
	profiler *profile.Profiler
	scorer   *scoring.Scorer
	deduper  *dedupe.Deduper

	nowFunc func() time.Time
}

// New builds an engine from the config and a shared oracle. The deduper may
// be nil to skip the dedup pass entirely.
func New(cfg Config, orc oracle.Oracle, deduper *dedupe.Deduper) (*Engine, error) {
	cfg = cfg.withDefaults()
	rules, err := fusion.NewEngine(cfg.RuleNames)
	if err != nil {
		return nil, eris.Wrap(err, "engine: build rule engine")
	}
	return &Engine{
		cfg:      cfg,
		orc:      orc,
		matcher:  geomatch.NewMatcher(cfg.ToleranceM),
		filter:   fusion.NewFilter(cfg.Filter, orc),
		rules:    rules,
		profiler: profile.NewProfiler(orc),
		scorer:   scoring.NewScorer(orc),
		deduper:  deduper,
		nowFunc:  time.Now,
	}, nil
}

// Run executes the pipeline over one city's records and returns the ranked
// leads. A context cancellation aborts between chunks; leads from completed
// chunks are returned alongside the error, each independently valid.
func (e *Engine) Run(ctx context.Context, records []model.NormalizedRecord) ([]model.Lead, model.RunStats, error) {
	start := e.nowFunc()
	now := start

	stats := model.RunStats{RecordsIn: len(records)}
	groups := geomatch.Group(e.matcher, records)
	stats.AddressesEvaluated = len(groups)

	zap.L().Info("engine: run starting",
		zap.Int("records", len(records)),
		zap.Int("addresses", len(groups)),
		zap.Int("chunk_size", e.cfg.ChunkSize),
	)

	var (
		mu       sync.Mutex
		leads    []model.Lead
		filtered atomic.Int64
		unmatch  atomic.Int64
		errored  atomic.Int64
		events   atomic.Int64
	)

	var runErr error
	for chunkStart := 0; chunkStart < len(groups); chunkStart += e.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			runErr = eris.Wrap(err, "engine: run aborted between chunks")
			break
		}
		end := chunkStart + e.cfg.ChunkSize
		if end > len(groups) {
			end = len(groups)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Parallelism)
		for _, grp := range groups[chunkStart:end] {
			grp := grp
			g.Go(func() error {
				lead, outcome := e.evaluate(gctx, grp, now)
				switch outcome {
				case outcomeFiltered:
					filtered.Add(1)
				case outcomeUnmatched:
					unmatch.Add(1)
				case outcomeErrored:
					errored.Add(1)
				case outcomeLead:
					events.Add(1)
					mu.Lock()
					leads = append(leads, *lead)
					mu.Unlock()
				}
				return nil
			})
		}
		// Workers never return errors; a failed address is counted, not
		// propagated, so one address cannot abort the batch.
		_ = g.Wait()
	}

	stats.OperationalFiltered = int(filtered.Load())
	stats.RuleUnmatched = int(unmatch.Load())
	stats.Errored = int(errored.Load())
	stats.EventsEmitted = int(events.Load())

	if e.deduper != nil {
		var dropped int
		leads, dropped = e.deduper.Run(ctx, leads)
		stats.LeadsDeduped = dropped
	}
	scoring.Rank(leads)
	stats.LeadsProduced = len(leads)

	if counter, ok := e.orc.(oracle.FallbackCounter); ok {
		stats.OracleFallbacks = int(counter.FallbackCount())
	}
	stats.Duration = e.nowFunc().Sub(start)

	zap.L().Info("engine: run complete",
		zap.Int("leads", stats.LeadsProduced),
		zap.Int("filtered", stats.OperationalFiltered),
		zap.Int("unmatched", stats.RuleUnmatched),
		zap.Int("errored", stats.Errored),
		zap.Int("deduped", stats.LeadsDeduped),
		zap.Duration("elapsed", stats.Duration),
	)
	return leads, stats, runErr
}

type outcome int

const (
	outcomeLead outcome = iota
	outcomeFiltered
	outcomeUnmatched
	outcomeErrored
)

// evaluate runs one address group through filter, rules, profile, and
// scoring. Panics are contained so a malformed address cannot take down the
// run.
func (e *Engine) evaluate(ctx context.Context, grp *model.AddressGroup, now time.Time) (lead *model.Lead, out outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("engine: address evaluation panicked",
				zap.String("address", grp.Address),
				zap.Any("panic", r))
			lead, out = nil, outcomeErrored
		}
	}()

	ok, reason := e.filter.IsNewOpening(ctx, grp, fusion.HistoryFor(grp), now)
	if !ok {
		zap.L().Debug("engine: address filtered",
			zap.String("address", grp.Address),
			zap.String("reason", reason))
		return nil, outcomeFiltered
	}

	ev, matched := e.rules.Evaluate(grp, now)
	if !matched {
		return nil, outcomeUnmatched
	}

	intel := e.profiler.Profile(ctx, ev, now)
	lead = e.scorer.BuildLead(ctx, []model.Event{*ev}, intel, now)
	if lead == nil {
		return nil, outcomeUnmatched
	}
	return lead, outcomeLead
}
