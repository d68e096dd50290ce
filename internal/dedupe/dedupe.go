// Package dedupe collapses near-duplicate Leads by asking the oracle
// whether two leads describe the same business.
package dedupe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/model"
	"github.com/sells-group/openings-cli/internal/oracle"
)

// DefaultThreshold is the resolution confidence above which a pair is
// collapsed.
const DefaultThreshold = 80.0

// Deduper runs the optional pairwise duplicate-elimination pass. It is
// strictly pairwise: a ternary near-duplicate chain may not fully collapse
// in one pass, which is accepted.
type Deduper struct {
	orc       oracle.Oracle
	threshold float64
	enabled   bool
}

// New creates a deduper. A threshold of zero or below selects the default.
func New(orc oracle.Oracle, threshold float64, enabled bool) *Deduper {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduper{orc: orc, threshold: threshold, enabled: enabled}
}

// Run returns the surviving leads in their input order and the number
// dropped. When two leads resolve to the same business above the threshold,
// the lower-scoring one is dropped; leads are never merged or edited.
// Resolution failures keep both leads.
func (d *Deduper) Run(ctx context.Context, leads []model.Lead) ([]model.Lead, int) {
	if !d.enabled || len(leads) < 2 {
		return leads, 0
	}

	start := time.Now()
	dropped := make([]bool, len(leads))
	for i := 0; i < len(leads); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(leads); j++ {
			if dropped[j] {
				continue
			}
			res, err := d.orc.ResolveEntity(ctx,
				leads[i].Address, leads[i].Name,
				leads[j].Address, leads[j].Name)
			if err != nil {
				zap.L().Warn("dedupe: resolution failed",
					zap.String("a", leads[i].Address),
					zap.String("b", leads[j].Address),
					zap.Error(err))
				continue
			}
			if !res.IsSame || res.Confidence <= d.threshold {
				continue
			}
			loser := j
			if leads[j].Score > leads[i].Score {
				loser = i
			}
			dropped[loser] = true
			zap.L().Debug("dedupe: collapsed pair",
				zap.String("kept", leads[i+j-loser].Address),
				zap.Float64("confidence", res.Confidence))
			if loser == i {
				break
			}
		}
	}

	out := make([]model.Lead, 0, len(leads))
	var n int
	for i := range leads {
		if dropped[i] {
			n++
			continue
		}
		out = append(out, leads[i])
	}
	if n > 0 {
		zap.L().Info("dedupe: pass complete",
			zap.Int("dropped", n),
			zap.Int("kept", len(out)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return out, n
}
