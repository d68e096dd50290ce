package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openings-cli/internal/config"
	"github.com/sells-group/openings-cli/internal/dedupe"
	"github.com/sells-group/openings-cli/internal/engine"
	"github.com/sells-group/openings-cli/internal/fusion"
	"github.com/sells-group/openings-cli/internal/oracle"
	"github.com/sells-group/openings-cli/internal/store"
	anthropicpkg "github.com/sells-group/openings-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "openings.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initOracle picks the remote oracle when an API key is configured and the
// offline flag is not set; otherwise the deterministic heuristic.
func initOracle() oracle.Oracle {
	if cfg.Oracle.Offline || cfg.Anthropic.Key == "" {
		if !cfg.Oracle.Offline {
			zap.L().Warn("no anthropic key configured, using heuristic oracle (OPENINGS_ANTHROPIC_KEY)")
		}
		return oracle.NewHeuristic()
	}

	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return oracle.NewClient(llm, oracle.ClientConfig{
		Model:         cfg.Anthropic.Model,
		MaxConcurrent: int64(cfg.Oracle.MaxConcurrent),
		RatePerSecond: cfg.Oracle.RatePerSecond,
		CallTimeout:   cfg.Oracle.CallTimeout(),
		CacheTTL:      cfg.Oracle.CacheTTL(),
	})
}

func initEngine(orc oracle.Oracle) (*engine.Engine, error) {
	var deduper *dedupe.Deduper
	if cfg.Dedup.Enabled {
		deduper = dedupe.New(orc, cfg.Dedup.ConfidenceThreshold, true)
	}

	return engine.New(engine.Config{
		ChunkSize:   cfg.Engine.ChunkSize,
		Parallelism: cfg.Engine.Parallelism,
		ToleranceM:  cfg.Matcher.ToleranceMeters,
		RuleNames:   cfg.Fusion.Rules,
		Filter:      filterConfig(cfg.Filter),
	}, orc, deduper)
}

func filterConfig(fc config.FilterConfig) fusion.FilterConfig {
	return fusion.FilterConfig{
		RecentInspectionDays:    fc.RecentInspectionDays,
		ActiveLicenseDays:       fc.ActiveLicenseDays,
		EstablishedLicenseDays:  fc.EstablishedLicenseDays,
		EstablishedLicenseCount: fc.EstablishedLicenseCount,
		RecentActivityDays:      fc.RecentActivityDays,
		OracleConfidence:        fc.OracleConfidence,
	}
}
