package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openings-cli/internal/config"
	"github.com/sells-group/openings-cli/internal/oracle"
)

func withConfig(t *testing.T, c config.Config) {
	t.Helper()
	prev := cfg
	cfg = &c
	t.Cleanup(func() { cfg = prev })
}

func TestInitOracleOffline(t *testing.T) {
	withConfig(t, config.Config{
		Anthropic: config.AnthropicConfig{Key: "sk-present"},
		Oracle:    config.OracleConfig{Offline: true},
	})

	_, ok := initOracle().(*oracle.Heuristic)
	assert.True(t, ok)
}

func TestInitOracleNoKey(t *testing.T) {
	withConfig(t, config.Config{})

	_, ok := initOracle().(*oracle.Heuristic)
	assert.True(t, ok)
}

func TestInitOracleRemote(t *testing.T) {
	withConfig(t, config.Config{
		Anthropic: config.AnthropicConfig{Key: "sk-present", Model: "claude-haiku-4-5-20251001"},
	})

	_, ok := initOracle().(*oracle.Client)
	assert.True(t, ok)
}

func TestInitStoreUnknownDriver(t *testing.T) {
	withConfig(t, config.Config{Store: config.StoreConfig{Driver: "oracle-db"}})

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestFilterConfigMapping(t *testing.T) {
	fc := filterConfig(config.FilterConfig{
		RecentInspectionDays:    10,
		ActiveLicenseDays:       20,
		EstablishedLicenseDays:  30,
		EstablishedLicenseCount: 4,
		RecentActivityDays:      50,
		OracleConfidence:        60,
	})
	assert.Equal(t, 10, fc.RecentInspectionDays)
	assert.Equal(t, 20, fc.ActiveLicenseDays)
	assert.Equal(t, 30, fc.EstablishedLicenseDays)
	assert.Equal(t, 4, fc.EstablishedLicenseCount)
	assert.Equal(t, 50, fc.RecentActivityDays)
	assert.InDelta(t, 60, fc.OracleConfidence, 0.001)
}

func TestInitEngineRespectsConfig(t *testing.T) {
	withConfig(t, config.Config{
		Dedup:  config.DedupConfig{Enabled: true, ConfidenceThreshold: 85},
		Engine: config.EngineConfig{ChunkSize: 200, Parallelism: 2},
	})

	eng, err := initEngine(oracle.NewHeuristic())
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestInitEngineBadRule(t *testing.T) {
	withConfig(t, config.Config{
		Fusion: config.FusionConfig{Rules: []string{"bogus"}},
	})

	_, err := initEngine(oracle.NewHeuristic())
	require.Error(t, err)
}
