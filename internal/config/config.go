package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Matcher   MatcherConfig   `yaml:"matcher" mapstructure:"matcher"`
	Filter    FilterConfig    `yaml:"filter" mapstructure:"filter"`
	Fusion    FusionConfig    `yaml:"fusion" mapstructure:"fusion"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings for the remote oracle.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OracleConfig bounds the classification oracle client.
type OracleConfig struct {
	MaxConcurrent   int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSecond   float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	CacheTTLHours   int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	Offline         bool    `yaml:"offline" mapstructure:"offline"`
}

// CallTimeout returns the per-call timeout as a duration.
func (c OracleConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// CacheTTL returns the result cache TTL as a duration.
func (c OracleConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// MatcherConfig configures address matching.
type MatcherConfig struct {
	ToleranceMeters float64 `yaml:"tolerance_meters" mapstructure:"tolerance_meters"`
}

// FilterConfig configures the operational filter windows, in days.
type FilterConfig struct {
	RecentInspectionDays    int     `yaml:"recent_inspection_days" mapstructure:"recent_inspection_days"`
	ActiveLicenseDays       int     `yaml:"active_license_days" mapstructure:"active_license_days"`
	EstablishedLicenseDays  int     `yaml:"established_license_days" mapstructure:"established_license_days"`
	EstablishedLicenseCount int     `yaml:"established_license_count" mapstructure:"established_license_count"`
	RecentActivityDays      int     `yaml:"recent_activity_days" mapstructure:"recent_activity_days"`
	OracleConfidence        float64 `yaml:"oracle_confidence" mapstructure:"oracle_confidence"`
}

// FusionConfig configures the rule engine. An empty rule list enables every
// rule; an unrecognized name aborts startup.
type FusionConfig struct {
	Rules []string `yaml:"rules" mapstructure:"rules"`
}

// DedupConfig configures the duplicate-elimination pass.
type DedupConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// EngineConfig configures run chunking and parallelism.
type EngineConfig struct {
	ChunkSize   int `yaml:"chunk_size" mapstructure:"chunk_size"`
	Parallelism int `yaml:"parallelism" mapstructure:"parallelism"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPENINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "openings.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("oracle.max_concurrent", 4)
	v.SetDefault("oracle.rate_per_second", 5)
	v.SetDefault("oracle.call_timeout_secs", 20)
	v.SetDefault("oracle.cache_ttl_hours", 24)
	v.SetDefault("matcher.tolerance_meters", 100)
	v.SetDefault("filter.recent_inspection_days", 90)
	v.SetDefault("filter.active_license_days", 90)
	v.SetDefault("filter.established_license_days", 365)
	v.SetDefault("filter.established_license_count", 3)
	v.SetDefault("filter.recent_activity_days", 120)
	v.SetDefault("filter.oracle_confidence", 75)
	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.confidence_threshold", 80)
	v.SetDefault("engine.chunk_size", 1000)
	v.SetDefault("engine.parallelism", 8)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
