package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Hermes     HermesConfig     `yaml:"hermes"`
	Redis      RedisConfig      `yaml:"redis"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Guard      GuardConfig      `yaml:"guard"`
	Redaction  RedactionConfig  `yaml:"redaction"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port               int    `yaml:"port"`
	MetricsPort        int    `yaml:"metrics_port"`
	AdminToken         string `yaml:"admin_token"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// DatabaseConfig selects the store. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL       string `yaml:"url"`
	QueueSize int    `yaml:"queue_size"`
}

// RedisConfig backs the suppression cache. An empty address keeps it in
// process.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

type EnrichmentConfig struct {
	URL               string  `yaml:"url"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type ScoringConfig struct {
	// BootstrapVersion is installed with the shipped weights when the store
	// has no active version.
	BootstrapVersion string                               `yaml:"bootstrap_version"`
	Decay            map[scoring.Signal]scoring.DecayRule `yaml:"decay"`
}

type GuardConfig struct {
	Enabled              bool `yaml:"enabled"`
	IntervalMinutes      int  `yaml:"interval_minutes"`
	WindowDays           int  `yaml:"window_days"`
	DecayIntervalMinutes int  `yaml:"decay_interval_minutes"`
}

type RedactionConfig struct {
	BlockBareName bool `yaml:"block_bare_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) GuardInterval() time.Duration {
	return time.Duration(c.Guard.IntervalMinutes) * time.Minute
}

func (c *Config) DecayInterval() time.Duration {
	return time.Duration(c.Guard.DecayIntervalMinutes) * time.Minute
}

func (c *Config) EnrichmentTimeout() time.Duration {
	return time.Duration(c.Enrichment.TimeoutMs) * time.Millisecond
}

// DecayRules returns the configured decay rules, falling back per signal to
// the shipped defaults.
func (c *Config) DecayRules() scoring.DecayConfig {
	rules := scoring.DefaultDecayConfig()
	for sig, r := range c.Scoring.Decay {
		rules[sig] = r
	}
	return rules
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	known := make(map[scoring.Signal]bool)
	for _, s := range scoring.KnownSignals() {
		known[s] = true
	}
	for sig, r := range c.Scoring.Decay {
		if !known[sig] {
			return eris.Errorf("config: unknown decay signal %q", sig)
		}
		if r.HalfLifeDays < 0 {
			return eris.Errorf("config: decay signal %q has negative half-life", sig)
		}
	}
	if c.Guard.IntervalMinutes <= 0 {
		return eris.New("config: guard.interval_minutes must be > 0")
	}
	if c.Guard.WindowDays <= 0 {
		return eris.New("config: guard.window_days must be > 0")
	}
	if c.Server.RateLimitPerMinute <= 0 {
		return eris.New("config: server.rate_limit_per_minute must be > 0")
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               8700,
			MetricsPort:        8701,
			RateLimitPerMinute: 120,
		},
		Hermes: HermesConfig{
			URL:       "nats://localhost:4222",
			QueueSize: 256,
		},
		Redis: RedisConfig{
			KeyPrefix: "godscore:",
		},
		Enrichment: EnrichmentConfig{
			TimeoutMs:         10000,
			RequestsPerSecond: 5,
		},
		Scoring: ScoringConfig{
			BootstrapVersion: "1.0.0",
		},
		Guard: GuardConfig{
			Enabled:              true,
			IntervalMinutes:      24 * 60,
			WindowDays:           28,
			DecayIntervalMinutes: 60,
		},
		Redaction: RedactionConfig{
			BlockBareName: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, eris.Wrap(err, "parse config")
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GODSCORE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("GODSCORE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("GODSCORE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("GODSCORE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("GODSCORE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("GODSCORE_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("GODSCORE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GODSCORE_ENRICHMENT_URL"); v != "" {
		cfg.Enrichment.URL = v
	}
	if v := os.Getenv("GODSCORE_GUARD_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Guard.Enabled = b
		}
	}
	if v := os.Getenv("GODSCORE_GUARD_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Guard.IntervalMinutes = n
		}
	}
	if v := os.Getenv("GODSCORE_GUARD_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Guard.WindowDays = n
		}
	}
	if v := os.Getenv("GODSCORE_REDACTION_BLOCK_BARE_NAME"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redaction.BlockBareName = b
		}
	}
	if v := os.Getenv("GODSCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
