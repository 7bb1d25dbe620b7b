// Package config loads AgentBus's configuration from a YAML file with
// environment-variable overrides, adapted from the teacher's
// internal/config/config.go: same struct-tree-plus-ApplyEnvOverrides
// shape, fields replaced with AgentBus's own.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bus     BusConfig     `yaml:"bus"`
	WOAS    WOASConfig    `yaml:"woas"`
	LLM     LLMConfig     `yaml:"llm"`
	Voter   VoterConfig   `yaml:"voter"`
	PubSub  PubSubConfig  `yaml:"pubsub"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig is the gRPC + HTTP side-channel bind configuration
// (spec.md §6 "External interfaces").
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	HTTPPort        int    `yaml:"http_port"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_sec"`
}

// BusConfig names the default bus a CLI or service instance targets
// absent an explicit override (spec.md §6 AGENT_BUS_ID).
type BusConfig struct {
	DefaultID      string `yaml:"default_id"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// WOASConfig selects and configures the write-once address space
// backend (spec.md §4.1): in-memory, Redis, or Spanner.
type WOASConfig struct {
	Backend string        `yaml:"backend"` // "memory" | "redis" | "spanner"
	Redis   RedisConfig   `yaml:"redis"`
	Spanner SpannerConfig `yaml:"spanner"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SpannerConfig struct {
	ProjectID  string `yaml:"project_id"`
	InstanceID string `yaml:"instance_id"`
	DatabaseID string `yaml:"database_id"`
}

// LLMConfig configures the Voter's safety evaluator client.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// VoterConfig holds overrides to the Voter's default behavior
// (spec.md §6 VOTER_*).
type VoterConfig struct {
	PromptOverride    string `yaml:"prompt_override"`
	PollIntervalMs    int    `yaml:"poll_interval_ms"`
	BackoffMultiplier int    `yaml:"backoff_multiplier"`
}

// PubSubConfig configures the decision fan-out's durable Pub/Sub leg
// (internal/notify.PubSubBus); disabled falls back to the in-memory
// Bus only.
type PubSubConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	TopicID   string `yaml:"topic_id"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config, loading it (and a
// .env file, if present) on first use.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies the spec.md §6 environment variables on
// top of whatever the YAML file set, then fills any remaining zero
// values with defaults.
func (c *Config) applyEnvOverrides() {
	c.Bus.DefaultID = getEnv("AGENT_BUS_ID", c.Bus.DefaultID)
	c.Server.Host = getEnv("AGENT_BUS_HOST", c.Server.Host)
	if v := getEnvInt("AGENT_BUS_PORT", 0); v > 0 {
		c.Server.Port = v
	}

	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)

	c.Voter.PromptOverride = getEnv("VOTER_PROMPT_OVERRIDE", c.Voter.PromptOverride)
	if v := getEnvInt("VOTER_POLL_INTERVAL_MS", 0); v > 0 {
		c.Voter.PollIntervalMs = v
	}
	if v := getEnvInt("VOTER_BACKOFF_MULTIPLIER", 0); v > 0 {
		c.Voter.BackoffMultiplier = v
	}

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	if v := getEnvInt("POLL_INTERVAL_MS", 0); v > 0 {
		c.Bus.PollIntervalMs = v
	}

	c.WOAS.Backend = getEnv("WOAS_BACKEND", c.WOAS.Backend)
	c.WOAS.Redis.Addr = getEnv("REDIS_ADDR", c.WOAS.Redis.Addr)
	c.WOAS.Spanner.ProjectID = getEnv("SPANNER_PROJECT_ID", c.WOAS.Spanner.ProjectID)
	c.WOAS.Spanner.InstanceID = getEnv("SPANNER_INSTANCE_ID", c.WOAS.Spanner.InstanceID)
	c.WOAS.Spanner.DatabaseID = getEnv("SPANNER_DATABASE_ID", c.WOAS.Spanner.DatabaseID)

	if projectID := getEnv("GCP_PROJECT_ID", ""); projectID != "" {
		c.PubSub.ProjectID = projectID
	}
	c.PubSub.TopicID = getEnv("PUBSUB_TOPIC_ID", c.PubSub.TopicID)
	c.PubSub.Enabled = getEnvBool("PUBSUB_ENABLED", c.PubSub.Enabled)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9999
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 9998
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.Bus.DefaultID == "" {
		c.Bus.DefaultID = "default"
	}
	if c.Bus.PollIntervalMs == 0 {
		c.Bus.PollIntervalMs = 200
	}
	if c.WOAS.Backend == "" {
		c.WOAS.Backend = "memory"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "claude-3-5-sonnet"
	}
	if c.Voter.PollIntervalMs == 0 {
		c.Voter.PollIntervalMs = c.Bus.PollIntervalMs
	}
	if c.Voter.BackoffMultiplier == 0 {
		c.Voter.BackoffMultiplier = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.PubSub.TopicID == "" {
		c.PubSub.TopicID = "agentbus-verdicts"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// splitCSV is kept for config fields that may grow list-valued
// (e.g. future CORS-style allowlists); unused today but matches the
// teacher's helper set.
func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug"
}
