// Package config provides YAML-based configuration loading for Signalbox.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	Routing     RoutingConfig    `yaml:"routing"`
	Enhancer    EnhancerConfig   `yaml:"enhancer"`
	Storage     StorageConfig    `yaml:"storage"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Enrichment  EnrichmentConfig `yaml:"enrichment"`
	LexiconPath string           `yaml:"lexicon_path"`
	Telegraph   TelegraphConfig  `yaml:"telegraph"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// RoutingConfig holds the policy constants consumed by coverage estimation
// and the route decision.
type RoutingConfig struct {
	MinConfidence     float64 `yaml:"min_confidence"`
	CoverageHighWater int     `yaml:"coverage_high_water"`
	MinSimilarity     float64 `yaml:"min_similarity"`
	CoverageTimeoutMs int     `yaml:"coverage_timeout_ms"`
}

// CoverageTimeout returns the coverage query budget as a duration.
func (r RoutingConfig) CoverageTimeout() time.Duration {
	return time.Duration(r.CoverageTimeoutMs) * time.Millisecond
}

// EnhancerConfig controls similar-case enrichment on routes A and B.
type EnhancerConfig struct {
	Enabled   *bool `yaml:"enabled"`
	TimeoutMs int   `yaml:"timeout_ms"`
	TopK      int   `yaml:"top_k"`
}

// IsEnabled reports whether the enhancer runs. It defaults to true.
func (e EnhancerConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Timeout returns the enhancement latency budget as a duration.
func (e EnhancerConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// StorageConfig lists storage providers in priority order.
type StorageConfig struct {
	HealthIntervalSec int              `yaml:"health_interval_sec"`
	ProbeTimeoutMs    int              `yaml:"probe_timeout_ms"`
	Providers         []ProviderConfig `yaml:"providers"`
}

// HealthInterval returns the health-check period.
func (s StorageConfig) HealthInterval() time.Duration {
	return time.Duration(s.HealthIntervalSec) * time.Second
}

// ProbeTimeout returns the per-probe connectivity timeout.
func (s StorageConfig) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutMs) * time.Millisecond
}

// Order returns provider names in configured priority order.
func (s StorageConfig) Order() []string {
	names := make([]string, 0, len(s.Providers))
	for _, p := range s.Providers {
		names = append(names, p.Name)
	}
	return names
}

// ProviderConfig holds connection settings for one storage backend.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite file path
}

// EmbeddingConfig selects the embedding collaborator.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai", "hash" or "none"
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
}

// EnrichmentConfig controls the background enrichment handoff.
type EnrichmentConfig struct {
	QueueSize int          `yaml:"queue_size"`
	GitHub    GitHubConfig `yaml:"github"`
}

// GitHubConfig optionally mirrors enrichment requests as GitHub issues.
type GitHubConfig struct {
	Owner  string   `yaml:"owner"`
	Repo   string   `yaml:"repo"`
	Token  string   `yaml:"token"`
	Labels []string `yaml:"labels"`
}

// Enabled reports whether the GitHub sink is fully configured.
func (g GitHubConfig) Enabled() bool {
	return g.Owner != "" && g.Repo != "" && g.Token != ""
}

// TelegraphConfig holds chat bridge settings.
type TelegraphConfig struct {
	Platform string        `yaml:"platform"` // "slack", "discord" or empty
	Channel  string        `yaml:"channel"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Digest   DigestConfig  `yaml:"digest"`
}

// SlackConfig holds Slack Socket Mode tokens.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds the Discord bot token.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DigestConfig schedules the routing digest posted to chat.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, unmarshals YAML bytes and returns a
// validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultConfig holds the values YAML overrides key by key. Thresholds for
// which zero is a meaningful setting live here rather than in applyDefaults.
func defaultConfig() Config {
	return Config{
		Routing: RoutingConfig{
			MinConfidence: 0.5,
			MinSimilarity: 0.3,
		},
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Routing.CoverageHighWater == 0 {
		c.Routing.CoverageHighWater = 3
	}
	if c.Routing.CoverageTimeoutMs == 0 {
		c.Routing.CoverageTimeoutMs = 500
	}
	if c.Enhancer.TimeoutMs == 0 {
		c.Enhancer.TimeoutMs = 50
	}
	if c.Enhancer.TopK == 0 {
		c.Enhancer.TopK = 3
	}
	if c.Storage.HealthIntervalSec == 0 {
		c.Storage.HealthIntervalSec = 5
	}
	if c.Storage.ProbeTimeoutMs == 0 {
		c.Storage.ProbeTimeoutMs = 1000
	}
	for i := range c.Storage.Providers {
		p := &c.Storage.Providers[i]
		if p.Driver == "mysql" {
			if p.Host == "" {
				p.Host = "127.0.0.1"
			}
			if p.Port == 0 {
				p.Port = 3306
			}
			if p.User == "" {
				p.User = "root"
			}
			if p.Database == "" {
				p.Database = "signalbox"
			}
		}
		if p.Driver == "sqlite" && p.Path == "" {
			p.Path = "signalbox.db"
		}
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Provider == "openai" && c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 256
	}
	if c.Enrichment.QueueSize == 0 {
		c.Enrichment.QueueSize = 64
	}
	if len(c.Enrichment.GitHub.Labels) == 0 {
		c.Enrichment.GitHub.Labels = []string{"knowledge-gap"}
	}
	if c.Telegraph.Digest.Enabled && c.Telegraph.Digest.Cron == "" {
		c.Telegraph.Digest.Cron = "0 9 * * *"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Routing.MinConfidence < 0 || c.Routing.MinConfidence > 1 {
		errs = append(errs, "routing.min_confidence must be within [0,1]")
	}
	if c.Routing.CoverageHighWater < 1 {
		errs = append(errs, "routing.coverage_high_water must be at least 1")
	}
	if c.Routing.MinSimilarity < -1 || c.Routing.MinSimilarity > 1 {
		errs = append(errs, "routing.min_similarity must be within [-1,1]")
	}
	if c.Routing.CoverageTimeoutMs < 0 {
		errs = append(errs, "routing.coverage_timeout_ms must be positive")
	}
	if c.Enhancer.TimeoutMs < 0 {
		errs = append(errs, "enhancer.timeout_ms must be positive")
	}
	if c.Enhancer.TopK < 0 {
		errs = append(errs, "enhancer.top_k must be positive")
	}
	if len(c.Storage.Providers) == 0 {
		errs = append(errs, "at least one storage provider is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Storage.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("storage.providers[%d].name is required", i))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("storage.providers[%d].name %q is duplicated", i, p.Name))
		}
		seen[p.Name] = true
		switch p.Driver {
		case "mysql", "sqlite":
		case "":
			errs = append(errs, fmt.Sprintf("storage.providers[%d].driver is required", i))
		default:
			errs = append(errs, fmt.Sprintf("storage.providers[%d].driver %q is not supported", i, p.Driver))
		}
	}
	switch c.Embedding.Provider {
	case "openai", "hash", "none":
	default:
		errs = append(errs, fmt.Sprintf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	switch c.Telegraph.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("telegraph.platform %q is not supported", c.Telegraph.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
