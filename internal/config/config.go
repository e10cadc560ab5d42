// Package config provides YAML-based configuration loading for the train
// order daemon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning values applied by Parse when the file omits them.
const (
	DefaultPollInterval    = 15 * time.Second
	DefaultBatchSize       = 20
	DefaultBackoffBase     = 5 * time.Second
	DefaultBackoffMax      = 60 * time.Second
	DefaultRetryCeiling    = 3
	DefaultRetryReset      = 10 * time.Minute
	DefaultCallTimeout     = 30 * time.Second
	DefaultStaggerCap      = 2 * time.Minute
	DefaultJitter          = 5 * time.Second
	DefaultSyncCron        = "*/5 * * * *"
	DefaultDashboardPort   = 8484
	DefaultFallbackMessage = "Acknowledged; no further action taken."
)

// Config is the top-level configuration, loaded from config.yaml.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Poll      PollConfig      `yaml:"poll"`
	Retry     RetryConfig     `yaml:"retry"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Roster    RosterConfig    `yaml:"roster"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Telegraph TelegraphConfig `yaml:"telegraph"`
}

// StoreConfig holds connection settings for the external task store.
type StoreConfig struct {
	BaseURL string
	Token   string
	Account string
	Timeout time.Duration
}

// UnmarshalYAML decodes duration fields from Go duration strings ("30s").
func (c *StoreConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Account string `yaml:"account"`
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.BaseURL, c.Token, c.Account = raw.BaseURL, raw.Token, raw.Account
	return parseDuration("store.timeout", raw.Timeout, &c.Timeout)
}

// GatewayConfig holds connection settings for the agent-execution gateway.
type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func (c *GatewayConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.BaseURL, c.Token = raw.BaseURL, raw.Token
	return parseDuration("gateway.timeout", raw.Timeout, &c.Timeout)
}

// PollConfig tunes the delivery loop cycle.
type PollConfig struct {
	Interval    time.Duration
	BatchSize   int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c *PollConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval    string `yaml:"interval"`
		BatchSize   int    `yaml:"batch_size"`
		BackoffBase string `yaml:"backoff_base"`
		BackoffMax  string `yaml:"backoff_max"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.BatchSize = raw.BatchSize
	if err := parseDuration("poll.interval", raw.Interval, &c.Interval); err != nil {
		return err
	}
	if err := parseDuration("poll.backoff_base", raw.BackoffBase, &c.BackoffBase); err != nil {
		return err
	}
	return parseDuration("poll.backoff_max", raw.BackoffMax, &c.BackoffMax)
}

// RetryConfig tunes the no-response retry tracker.
type RetryConfig struct {
	Ceiling     int
	ResetWindow time.Duration
}

func (c *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Ceiling     int    `yaml:"ceiling"`
		ResetWindow string `yaml:"reset_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Ceiling = raw.Ceiling
	return parseDuration("retry.reset_window", raw.ResetWindow, &c.ResetWindow)
}

// HeartbeatConfig tunes the per-agent heartbeat scheduler.
type HeartbeatConfig struct {
	StaggerCap time.Duration
	Jitter     time.Duration
}

func (c *HeartbeatConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		StaggerCap string `yaml:"stagger_cap"`
		Jitter     string `yaml:"jitter"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := parseDuration("heartbeat.stagger_cap", raw.StaggerCap, &c.StaggerCap); err != nil {
		return err
	}
	return parseDuration("heartbeat.jitter", raw.Jitter, &c.Jitter)
}

// parseDuration parses an optional Go duration string into dst, leaving it
// zero when the field is absent.
func parseDuration(field, s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: %s: %w", field, err)
	}
	*dst = d
	return nil
}

// RosterConfig tunes the periodic agent-roster sync.
type RosterConfig struct {
	// SyncCron is a standard 5-field cron expression.
	SyncCron string `yaml:"sync_cron"`
}

// FallbackConfig governs the exhausted-retry fallback acknowledgement.
type FallbackConfig struct {
	// PostReply posts the fallback message to the task thread when retries
	// are exhausted. When false the exhaustion is silent at the thread level
	// and observable only via counters. Either way the notification is
	// marked delivered.
	PostReply bool   `yaml:"post_reply"`
	Message   string `yaml:"message"`
}

// DashboardConfig tunes the operational HTTP server.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TelegraphConfig configures optional operator alert adapters.
type TelegraphConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack alert adapter.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig configures the Discord alert adapter.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config with defaults applied.
// Token fields support ${ENV_VAR} expansion.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg.Store.Token = os.ExpandEnv(cfg.Store.Token)
	cfg.Gateway.Token = os.ExpandEnv(cfg.Gateway.Token)
	cfg.Telegraph.Slack.Token = os.ExpandEnv(cfg.Telegraph.Slack.Token)
	cfg.Telegraph.Discord.Token = os.ExpandEnv(cfg.Telegraph.Discord.Token)

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Timeout <= 0 {
		cfg.Store.Timeout = DefaultCallTimeout
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = DefaultCallTimeout
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = DefaultPollInterval
	}
	if cfg.Poll.BatchSize <= 0 {
		cfg.Poll.BatchSize = DefaultBatchSize
	}
	if cfg.Poll.BackoffBase <= 0 {
		cfg.Poll.BackoffBase = DefaultBackoffBase
	}
	if cfg.Poll.BackoffMax <= 0 {
		cfg.Poll.BackoffMax = DefaultBackoffMax
	}
	if cfg.Retry.Ceiling <= 0 {
		cfg.Retry.Ceiling = DefaultRetryCeiling
	}
	if cfg.Retry.ResetWindow <= 0 {
		cfg.Retry.ResetWindow = DefaultRetryReset
	}
	if cfg.Heartbeat.StaggerCap <= 0 {
		cfg.Heartbeat.StaggerCap = DefaultStaggerCap
	}
	if cfg.Heartbeat.Jitter <= 0 {
		cfg.Heartbeat.Jitter = DefaultJitter
	}
	if cfg.Roster.SyncCron == "" {
		cfg.Roster.SyncCron = DefaultSyncCron
	}
	if cfg.Fallback.Message == "" {
		cfg.Fallback.Message = DefaultFallbackMessage
	}
	if cfg.Dashboard.Port <= 0 {
		cfg.Dashboard.Port = DefaultDashboardPort
	}
}

func validate(cfg *Config) error {
	if cfg.Store.BaseURL == "" {
		return fmt.Errorf("config: store.base_url is required")
	}
	if cfg.Store.Account == "" {
		return fmt.Errorf("config: store.account is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("config: gateway.base_url is required")
	}
	if cfg.Poll.BackoffMax < cfg.Poll.BackoffBase {
		return fmt.Errorf("config: poll.backoff_max must be >= poll.backoff_base")
	}
	if cfg.Telegraph.Slack.Token != "" && cfg.Telegraph.Slack.Channel == "" {
		return fmt.Errorf("config: telegraph.slack.channel is required when a slack token is set")
	}
	if cfg.Telegraph.Discord.Token != "" && cfg.Telegraph.Discord.Channel == "" {
		return fmt.Errorf("config: telegraph.discord.channel is required when a discord token is set")
	}
	return nil
}
