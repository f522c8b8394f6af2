// Package config provides YAML-based configuration loading for Innkeeper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Innkeeper configuration, loaded from innkeeper.yaml.
type Config struct {
	Property   string           `yaml:"property"`
	Timezone   string           `yaml:"timezone"`
	Database   DatabaseConfig   `yaml:"database"`
	Browser    BrowserConfig    `yaml:"browser"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Worker     WorkerConfig     `yaml:"worker"`
	Escalation EscalationConfig `yaml:"escalation"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	AI         AIConfig         `yaml:"ai"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
}

// DatabaseConfig selects the storage backend. Driver "sqlite" uses Path;
// driver "mysql" uses Host/Port/Name.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// BrowserConfig holds settings for the browser-backed page observer.
type BrowserConfig struct {
	Headless         bool   `yaml:"headless"`
	CookiesPath      string `yaml:"cookies_path"`
	InboxURL         string `yaml:"inbox_url"`
	ThreadBaseURL    string `yaml:"thread_base_url"`
	UserAgent        string `yaml:"user_agent"`
	NavTimeoutSec    int    `yaml:"nav_timeout_sec"`
	InboxMaxScrolls  int    `yaml:"inbox_max_scrolls"`
	ScrollSettleMsec int    `yaml:"scroll_settle_msec"`
}

// MonitorConfig controls the discovery supervisor loop.
type MonitorConfig struct {
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	DigestCron      string `yaml:"digest_cron"` // 5-field cron, empty disables
	PruneCron       string `yaml:"prune_cron"`  // 5-field cron, empty disables
}

// WorkerConfig controls the per-thread worker loop.
type WorkerConfig struct {
	CheckIntervalSec int `yaml:"check_interval_sec"`
	IdleTimeoutMin   int `yaml:"idle_timeout_min"`
	MinMessageLen    int `yaml:"min_message_len"`
	MessagePauseMsec int `yaml:"message_pause_msec"`
}

// EscalationConfig controls host-request lifetimes. The three horizons are
// deliberately distinct: the worker idle timeout measures absence of
// progress, the watch timeout bounds how long an unanswered notification is
// tracked in memory, and the retention window bounds how long a request row
// survives in storage. Validation enforces idle < watch < retention.
type EscalationConfig struct {
	WatchTimeoutMin int `yaml:"watch_timeout_min"`
	RetentionHours  int `yaml:"retention_hours"`
}

// NotifierConfig selects and configures the host chat platform.
type NotifierConfig struct {
	Platform string        `yaml:"platform"` // "slack" or "discord"
	Channel  string        `yaml:"channel"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// AIConfig holds the completion service key and per-call tuning. Every call
// site has its own model, temperature and token budget.
type AIConfig struct {
	APIKey   string     `yaml:"api_key"`
	Greeting CallConfig `yaml:"greeting"`
	Answer   CallConfig `yaml:"answer"`
	Refine   CallConfig `yaml:"refine"`
	Classify CallConfig `yaml:"classify"`
	Extract  CallConfig `yaml:"extract"`
}

// CallConfig tunes a single AI call site.
type CallConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// KnowledgeConfig points at the structured business facts file.
type KnowledgeConfig struct {
	FactsPath string `yaml:"facts_path"`
}

// DashboardConfig controls the read-only monitoring dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "innkeeper.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "innkeeper"
		}
	}
	if c.Browser.CookiesPath == "" {
		c.Browser.CookiesPath = "cookies.json"
	}
	if c.Browser.NavTimeoutSec == 0 {
		c.Browser.NavTimeoutSec = 90
	}
	if c.Browser.InboxMaxScrolls == 0 {
		c.Browser.InboxMaxScrolls = 3
	}
	if c.Browser.ScrollSettleMsec == 0 {
		c.Browser.ScrollSettleMsec = 750
	}
	if c.Monitor.PollIntervalSec == 0 {
		c.Monitor.PollIntervalSec = 15
	}
	if c.Worker.CheckIntervalSec == 0 {
		c.Worker.CheckIntervalSec = 15
	}
	if c.Worker.IdleTimeoutMin == 0 {
		c.Worker.IdleTimeoutMin = 5
	}
	if c.Worker.MinMessageLen == 0 {
		c.Worker.MinMessageLen = 4
	}
	if c.Worker.MessagePauseMsec == 0 {
		c.Worker.MessagePauseMsec = 1500
	}
	if c.Escalation.WatchTimeoutMin == 0 {
		c.Escalation.WatchTimeoutMin = 30
	}
	if c.Escalation.RetentionHours == 0 {
		c.Escalation.RetentionHours = 24
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	c.AI.Greeting.fill("gemini-2.0-flash", 0.7, 45)
	c.AI.Answer.fill("gemini-2.5-flash", 0.2, 370)
	c.AI.Refine.fill("gemini-2.5-flash", 0.5, 300)
	c.AI.Classify.fill("gemini-2.0-flash", 0.3, 15)
	c.AI.Extract.fill("gemini-2.0-flash", 0.1, 500)
}

// fill applies defaults to a single call site.
func (cc *CallConfig) fill(model string, temperature float32, maxTokens int) {
	if cc.Model == "" {
		cc.Model = model
	}
	if cc.Temperature == 0 {
		cc.Temperature = temperature
	}
	if cc.MaxTokens == 0 {
		cc.MaxTokens = maxTokens
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Property == "" {
		errs = append(errs, "property is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Notifier.Platform != "" {
		switch c.Notifier.Platform {
		case "slack":
			if c.Notifier.Slack.AppToken == "" || c.Notifier.Slack.BotToken == "" {
				errs = append(errs, "notifier.slack requires app_token and bot_token")
			}
		case "discord":
			if c.Notifier.Discord.BotToken == "" {
				errs = append(errs, "notifier.discord requires bot_token")
			}
		default:
			errs = append(errs, fmt.Sprintf("notifier.platform %q is not supported (slack, discord)", c.Notifier.Platform))
		}
		if c.Notifier.Channel == "" {
			errs = append(errs, "notifier.channel is required when a platform is configured")
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is invalid", c.Timezone))
	}
	idle := time.Duration(c.Worker.IdleTimeoutMin) * time.Minute
	watch := time.Duration(c.Escalation.WatchTimeoutMin) * time.Minute
	retention := time.Duration(c.Escalation.RetentionHours) * time.Hour
	if idle >= watch {
		errs = append(errs, "worker.idle_timeout_min must be shorter than escalation.watch_timeout_min")
	}
	if watch >= retention {
		errs = append(errs, "escalation.watch_timeout_min must be shorter than escalation.retention_hours")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PollInterval returns the supervisor poll cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalSec) * time.Second
}

// CheckInterval returns the worker cycle cadence.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Worker.CheckIntervalSec) * time.Second
}

// IdleTimeout returns how long a worker tolerates no qualifying activity.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Worker.IdleTimeoutMin) * time.Minute
}

// MessagePause returns the pause between messages within a worker cycle.
func (c *Config) MessagePause() time.Duration {
	return time.Duration(c.Worker.MessagePauseMsec) * time.Millisecond
}

// WatchTimeout returns how long an unanswered host request stays watched.
func (c *Config) WatchTimeout() time.Duration {
	return time.Duration(c.Escalation.WatchTimeoutMin) * time.Minute
}

// Retention returns how long host request rows survive in storage.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Escalation.RetentionHours) * time.Hour
}
