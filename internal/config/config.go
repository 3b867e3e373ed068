package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "PUBLISHER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	adminTokenEnv     = "PUBLISHER_ADMIN_TOKEN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	webhookURLEnv     = "CACHE_WEBHOOK_URL"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	HTTP          HTTPConfig         `yaml:"http"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Policies      []PolicyConfig     `yaml:"policies"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when batch runs fire and which calendar they follow.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// HTTPConfig configures the admin API.
type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"adminToken"`
}

// NotificationConfig encapsulates post-publish hooks.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken  string  `yaml:"botToken"`
	ChatID    string  `yaml:"chatId"`
	PerSecond float64 `yaml:"perSecond"`
}

// WebhookConfig points at the cache-invalidation endpoint.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PolicyConfig seeds a schedule policy at startup.
type PolicyConfig struct {
	Name                  string `yaml:"name"`
	Active                bool   `yaml:"active"`
	Frequency             string `yaml:"frequency"`
	CustomIntervalMinutes int    `yaml:"customIntervalMinutes"`
	ForbiddenStart        string `yaml:"forbiddenStart"`
	ForbiddenEnd          string `yaml:"forbiddenEnd"`
	MaxPerDay             int    `yaml:"maxPerDay"`
	Priority              int    `yaml:"priority"`
}

// Policy converts the seed into a domain policy and validates it.
func (p PolicyConfig) Policy() (domain.Policy, error) {
	freq, err := domain.ParseFrequency(p.Frequency)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("policy %s: %w", p.Name, err)
	}

	policy := domain.Policy{
		Name:                  p.Name,
		Active:                p.Active,
		Frequency:             freq,
		CustomIntervalMinutes: p.CustomIntervalMinutes,
		MaxPerDay:             p.MaxPerDay,
		Priority:              p.Priority,
	}

	switch {
	case p.ForbiddenStart == "" && p.ForbiddenEnd == "":
	case p.ForbiddenStart == "" || p.ForbiddenEnd == "":
		return domain.Policy{}, fmt.Errorf("%w: policy %s: forbidden window needs both start and end", domain.ErrPolicyMisconfigured, p.Name)
	default:
		start, err := domain.ParseTimeOfDay(p.ForbiddenStart)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		end, err := domain.ParseTimeOfDay(p.ForbiddenEnd)
		if err != nil {
			return domain.Policy{}, fmt.Errorf("policy %s: %w", p.Name, err)
		}
		policy.Window = &domain.ForbiddenWindow{Start: start, End: end}
	}

	if err := policy.Validate(); err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}

// Load reads the YAML file named by PUBLISHER_CONFIG (if any) and applies environment overrides.
func Load() Config {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit file path; an empty path uses defaults only.
func LoadFrom(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// ReadFile parses a YAML config file without defaults or overrides.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(adminTokenEnv); v != "" {
		c.HTTP.AdminToken = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Notifications.Webhook.URL = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
		c.Scheduler.Timezone = defaultTimezone
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.AdminToken != "" {
		base.HTTP.AdminToken = override.HTTP.AdminToken
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.PerSecond > 0 {
		base.Notifications.Telegram.PerSecond = override.Notifications.Telegram.PerSecond
	}

	if override.Notifications.Webhook.URL != "" {
		base.Notifications.Webhook.URL = override.Notifications.Webhook.URL
	}
	if override.Notifications.Webhook.Token != "" {
		base.Notifications.Webhook.Token = override.Notifications.Webhook.Token
	}
	if override.Notifications.Webhook.Timeout > 0 {
		base.Notifications.Webhook.Timeout = override.Notifications.Webhook.Timeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Policies) > 0 {
		base.Policies = override.Policies
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "./data/publisher.db"},
		Scheduler: SchedulerConfig{CronExpression: "*/5 * * * *", Timezone: defaultTimezone, location: tz},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{PerSecond: 1},
			Webhook:  WebhookConfig{Timeout: 5 * time.Second},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Policies: []PolicyConfig{
			{Name: "default", Active: true, Frequency: "hourly", Priority: 0},
		},
	}
}

// String renders a short summary used in startup logs; secrets are omitted.
func (c Config) String() string {
	return "driver=" + c.Database.Driver +
		" cron=" + strconv.Quote(c.Scheduler.CronExpression) +
		" tz=" + c.Scheduler.Location().String() +
		" http=" + c.HTTP.Addr +
		" policies=" + strconv.Itoa(len(c.Policies))
}
