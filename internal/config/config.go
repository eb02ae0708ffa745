// Package config handles application configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"freshrss_filter/internal/model"
)

const defaultConfigFile = "config.yaml"

// DefaultSystemPrompt instructs the model to answer with a single verdict object.
const DefaultSystemPrompt = `You are a strict classifier. Decide if an RSS item is an advertisement or sponsored content. Reply JSON: {"is_ad": boolean, "confidence": 0..1, "reason": string}.`

// Config holds the application configuration.
type Config struct {
	FreshRSS    FreshRSSConfig   `yaml:"freshrss"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Database    DatabaseConfig   `yaml:"database"`
	Status      StatusConfig     `yaml:"status"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Filters     []model.Rule     `yaml:"filters"`
	DryRun      bool             `yaml:"dry_run"`
	Concurrency int              `yaml:"concurrency"`
	LogLevel    string           `yaml:"log_level"`
}

// FreshRSSConfig describes the aggregator and what to do with ads.
type FreshRSSConfig struct {
	BaseURL         string `yaml:"base_url"`
	FeverAPIKey     string `yaml:"fever_api_key"`
	UserAgent       string `yaml:"user_agent"`
	DeleteMode      string `yaml:"delete_mode"`
	GReaderUsername string `yaml:"greader_username"`
	GReaderPassword string `yaml:"greader_password"`
	SpamLabel       string `yaml:"spam_label"`
}

// Mode resolves DeleteMode to a remediation mode.
func (c FreshRSSConfig) Mode() model.Mode {
	return model.ParseMode(c.DeleteMode)
}

// HasGReader reports whether labeling credentials are configured.
func (c FreshRSSConfig) HasGReader() bool {
	return c.GReaderUsername != "" && c.GReaderPassword != ""
}

// ClassifierConfig describes the text-classification endpoint.
type ClassifierConfig struct {
	Provider          string   `yaml:"provider"`
	APIKey            string   `yaml:"api_key"`
	APIBase           string   `yaml:"api_base"`
	Model             string   `yaml:"model"`
	Temperature       *float64 `yaml:"temperature"`
	MaxTokens         *int     `yaml:"max_tokens"`
	SystemPrompt      string   `yaml:"system_prompt"`
	Threshold         float64  `yaml:"threshold"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// SchedulerConfig defines when the pipeline runs.
type SchedulerConfig struct {
	Cron     string        `yaml:"cron"`
	RedisURL string        `yaml:"redis_url"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// DatabaseConfig selects the review store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// StatusConfig controls the HTTP status endpoint.
type StatusConfig struct {
	Listen string `yaml:"listen"`
}

// TelegramConfig controls the optional Telegram bot.
type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	ChatID       int64   `yaml:"chat_id"`
	AllowedUsers []int64 `yaml:"allowed_users"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		FreshRSS: FreshRSSConfig{
			UserAgent:  "freshrss-filter/0.1",
			DeleteMode: "mark_read",
			SpamLabel:  "Ads",
		},
		Classifier: ClassifierConfig{
			Provider:     "openai",
			APIBase:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			SystemPrompt: DefaultSystemPrompt,
			Threshold:    0.5,
		},
		Scheduler: SchedulerConfig{
			Cron:    "0 */10 * * * *",
			LockTTL: 30 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "freshrss-filter.db",
		},
		Concurrency: 5,
		LogLevel:    "info",
	}
}

// Load reads the YAML file at path (or ./config.yaml when path is empty and
// the file exists), applies FRF_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"FRF_FRESHRSS__BASE_URL":         &c.FreshRSS.BaseURL,
		"FRF_FRESHRSS__FEVER_API_KEY":    &c.FreshRSS.FeverAPIKey,
		"FRF_FRESHRSS__USER_AGENT":       &c.FreshRSS.UserAgent,
		"FRF_FRESHRSS__DELETE_MODE":      &c.FreshRSS.DeleteMode,
		"FRF_FRESHRSS__GREADER_USERNAME": &c.FreshRSS.GReaderUsername,
		"FRF_FRESHRSS__GREADER_PASSWORD": &c.FreshRSS.GReaderPassword,
		"FRF_FRESHRSS__SPAM_LABEL":       &c.FreshRSS.SpamLabel,
		"FRF_CLASSIFIER__PROVIDER":       &c.Classifier.Provider,
		"FRF_CLASSIFIER__API_KEY":        &c.Classifier.APIKey,
		"FRF_CLASSIFIER__API_BASE":       &c.Classifier.APIBase,
		"FRF_CLASSIFIER__MODEL":          &c.Classifier.Model,
		"FRF_SCHEDULER__CRON":            &c.Scheduler.Cron,
		"FRF_SCHEDULER__REDIS_URL":       &c.Scheduler.RedisURL,
		"FRF_DATABASE__DRIVER":           &c.Database.Driver,
		"FRF_DATABASE__PATH":             &c.Database.Path,
		"FRF_DATABASE__DSN":              &c.Database.DSN,
		"FRF_STATUS__LISTEN":             &c.Status.Listen,
		"FRF_TELEGRAM__BOT_TOKEN":        &c.Telegram.BotToken,
		"FRF_LOG_LEVEL":                  &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"FRF_CLASSIFIER__THRESHOLD":           &c.Classifier.Threshold,
		"FRF_CLASSIFIER__REQUESTS_PER_SECOND": &c.Classifier.RequestsPerSecond,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = f
		}
	}

	if v := os.Getenv("FRF_DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FRF_DRY_RUN %q: %w", v, err)
		}
		c.DryRun = b
	}

	if v := os.Getenv("FRF_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FRF_CONCURRENCY %q: %w", v, err)
		}
		c.Concurrency = n
	}

	if v := os.Getenv("FRF_TELEGRAM__CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid FRF_TELEGRAM__CHAT_ID %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}

	if raw := os.Getenv("FRF_TELEGRAM__ALLOWED_USERS"); raw != "" {
		var users []int64
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user ID %q in FRF_TELEGRAM__ALLOWED_USERS: %w", s, err)
			}
			users = append(users, uid)
		}
		c.Telegram.AllowedUsers = users
	}

	return nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	var errs []error

	if c.FreshRSS.BaseURL == "" {
		errs = append(errs, errors.New("freshrss.base_url is required"))
	}
	if c.FreshRSS.FeverAPIKey == "" {
		errs = append(errs, errors.New("freshrss.fever_api_key is required"))
	}
	if c.FreshRSS.Mode() == model.ModeLabel && !c.FreshRSS.HasGReader() {
		errs = append(errs, errors.New("freshrss.delete_mode label requires greader_username and greader_password"))
	}

	switch c.Classifier.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.provider %q", c.Classifier.Provider))
	}
	if c.Classifier.APIKey == "" {
		errs = append(errs, errors.New("classifier.api_key is required"))
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.threshold %v must be within [0,1]", c.Classifier.Threshold))
	}
	if c.Classifier.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("classifier.requests_per_second must not be negative"))
	}

	if c.Scheduler.Cron == "" {
		errs = append(errs, errors.New("scheduler.cron is required"))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency %d must be at least 1", c.Concurrency))
	}

	return errors.Join(errs...)
}

// IsUserAllowed checks whether a Telegram user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.Telegram.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.Telegram.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
