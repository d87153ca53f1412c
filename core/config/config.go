package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

const (
	defaultPendingTTLSeconds    = 900
	defaultSweepIntervalSeconds = 60
)

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminID may run admin-only commands; 0 locks them for everyone.
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order" envconfig:"LOG_KEYS_ORDER"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_BOT_FILE"`
	ErrorsFile  string `yaml:"errors_file" envconfig:"LOG_ERRORS_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig holds settings for per-user rate limiting. ExcludeUpdates
// lists update kinds that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// ConversationConfig bounds how long a pending conversation step stays valid.
// Zero disables the respective mechanism.
type ConversationConfig struct {
	PendingTTLSeconds    int `yaml:"pending_ttl_seconds" envconfig:"CONVERSATION_PENDING_TTL_SECONDS"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" envconfig:"CONVERSATION_SWEEP_INTERVAL_SECONDS"`
}

// DefaultConversation returns the settings used when the conversation section is absent.
func DefaultConversation() ConversationConfig {
	return ConversationConfig{
		PendingTTLSeconds:    defaultPendingTTLSeconds,
		SweepIntervalSeconds: defaultSweepIntervalSeconds,
	}
}

// PendingTTL returns the pending step lifetime; 0 means steps never expire.
func (c ConversationConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSeconds) * time.Second
}

// SweepInterval returns how often expired steps are evicted; 0 disables the janitor.
func (c ConversationConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Conversation ConversationConfig `yaml:"conversation"`
}

// Load reads a YAML file, overlays the environment and normalizes the result.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Config{Conversation: DefaultConversation()}
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path, then from the environment.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates the core sections and canonicalizes their values.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Telegram.normalize(); err != nil {
		return err
	}
	if cfg.Telegram.RunMode == RunModeWebhook {
		if err := cfg.Webhook.validate(); err != nil {
			return err
		}
	}
	if err := cfg.RateLimit.normalize(); err != nil {
		return err
	}
	return cfg.Conversation.validate()
}

func (t *TelegramConfig) normalize() error {
	if strings.TrimSpace(t.Token) == "" {
		return errors.New("telegram token is required")
	}
	switch rm := strings.ToLower(strings.TrimSpace(t.RunMode)); rm {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = rm
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	if t.LongPollTimeoutSeconds < 0 {
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}
	return nil
}

func (w WebhookConfig) validate() error {
	switch {
	case strings.TrimSpace(w.URL) == "":
		return errors.New("webhook.url is required when telegram.run_mode is 'webhook'")
	case strings.TrimSpace(w.Listen) == "":
		return errors.New("webhook.listen is required when telegram.run_mode is 'webhook'")
	case w.Port <= 0:
		return errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
	}
	return nil
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !slices.Contains(updateKinds, key) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		}
		kinds = append(kinds, key)
	}
	r.ExcludeUpdates = kinds
	return nil
}

func (c ConversationConfig) validate() error {
	if c.PendingTTLSeconds < 0 {
		return errors.New("conversation.pending_ttl_seconds must be >= 0")
	}
	if c.SweepIntervalSeconds < 0 {
		return errors.New("conversation.sweep_interval_seconds must be >= 0")
	}
	return nil
}
