package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	OwnerID int64  `yaml:"owner_id" envconfig:"TELEGRAM_OWNER_ID"`
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
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// UploadConfig tunes the upload session flow.
type UploadConfig struct {
	// DebounceSeconds is the quiet window after the last file arrival
	// before the session moves to key capture. 0 -> default 5.
	DebounceSeconds int `yaml:"debounce_seconds" envconfig:"UPLOAD_DEBOUNCE_SECONDS"`
	// MaxBatch caps files per batch. 0 -> default 3.
	MaxBatch int `yaml:"max_batch" envconfig:"UPLOAD_MAX_BATCH"`
}

// ForwardSlotConfig bounds accepted file sizes for one mirroring rule slot.
// Zero Max means unrestricted.
type ForwardSlotConfig struct {
	MinBytes int64 `yaml:"min_bytes"`
	MaxBytes int64 `yaml:"max_bytes"`
}

// ForwardConfig holds per-slot size windows for the channel mirroring rules.
type ForwardConfig struct {
	Slots []ForwardSlotConfig `yaml:"slots"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Upload    UploadConfig    `yaml:"upload"`
	Forward   ForwardConfig   `yaml:"forward"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if cfg.Telegram.OwnerID == 0 {
		return fmt.Errorf("telegram.owner_id is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Upload.DebounceSeconds < 0 {
		return fmt.Errorf("upload.debounce_seconds must be >= 0")
	}
	if cfg.Upload.DebounceSeconds == 0 {
		cfg.Upload.DebounceSeconds = 5
	}
	if cfg.Upload.MaxBatch < 0 {
		return fmt.Errorf("upload.max_batch must be >= 0")
	}
	if cfg.Upload.MaxBatch == 0 {
		cfg.Upload.MaxBatch = 3
	}

	if len(cfg.Forward.Slots) == 0 {
		cfg.Forward.Slots = DefaultForwardSlots()
	}
	if len(cfg.Forward.Slots) > 3 {
		return fmt.Errorf("forward.slots supports at most 3 entries")
	}
	for i, slot := range cfg.Forward.Slots {
		if slot.MinBytes < 0 || slot.MaxBytes < 0 {
			return fmt.Errorf("forward.slots[%d] sizes must be >= 0", i)
		}
		if slot.MaxBytes > 0 && slot.MinBytes > slot.MaxBytes {
			return fmt.Errorf("forward.slots[%d] min_bytes exceeds max_bytes", i)
		}
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

// DefaultForwardSlots returns the stock size windows for the three rule slots:
// small files, large files, unrestricted.
func DefaultForwardSlots() []ForwardSlotConfig {
	const mb = int64(1) << 20
	return []ForwardSlotConfig{
		{MinBytes: 1 * mb, MaxBytes: 50 * mb},
		{MinBytes: 80 * mb, MaxBytes: 2048 * mb},
		{MinBytes: 0, MaxBytes: 0},
	}
}
