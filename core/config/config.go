package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// BotConfig holds the settings of a single bot identity.
type BotConfig struct {
	Token   string        `yaml:"token"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// TelegramConfig holds Telegram settings shared by all bots of the process.
type TelegramConfig struct {
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// AdminIDs are Telegram user ids with administrator rights in every bot.
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"TELEGRAM_ADMIN_IDS"`

	Admin  BotConfig `yaml:"admin"`
	Player BotConfig `yaml:"player"`
}

// IsAdmin reports whether id is listed in AdminIDs.
func (t TelegramConfig) IsAdmin(id int64) bool {
	for _, a := range t.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Listen string `yaml:"listen"`
	Port   int    `yaml:"port"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Stacks      string `yaml:"stacks"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RedisConfig points the dialog session store at Redis. An empty Addr keeps
// sessions in memory.
type RedisConfig struct {
	Addr       string        `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password   string        `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" envconfig:"REDIS_DB"`
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"REDIS_SESSION_TTL"`
}

// OpsConfig configures the health and metrics listener. An empty Listen disables it.
type OpsConfig struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// SenderConfig tunes the outbound message dispatcher of each bot.
type SenderConfig struct {
	QueueSize  int `yaml:"queue_size"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
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
	// UpdateInlineQuery identifies inline query updates for rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// DefaultSessionTTL bounds how long an idle dialog stack survives.
const DefaultSessionTTL = 24 * time.Hour

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
// - "inline_query": inline query updates
// Burst allows short spikes above one update per interval.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Ops       OpsConfig       `yaml:"ops"`
	Sender    SenderConfig    `yaml:"sender"`
}

// CoreConfig returns cfg itself so *Config satisfies carriers of the core section.
func (cfg *Config) CoreConfig() *Config { return cfg }

// LoadInto reads a YAML file into dst and overlays environment variables.
func LoadInto(path string, dst any) error {
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

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		return nil, err
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

	if strings.TrimSpace(cfg.Telegram.Admin.Token) == "" {
		return fmt.Errorf("telegram.admin.token is required")
	}
	if strings.TrimSpace(cfg.Telegram.Player.Token) == "" {
		return fmt.Errorf("telegram.player.token is required")
	}
	if cfg.Telegram.Admin.Token == cfg.Telegram.Player.Token {
		return fmt.Errorf("telegram.admin.token and telegram.player.token must belong to different bots")
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
		if err := validateWebhook("admin", cfg.Telegram.Admin.Webhook); err != nil {
			return err
		}
		if err := validateWebhook("player", cfg.Telegram.Player.Webhook); err != nil {
			return err
		}
		a, p := cfg.Telegram.Admin.Webhook, cfg.Telegram.Player.Webhook
		if a.Listen == p.Listen && a.Port == p.Port {
			return fmt.Errorf("admin and player webhooks cannot share %s:%d", a.Listen, a.Port)
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst must be >= 0")
	}

	if cfg.Redis.SessionTTL < 0 {
		return fmt.Errorf("redis.session_ttl must be >= 0")
	}
	if cfg.Redis.SessionTTL == 0 {
		cfg.Redis.SessionTTL = DefaultSessionTTL
	}
	if cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}
	return nil
}

func validateWebhook(bot string, w WebhookConfig) error {
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("telegram.%s.webhook.url is required when telegram.run_mode is 'webhook'", bot)
	}
	if strings.TrimSpace(w.Listen) == "" {
		return fmt.Errorf("telegram.%s.webhook.listen is required when telegram.run_mode is 'webhook'", bot)
	}
	if w.Port <= 0 {
		return fmt.Errorf("telegram.%s.webhook.port must be > 0 when telegram.run_mode is 'webhook'", bot)
	}
	return nil
}
