package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  run_mode: polling
  admin_ids: [7, 9]
  admin:
    token: "111:admin"
  player:
    token: "222:player"
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
redis:
  addr: "localhost:6379"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if !cfg.Telegram.IsAdmin(9) || cfg.Telegram.IsAdmin(8) {
		t.Fatalf("unexpected admin ids %v", cfg.Telegram.AdminIDs)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback {
		t.Fatalf("exclude update not normalized: %q", cfg.RateLimit.ExcludeUpdates[0])
	}
	if cfg.Redis.SessionTTL != DefaultSessionTTL {
		t.Fatalf("session ttl = %v, want %v", cfg.Redis.SessionTTL, DefaultSessionTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_ADMIN_TOKEN", "333:env-admin")
	t.Setenv("REDIS_SESSION_TTL", "90m")
	t.Setenv("TELEGRAM_ADMIN_IDS", "1,2,3")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Admin.Token != "333:env-admin" {
		t.Fatalf("admin token = %q", cfg.Telegram.Admin.Token)
	}
	if cfg.Telegram.Player.Token != "222:player" {
		t.Fatalf("player token = %q", cfg.Telegram.Player.Token)
	}
	if cfg.Redis.SessionTTL != 90*time.Minute {
		t.Fatalf("session ttl = %v", cfg.Redis.SessionTTL)
	}
	if len(cfg.Telegram.AdminIDs) != 3 {
		t.Fatalf("admin ids = %v", cfg.Telegram.AdminIDs)
	}
}

func TestNormalizeRejects(t *testing.T) {
	base := func() Config {
		return Config{Telegram: TelegramConfig{
			Admin:  BotConfig{Token: "1:a"},
			Player: BotConfig{Token: "2:p"},
		}}
	}
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"missing player token": {func(c *Config) { c.Telegram.Player.Token = "" }, "player.token"},
		"same token":           {func(c *Config) { c.Telegram.Player.Token = "1:a" }, "different bots"},
		"bad run mode":         {func(c *Config) { c.Telegram.RunMode = "push" }, "run_mode"},
		"webhook without url": {func(c *Config) {
			c.Telegram.RunMode = RunModeWebhook
		}, "admin.webhook.url"},
		"shared webhook listener": {func(c *Config) {
			c.Telegram.RunMode = RunModeWebhook
			hook := WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
			c.Telegram.Admin.Webhook = hook
			c.Telegram.Player.Webhook = hook
		}, "cannot share"},
		"bad exclude": {func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"poll"} }, "exclude_updates"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := Normalize(&cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}
