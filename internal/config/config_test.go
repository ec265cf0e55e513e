package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
  "session": {
    "seed_file": "seed.yaml",
    "model_timeout": "30s"
  },
  "provider": {
    "type": "anthropic",
    "api_key": "sk-test-key"
  },
  "gate": {
    "policy_file": "/etc/rack/policy.cedar",
    "hot_reload": true
  },
  "pagers": {
    "slack": {"bot_token": "xoxb-1", "channel": "#support-oncall"},
    "telegram": {"token": "123456:ABC", "chat_ids": [100, 200]},
    "webhook": {"url": "https://hooks.example.com/rack", "secret": "s3cret"}
  },
  "hitl": {
    "repage_schedule": "@every 30s",
    "repage_after": 300
  },
  "api": {
    "host": "127.0.0.1",
    "port": 9000,
    "api_key": "dashboard-key"
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, validJSON)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider.Type != ProviderAnthropic {
		t.Errorf("provider.type = %q", cfg.Provider.Type)
	}
	if cfg.Provider.Model != "claude-sonnet-4-20250514" {
		t.Errorf("expected default anthropic model, got %q", cfg.Provider.Model)
	}
	if cfg.Session.ModelTimeout.Duration != 30*time.Second {
		t.Errorf("model_timeout = %v", cfg.Session.ModelTimeout)
	}
	if want := filepath.Join(filepath.Dir(path), "seed.yaml"); cfg.Session.SeedFile != want {
		t.Errorf("seed_file = %q, want %q", cfg.Session.SeedFile, want)
	}
	if cfg.Gate.PolicyFile != "/etc/rack/policy.cedar" {
		t.Errorf("policy_file = %q", cfg.Gate.PolicyFile)
	}
	if cfg.HITL.RepageAfter.Duration != 5*time.Minute {
		t.Errorf("repage_after = %v", cfg.HITL.RepageAfter)
	}
	if cfg.Pagers.Telegram == nil || len(cfg.Pagers.Telegram.ChatIDs) != 2 {
		t.Errorf("telegram = %+v", cfg.Pagers.Telegram)
	}
	if cfg.Pagers.Slack == nil || cfg.Pagers.Slack.Channel != "#support-oncall" {
		t.Errorf("slack = %+v", cfg.Pagers.Slack)
	}
	if cfg.API.Port != 9000 || cfg.API.Key != "dashboard-key" {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Audit.Size != 1000 {
		t.Errorf("expected default audit size, got %d", cfg.Audit.Size)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	_, err := Load(writeConfig(t, "{invalid"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `{"provider": {"api_key": "k"}, "session": {"model_timeout": "soon"}}`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Provider.Type != ProviderGemini || cfg.Provider.Model != "gemini-2.5-flash" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Session.ModelTimeout.Duration != time.Minute {
		t.Errorf("model_timeout = %v", cfg.Session.ModelTimeout)
	}
	if cfg.HITL.RepageSchedule != "@every 1m" || cfg.HITL.RepageAfter.Duration != 10*time.Minute {
		t.Errorf("hitl = %+v", cfg.HITL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }, "provider.api_key is required"},
		{"unknown provider", func(c *Config) { c.Provider.Type = "bard" }, `provider.type "bard"`},
		{"slack without channel", func(c *Config) { c.Pagers.Slack = &SlackConfig{BotToken: "x"} }, "pagers.slack.channel is required"},
		{"telegram without chats", func(c *Config) { c.Pagers.Telegram = &TelegramConfig{Token: "x"} }, "pagers.telegram.chat_ids is required"},
		{"webhook bad url", func(c *Config) { c.Pagers.Webhook = &WebhookConfig{URL: "ftp://x"} }, "pagers.webhook.url"},
		{"hot reload without file", func(c *Config) { c.Gate.HotReload = true }, "gate.hot_reload requires gate.policy_file"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "api.port 70000 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider.APIKey = "k"
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RACK_OPENAI_API_KEY", "sk-env")
	t.Setenv("RACK_MODEL", "gpt-4o-mini")
	t.Setenv("RACK_API_PORT", "9090")
	t.Setenv("RACK_MODEL_TIMEOUT", "15s")
	t.Setenv("RACK_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("RACK_TELEGRAM_CHAT_IDS", "100,200,300")
	t.Setenv("RACK_WEBHOOK_URL", "https://hooks.example.com")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Provider.Type != ProviderOpenAI || cfg.Provider.APIKey != "sk-env" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	if cfg.Session.ModelTimeout.Duration != 15*time.Second {
		t.Errorf("model_timeout = %v", cfg.Session.ModelTimeout)
	}
	if cfg.Pagers.Telegram == nil || len(cfg.Pagers.Telegram.ChatIDs) != 3 {
		t.Errorf("telegram = %+v", cfg.Pagers.Telegram)
	}
	if cfg.Pagers.Webhook == nil || cfg.Pagers.Webhook.URL != "https://hooks.example.com" {
		t.Errorf("webhook = %+v", cfg.Pagers.Webhook)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("env config should validate: %v", err)
	}
}

func TestLoadFromEnv_GeminiPreferred(t *testing.T) {
	t.Setenv("RACK_GEMINI_API_KEY", "g-key")
	t.Setenv("RACK_OPENAI_API_KEY", "o-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Provider.Type != ProviderGemini || cfg.Provider.APIKey != "g-key" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestLoadFromEnv_BadChatIDs(t *testing.T) {
	t.Setenv("RACK_TELEGRAM_TOKEN", "tg")
	t.Setenv("RACK_TELEGRAM_CHAT_IDS", "100,abc")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for invalid chat ids")
	}
}
