package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Provider types.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config is the top-level rack configuration.
type Config struct {
	Session  SessionConfig  `json:"session"`
	Provider ProviderConfig `json:"provider"`
	Gate     GateConfig     `json:"gate"`
	Pagers   PagerConfig    `json:"pagers"`
	HITL     HITLConfig     `json:"hitl"`
	Audit    AuditConfig    `json:"audit"`
	API      APIConfig      `json:"api"`
}

// SessionConfig holds conversation settings.
type SessionConfig struct {
	SeedFile     string   `json:"seed_file,omitempty"` // path or http(s) URL; empty uses the built-in seed
	SeedToken    string   `json:"seed_token,omitempty"`
	ModelTimeout Duration `json:"model_timeout"`
}

// ProviderConfig holds model backend settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "gemini" (default), "openai" or "anthropic"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// GateConfig holds dispatch policy settings.
type GateConfig struct {
	PolicyFile string `json:"policy_file,omitempty"` // empty uses the built-in policy
	HotReload  bool   `json:"hot_reload,omitempty"`
}

// PagerConfig holds supervisor notification targets. All are optional.
type PagerConfig struct {
	Slack    *SlackConfig    `json:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Webhook  *WebhookConfig  `json:"webhook,omitempty"`
}

// SlackConfig holds Slack pager settings.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// TelegramConfig holds Telegram pager settings.
type TelegramConfig struct {
	Token   string  `json:"token"`
	ChatIDs []int64 `json:"chat_ids"`
}

// WebhookConfig holds webhook pager settings.
type WebhookConfig struct {
	URL         string `json:"url"`
	Secret      string `json:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty"`
}

// HITLConfig controls re-paging while a conversation waits for a human.
type HITLConfig struct {
	RepageSchedule string   `json:"repage_schedule"`
	RepageAfter    Duration `json:"repage_after"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	File string `json:"file,omitempty"` // JSON-lines mirror; empty keeps the trail in memory only
	Size int    `json:"size,omitempty"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Duration is a time.Duration that reads from JSON as "90s" or a number of seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q", val)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// Default returns a config with every optional field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Provider.Type == "" {
		c.Provider.Type = ProviderGemini
	}
	if c.Provider.Model == "" {
		c.Provider.Model = DefaultModel(c.Provider.Type)
	}
	if c.Session.ModelTimeout.Duration == 0 {
		c.Session.ModelTimeout.Duration = 60 * time.Second
	}
	if c.HITL.RepageSchedule == "" {
		c.HITL.RepageSchedule = "@every 1m"
	}
	if c.HITL.RepageAfter.Duration == 0 {
		c.HITL.RepageAfter.Duration = 10 * time.Minute
	}
	if c.Audit.Size == 0 {
		c.Audit.Size = 1000
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(providerType string) string {
	switch providerType {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	default:
		return "gemini-2.5-flash"
	}
}

// Load reads configuration from a JSON file. Relative seed and policy paths
// are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.Session.SeedFile = resolvePath(dir, cfg.Session.SeedFile)
	cfg.Gate.PolicyFile = resolvePath(dir, cfg.Gate.PolicyFile)

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || isURL(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// LoadFromEnv builds a config from environment variables with RACK_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Session: SessionConfig{
			SeedFile:  os.Getenv("RACK_SEED_FILE"),
			SeedToken: os.Getenv("RACK_SEED_TOKEN"),
		},
		Gate: GateConfig{
			PolicyFile: os.Getenv("RACK_POLICY_FILE"),
			HotReload:  getenvBool("RACK_POLICY_HOT_RELOAD", false),
		},
		HITL: HITLConfig{
			RepageSchedule: os.Getenv("RACK_HITL_REPAGE_SCHEDULE"),
		},
		Audit: AuditConfig{
			File: os.Getenv("RACK_AUDIT_FILE"),
			Size: getenvInt("RACK_AUDIT_SIZE", 0),
		},
		API: APIConfig{
			Host: getenv("RACK_API_HOST", "0.0.0.0"),
			Port: getenvInt("RACK_API_PORT", 8080),
			Key:  os.Getenv("RACK_API_KEY"),
		},
	}

	var err error
	if cfg.Session.ModelTimeout.Duration, err = getenvDuration("RACK_MODEL_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.HITL.RepageAfter.Duration, err = getenvDuration("RACK_HITL_REPAGE_AFTER", 0); err != nil {
		return nil, err
	}

	// First key found wins.
	switch {
	case os.Getenv("RACK_GEMINI_API_KEY") != "":
		cfg.Provider = ProviderConfig{
			Type:    ProviderGemini,
			APIKey:  os.Getenv("RACK_GEMINI_API_KEY"),
			BaseURL: os.Getenv("RACK_GEMINI_BASE_URL"),
		}
	case os.Getenv("RACK_ANTHROPIC_API_KEY") != "":
		cfg.Provider = ProviderConfig{
			Type:   ProviderAnthropic,
			APIKey: os.Getenv("RACK_ANTHROPIC_API_KEY"),
		}
	case os.Getenv("RACK_OPENAI_API_KEY") != "":
		cfg.Provider = ProviderConfig{
			Type:    ProviderOpenAI,
			APIKey:  os.Getenv("RACK_OPENAI_API_KEY"),
			BaseURL: os.Getenv("RACK_OPENAI_BASE_URL"),
		}
	}
	cfg.Provider.Model = os.Getenv("RACK_MODEL")

	if token := os.Getenv("RACK_SLACK_BOT_TOKEN"); token != "" {
		cfg.Pagers.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("RACK_SLACK_CHANNEL"),
		}
	}
	if token := os.Getenv("RACK_TELEGRAM_TOKEN"); token != "" {
		cfg.Pagers.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("RACK_TELEGRAM_CHAT_IDS"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: RACK_TELEGRAM_CHAT_IDS: %w", err)
			}
			cfg.Pagers.Telegram.ChatIDs = parsed
		}
	}
	if url := os.Getenv("RACK_WEBHOOK_URL"); url != "" {
		cfg.Pagers.Webhook = &WebhookConfig{
			URL:         url,
			Secret:      os.Getenv("RACK_WEBHOOK_SECRET"),
			BearerToken: os.Getenv("RACK_WEBHOOK_TOKEN"),
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	switch c.Provider.Type {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Sprintf("provider.type %q is not one of gemini, openai, anthropic", c.Provider.Type))
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}

	if c.Session.ModelTimeout.Duration < 0 {
		errs = append(errs, "session.model_timeout must be positive")
	}
	if c.HITL.RepageAfter.Duration < 0 {
		errs = append(errs, "hitl.repage_after must be positive")
	}
	if c.Gate.HotReload && c.Gate.PolicyFile == "" {
		errs = append(errs, "gate.hot_reload requires gate.policy_file")
	}

	if s := c.Pagers.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "pagers.slack.bot_token is required")
		}
		if s.Channel == "" {
			errs = append(errs, "pagers.slack.channel is required")
		}
	}
	if tg := c.Pagers.Telegram; tg != nil {
		if tg.Token == "" {
			errs = append(errs, "pagers.telegram.token is required")
		}
		if len(tg.ChatIDs) == 0 {
			errs = append(errs, "pagers.telegram.chat_ids is required")
		}
	}
	if wh := c.Pagers.Webhook; wh != nil && !isURL(wh.URL) {
		errs = append(errs, "pagers.webhook.url must be an http(s) URL")
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, v)
	}
	return d, nil
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
