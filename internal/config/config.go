// Package config loads the service configuration from INDIVISIBLE_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dukerupert/indivisible/internal/assistant"
	"github.com/dukerupert/indivisible/internal/push"
)

const EnvPrefix = "INDIVISIBLE"

var (
	// ErrMissingCompletionKey means the assistant cannot reach the
	// completion service at all.
	ErrMissingCompletionKey = errors.New("anthropic_api_key is not set")
	ErrMissingJWTSecret     = errors.New("jwt_secret is not set")
)

type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string
	JWTSecret string

	// AllowedOrigins are host patterns accepted on WebSocket upgrades.
	AllowedOrigins []string

	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int
	AnthropicBaseURL   string
	CompletionTimeout  time.Duration
	AssistantCooldown  time.Duration

	VAPIDPublicKey   string
	VAPIDPrivateKey  string
	VAPIDSubject     string
	ReminderInterval time.Duration
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "indivisible.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", assistant.DefaultModel)
	v.SetDefault("anthropic_max_tokens", assistant.DefaultMaxTokens)
	v.SetDefault("anthropic_base_url", "")
	v.SetDefault("completion_timeout", 60*time.Second)
	v.SetDefault("assistant_cooldown", assistant.DefaultCooldown)
	v.SetDefault("vapid_public_key", "")
	v.SetDefault("vapid_private_key", "")
	v.SetDefault("vapid_subject", "")
	v.SetDefault("reminder_interval", push.DefaultInterval)
	return v
}

// Load reads and validates the configuration. The completion key is always
// required.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:               v.GetInt("port"),
		DBPath:             strings.TrimSpace(v.GetString("db_path")),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		JWTSecret:          v.GetString("jwt_secret"),
		AllowedOrigins:     v.GetStringSlice("allowed_origins"),
		AnthropicAPIKey:    strings.TrimSpace(v.GetString("anthropic_api_key")),
		AnthropicModel:     v.GetString("anthropic_model"),
		AnthropicMaxTokens: v.GetInt("anthropic_max_tokens"),
		AnthropicBaseURL:   v.GetString("anthropic_base_url"),
		CompletionTimeout:  v.GetDuration("completion_timeout"),
		AssistantCooldown:  v.GetDuration("assistant_cooldown"),
		VAPIDPublicKey:     v.GetString("vapid_public_key"),
		VAPIDPrivateKey:    v.GetString("vapid_private_key"),
		VAPIDSubject:       v.GetString("vapid_subject"),
		ReminderInterval:   v.GetDuration("reminder_interval"),
	}

	if cfg.AnthropicAPIKey == "" {
		return cfg, ErrMissingCompletionKey
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.DBPath == "" {
		return cfg, errors.New("db_path is empty")
	}
	if cfg.AnthropicMaxTokens <= 0 {
		return cfg, fmt.Errorf("invalid anthropic_max_tokens: %d", cfg.AnthropicMaxTokens)
	}
	if cfg.CompletionTimeout <= 0 {
		return cfg, fmt.Errorf("invalid completion_timeout: %s", cfg.CompletionTimeout)
	}
	if cfg.AssistantCooldown < 0 {
		return cfg, fmt.Errorf("invalid assistant_cooldown: %s", cfg.AssistantCooldown)
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return cfg, errors.New("vapid_public_key and vapid_private_key must be set together")
	}
	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c Config) ValidateServe() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) Anthropic() assistant.AnthropicConfig {
	return assistant.AnthropicConfig{
		APIKey:    c.AnthropicAPIKey,
		Model:     c.AnthropicModel,
		MaxTokens: c.AnthropicMaxTokens,
		BaseURL:   c.AnthropicBaseURL,
		Timeout:   c.CompletionTimeout,
	}
}

func (c Config) Push() push.Config {
	return push.Config{
		VAPIDPublicKey:  c.VAPIDPublicKey,
		VAPIDPrivateKey: c.VAPIDPrivateKey,
		Subject:         c.VAPIDSubject,
	}
}
