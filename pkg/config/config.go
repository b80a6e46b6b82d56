package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	envConfigPath = "SENTIBOT_CONFIG"

	defaultLanguage              = "en"
	defaultRequestTimeoutSeconds = 10
	defaultGatewayHost           = "0.0.0.0"
	defaultGatewayPort           = 18790
)

// Config is the root runtime configuration.
//
// Values come from an optional config.json, then from the process
// environment (and a .env file when present).
type Config struct {
	Channels  ChannelsConfig  `json:"channels"`
	Services  ServicesConfig  `json:"services"`
	Responses ResponsesConfig `json:"responses,omitempty"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
//
// The channel is enabled whenever a token is configured.
type TelegramConfig struct {
	Token     string   `json:"token" env:"TELEGRAM_BOT_TOKEN"`
	AllowFrom []string `json:"allow_from" env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
}

// Enabled reports whether the Telegram channel should run.
func (c TelegramConfig) Enabled() bool {
	return strings.TrimSpace(c.Token) != ""
}

// ServicesConfig groups the upstream analysis services.
type ServicesConfig struct {
	TextAnalytics TextAnalyticsConfig `json:"text_analytics"`
	Vision        VisionConfig        `json:"vision"`
}

// TextAnalyticsConfig configures the sentiment analysis endpoint.
type TextAnalyticsConfig struct {
	Endpoint              string `json:"endpoint" env:"TEXT_ANALYTICS_ENDPOINT"`
	APIKey                string `json:"api_key" env:"TEXT_ANALYTICS_API_KEY"`
	Language              string `json:"language" env:"TEXT_ANALYTICS_LANGUAGE"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" env:"TEXT_ANALYTICS_TIMEOUT_SECONDS"`
}

// VisionConfig configures the image analysis endpoint.
type VisionConfig struct {
	Endpoint              string `json:"endpoint" env:"VISION_ENDPOINT"`
	APIKey                string `json:"api_key" env:"VISION_API_KEY"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" env:"VISION_TIMEOUT_SECONDS"`
}

// ResponsesConfig optionally replaces the built-in fun response categories.
// Empty categories keep the built-in candidates.
type ResponsesConfig struct {
	Positive []string `json:"positive,omitempty"`
	Neutral  []string `json:"neutral,omitempty"`
	Negative []string `json:"negative,omitempty"`
}

// GatewayConfig configures the HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host" env:"SENTIBOT_GATEWAY_HOST"`
	Port int    `json:"port" env:"SENTIBOT_GATEWAY_PORT"`
}

// LoadConfig reads the optional config file, applies environment overrides
// and fills defaults.
func LoadConfig() (*Config, error) {
	var cfg Config

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Validate reports configuration that prevents the bot from serving.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}

	var errs []error
	if strings.TrimSpace(c.Services.TextAnalytics.Endpoint) == "" {
		errs = append(errs, errors.New("services.text_analytics.endpoint is required"))
	}
	if strings.TrimSpace(c.Services.TextAnalytics.APIKey) == "" {
		errs = append(errs, errors.New("services.text_analytics.api_key is required"))
	}
	if strings.TrimSpace(c.Services.Vision.Endpoint) == "" {
		errs = append(errs, errors.New("services.vision.endpoint is required"))
	}
	if strings.TrimSpace(c.Services.Vision.APIKey) == "" {
		errs = append(errs, errors.New("services.vision.api_key is required"))
	}

	return errors.Join(errs...)
}

// applyDefaults fills zero values left after file and environment decoding.
func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Channels.Telegram.Token = strings.TrimSpace(cfg.Channels.Telegram.Token)
	cfg.Channels.Telegram.AllowFrom = compact(cfg.Channels.Telegram.AllowFrom)

	text := &cfg.Services.TextAnalytics
	text.Endpoint = strings.TrimRight(strings.TrimSpace(text.Endpoint), "/")
	if strings.TrimSpace(text.Language) == "" {
		text.Language = defaultLanguage
	}
	if text.RequestTimeoutSeconds <= 0 {
		text.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}

	vision := &cfg.Services.Vision
	vision.Endpoint = strings.TrimRight(strings.TrimSpace(vision.Endpoint), "/")
	if vision.RequestTimeoutSeconds <= 0 {
		vision.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}

	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		cfg.Gateway.Host = defaultGatewayHost
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = defaultGatewayPort
	}
}

// compact trims values and drops empty ones.
func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	if len(clean) == 0 {
		return nil
	}
	return clean
}

// findConfigPath resolves the active config file location.
//
// Precedence is SENTIBOT_CONFIG first, then cwd-local fallback paths. An
// empty path with a nil error means no config file is present.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
