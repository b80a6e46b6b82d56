package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	clearServiceEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "channels": {"telegram": {"token": "file-token", "allow_from": [" 1 ", ""]}},
	  "services": {
	    "text_analytics": {"endpoint": "https://text.example.com/", "api_key": "text-key"},
	    "vision": {"endpoint": "https://vision.example.com/vision/v3.2", "api_key": "vision-key", "request_timeout_seconds": 3}
	  },
	  "responses": {"positive": ["custom joke"]},
	  "gateway": {"host": "127.0.0.1"},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "file-token", cfg.Channels.Telegram.Token)
	require.True(t, cfg.Channels.Telegram.Enabled())
	require.Equal(t, []string{"1"}, cfg.Channels.Telegram.AllowFrom)
	require.Equal(t, "https://text.example.com", cfg.Services.TextAnalytics.Endpoint)
	require.Equal(t, "en", cfg.Services.TextAnalytics.Language)
	require.Equal(t, defaultRequestTimeoutSeconds, cfg.Services.TextAnalytics.RequestTimeoutSeconds)
	require.Equal(t, 3, cfg.Services.Vision.RequestTimeoutSeconds)
	require.Equal(t, []string{"custom joke"}, cfg.Responses.Positive)
	require.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	require.Equal(t, defaultGatewayPort, cfg.Gateway.Port)
	require.Equal(t, "json", cfg.Logging.Format)
	require.True(t, cfg.Logging.AddSource)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	clearServiceEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"channels": {"telegram": {"token": "file-token"}}, "services": {"vision": {"api_key": "file-vision-key"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(envConfigPath, path)

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_ALLOW_FROM", "10, 20")
	t.Setenv("TEXT_ANALYTICS_ENDPOINT", "https://env-text.example.com")
	t.Setenv("TEXT_ANALYTICS_API_KEY", "env-text-key")
	t.Setenv("VISION_ENDPOINT", "https://env-vision.example.com")
	t.Setenv("SENTIBOT_GATEWAY_PORT", "9999")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "env-token", cfg.Channels.Telegram.Token)
	require.Equal(t, []string{"10", "20"}, cfg.Channels.Telegram.AllowFrom)
	require.Equal(t, "https://env-text.example.com", cfg.Services.TextAnalytics.Endpoint)
	require.Equal(t, "env-text-key", cfg.Services.TextAnalytics.APIKey)
	require.Equal(t, "https://env-vision.example.com", cfg.Services.Vision.Endpoint)
	require.Equal(t, "file-vision-key", cfg.Services.Vision.APIKey)
	require.Equal(t, 9999, cfg.Gateway.Port)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	clearServiceEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.False(t, cfg.Channels.Telegram.Enabled())
	require.Equal(t, defaultGatewayHost, cfg.Gateway.Host)
	require.Equal(t, defaultLanguage, cfg.Services.TextAnalytics.Language)
	require.Error(t, cfg.Validate())
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateReportsEveryMissingCredential(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, "services.text_analytics.endpoint")
	require.ErrorContains(t, err, "services.text_analytics.api_key")
	require.ErrorContains(t, err, "services.vision.endpoint")
	require.ErrorContains(t, err, "services.vision.api_key")
}

func clearServiceEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envConfigPath,
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_ALLOW_FROM",
		"TEXT_ANALYTICS_ENDPOINT",
		"TEXT_ANALYTICS_API_KEY",
		"TEXT_ANALYTICS_LANGUAGE",
		"TEXT_ANALYTICS_TIMEOUT_SECONDS",
		"VISION_ENDPOINT",
		"VISION_API_KEY",
		"VISION_TIMEOUT_SECONDS",
		"SENTIBOT_GATEWAY_HOST",
		"SENTIBOT_GATEWAY_PORT",
	} {
		t.Setenv(key, "")
	}
}
