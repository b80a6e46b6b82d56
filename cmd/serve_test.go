package cmd

import (
	"context"
	"strings"
	"testing"

	channelpkg "sentibot/pkg/channel"
	"sentibot/pkg/config"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func TestEnabledAdaptersRequiresAtLeastOneChannel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error when no channels are enabled")
	}
}

func TestEnabledAdaptersWithTelegramToken(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Channels: config.ChannelsConfig{Telegram: config.TelegramConfig{Token: "123:abc"}}}
	adapters, err := enabledAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("enabledAdapters error: %v", err)
	}
	if got := enabledChannelNames(adapters); got != "telegram" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram")
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "cli"}}
	if got := enabledChannelNames(adapters); got != "telegram,cli" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,cli")
	}
}

func TestNewDispatcherRequiresServiceCredentials(t *testing.T) {
	t.Parallel()

	if _, err := newDispatcher(&config.Config{}, nil, nil); err == nil {
		t.Fatal("expected error without service endpoints")
	}

	cfg := &config.Config{Services: config.ServicesConfig{
		TextAnalytics: config.TextAnalyticsConfig{Endpoint: "https://text.example.com", APIKey: "k"},
		Vision:        config.VisionConfig{Endpoint: "https://vision.example.com", APIKey: "k"},
	}}
	if _, err := newDispatcher(cfg, nil, nil); err != nil {
		t.Fatalf("newDispatcher error: %v", err)
	}
}

func TestRunServeReturnsConfigErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, name := range []string{
		"SENTIBOT_CONFIG",
		"SENTIBOT_LOG_FORMAT",
		"SENTIBOT_LOG_LEVEL",
		"TELEGRAM_BOT_TOKEN",
		"TEXT_ANALYTICS_ENDPOINT",
		"TEXT_ANALYTICS_API_KEY",
		"VISION_ENDPOINT",
		"VISION_API_KEY",
	} {
		t.Setenv(name, "")
	}

	err := runServe()
	if err == nil {
		t.Fatal("expected error without service credentials")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("runServe error = %v, want invalid config", err)
	}

	if serveCmd.RunE == nil || serveCmd.Run != nil {
		t.Fatal("serve must return errors so Execute exits non-zero")
	}
}
