package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sentibot/pkg/analysis/sentiment"
	"sentibot/pkg/analysis/vision"
	"sentibot/pkg/bus"
	"sentibot/pkg/channel"
	"sentibot/pkg/channel/telegram"
	"sentibot/pkg/config"
	"sentibot/pkg/dispatch"
	"sentibot/pkg/funfact"
	"sentibot/pkg/gateway"
	"sentibot/pkg/logger"

	"github.com/spf13/cobra"
)

const telegramChannelName = "telegram"

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the bot",
	Long:         "Runs the Telegram bot with health, readiness and status endpoints.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe()
	},
}

// runServe returns startup and runtime failures so the process exits non-zero.
func runServe() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	log := slog.Default().With(logger.KeyComponent, "cmd.serve")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	adapters, err := enabledAdapters(cfg, log)
	if err != nil {
		return fmt.Errorf("invalid channel config: %w", err)
	}

	events := bus.NewMessageBus()
	defer events.Close()

	dispatcher, err := newDispatcher(cfg, events, log)
	if err != nil {
		return fmt.Errorf("initialize dispatcher: %w", err)
	}

	svc, err := gateway.NewService(cfg, adapters, dispatcher.Handle, events, log)
	if err != nil {
		return fmt.Errorf("initialize gateway service: %w", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Bot started", "channels", enabledChannelNames(adapters), "language", cfg.Services.TextAnalytics.Language)
	if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot runtime failed", "error", err)
		return err
	}

	log.Info("Bot stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled() {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled (set TELEGRAM_BOT_TOKEN)")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

// newDispatcher builds both analysis clients and the response selector from config.
func newDispatcher(cfg *config.Config, events *bus.MessageBus, log *slog.Logger) (*dispatch.Dispatcher, error) {
	sentimentClient, err := sentiment.New(cfg.Services.TextAnalytics)
	if err != nil {
		return nil, fmt.Errorf("initialize sentiment client: %w", err)
	}

	visionClient, err := vision.New(cfg.Services.Vision)
	if err != nil {
		return nil, fmt.Errorf("initialize vision client: %w", err)
	}

	selector := funfact.New(nil, funfact.Overrides{
		Positive: cfg.Responses.Positive,
		Neutral:  cfg.Responses.Neutral,
		Negative: cfg.Responses.Negative,
	})

	return dispatch.New(sentimentClient, visionClient, selector, events, log)
}
