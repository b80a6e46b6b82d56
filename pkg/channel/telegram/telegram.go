package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"sentibot/pkg/bus"
	"sentibot/pkg/channel"
	"sentibot/pkg/config"
	"sentibot/pkg/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240
const typingRefreshInterval = 4 * time.Second

// replyTimeout bounds one message from handling to reply. The message context
// is detached from shutdown, so in-flight messages still get answered.
const replyTimeout = 30 * time.Second

// messenger is the part of *telego.Bot used to answer a message.
type messenger interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error
}

// Adapter bridges Telegram updates into inbound messages and sends one reply per handled message.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With(logger.KeyComponent, "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and handles each message on its own goroutine.
// Once ctx is done polling stops and Run returns after in-flight messages are
// answered.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	files := &fileResolver{bot: bot}
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := inboundFromMessage(update.Message)
			if !ok {
				continue
			}
			if !a.senderAllowed(inbound.SenderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", inbound.SenderID)
				continue
			}
			inbound.Metadata["update_id"] = strconv.Itoa(update.UpdateID)

			chatID := update.Message.Chat.ID
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				a.handleMessage(ctx, bot, files, handler, inbound, chatID)
			}()
		}
	}
}

func (a *Adapter) handleMessage(parent context.Context, bot messenger, files channel.FileResolver, handler channel.Handler, inbound bus.InboundMessage, chatID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), replyTimeout)
	defer cancel()

	a.log.Info("Received message", logger.KeyChatID, inbound.ChatID, "sender_id", inbound.SenderID, logger.KeyKind, string(inbound.Kind), "content", previewText(inbound.Content))

	stopTyping := func() {}
	if inbound.Kind != bus.KindStart {
		stopTyping = a.startTypingIndicator(ctx, bot, chatID)
	}

	outbound, err := handler(ctx, inbound, files)
	stopTyping()
	if err != nil {
		a.log.Error("Failed to process inbound message", "error", err)
		outbound = bus.OutboundMessage{Error: err.Error()}
	}

	responseText := strings.TrimSpace(outbound.Content)
	if responseText == "" {
		responseText = strings.TrimSpace(outbound.Error)
	}
	if responseText == "" {
		return
	}
	a.log.Info("Sending message", logger.KeyChatID, inbound.ChatID, "content", previewText(responseText))

	if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), responseText)); err != nil {
		a.log.Error("Failed to send telegram message", logger.KeyChatID, inbound.ChatID, "error", err)
	}
}

// fileResolver looks up Telegram file paths and builds download URLs.
type fileResolver struct {
	bot *telego.Bot
}

func (r *fileResolver) FileURL(ctx context.Context, fileID string) (string, error) {
	file, err := r.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get telegram file: %w", err)
	}
	if file == nil || strings.TrimSpace(file.FilePath) == "" {
		return "", errors.New("telegram file has no download path")
	}

	return r.bot.FileDownloadURL(file.FilePath), nil
}

// inboundFromMessage classifies a Telegram message as start, text or photo.
// Messages without a sender or without supported content are skipped.
func inboundFromMessage(message *telego.Message) (bus.InboundMessage, bool) {
	if message == nil || message.From == nil {
		return bus.InboundMessage{}, false
	}

	inbound := bus.InboundMessage{
		Channel:  channelName,
		SenderID: strconv.FormatInt(message.From.ID, 10),
		ChatID:   strconv.FormatInt(message.Chat.ID, 10),
		Metadata: map[string]string{
			"message_id": strconv.Itoa(message.MessageID),
		},
	}

	switch {
	case len(message.Photo) > 0:
		inbound.Kind = bus.KindPhoto
		inbound.Photos = make([]bus.PhotoRef, 0, len(message.Photo))
		for _, photo := range message.Photo {
			inbound.Photos = append(inbound.Photos, bus.PhotoRef{
				FileID:   photo.FileID,
				Width:    photo.Width,
				Height:   photo.Height,
				FileSize: int(photo.FileSize),
			})
		}
	case isImageDocument(message.Document):
		inbound.Kind = bus.KindPhoto
		inbound.Photos = []bus.PhotoRef{{FileID: message.Document.FileID}}
	default:
		content := strings.TrimSpace(message.Text)
		if content == "" {
			return bus.InboundMessage{}, false
		}
		if isStartCommand(content) {
			inbound.Kind = bus.KindStart
		} else {
			inbound.Kind = bus.KindText
		}
		inbound.Content = content
	}

	return inbound, true
}

// isStartCommand matches /start and /help, with or without a @botname suffix or arguments.
func isStartCommand(text string) bool {
	command, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	command, _, _ = strings.Cut(command, "@")

	switch strings.ToLower(command) {
	case "/start", "/help":
		return true
	default:
		return false
	}
}

func isImageDocument(document *telego.Document) bool {
	if document == nil || strings.TrimSpace(document.FileID) == "" {
		return false
	}

	return strings.HasPrefix(strings.ToLower(document.MimeType), "image/")
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns at most messagePreviewLimit runes of text for logs.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)

	runes := 0
	for i := range trimmed {
		if runes == messagePreviewLimit {
			return trimmed[:i] + "..."
		}
		runes++
	}

	return trimmed
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot messenger, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", logger.KeyChatID, strconv.FormatInt(chatID, 10), "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
