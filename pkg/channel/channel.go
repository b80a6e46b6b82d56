package channel

import (
	"context"

	"sentibot/pkg/bus"
)

// FileResolver turns a channel-specific file reference into a fetchable URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Handler processes one inbound channel message and returns the reply to send.
// files resolves media references for the channel the message arrived on.
type Handler func(ctx context.Context, inbound bus.InboundMessage, files FileResolver) (bus.OutboundMessage, error)

// Adapter bridges one external transport (for example Telegram) into the bot.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
