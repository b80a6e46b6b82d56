// Package dispatch routes inbound chat messages to the analysis clients and
// builds the reply for each one.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"sentibot/pkg/analysis"
	"sentibot/pkg/bus"
	"sentibot/pkg/channel"
	"sentibot/pkg/funfact"
	"sentibot/pkg/logger"

	"github.com/google/uuid"
)

const (
	metaRequestIDKey = "request_id"
	metaLabelKey     = "sentiment_label"
	metaPhotoKey     = "photo_file_id"
)

// SentimentAnalyzer is implemented by *sentiment.Client.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (analysis.SentimentResult, error)
}

// ImageAnalyzer is implemented by *vision.Client.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL string) (analysis.ImageResult, error)
}

// Dispatcher handles start, text and photo messages. It holds no per-message
// state, so Handle may run concurrently.
type Dispatcher struct {
	sentiment SentimentAnalyzer
	vision    ImageAnalyzer
	selector  *funfact.Selector
	events    *bus.MessageBus
	log       *slog.Logger
}

// New wires a dispatcher. events may be nil when nobody observes the lifecycle.
func New(sentiment SentimentAnalyzer, vision ImageAnalyzer, selector *funfact.Selector, events *bus.MessageBus, log *slog.Logger) (*Dispatcher, error) {
	if sentiment == nil {
		return nil, errors.New("sentiment analyzer is required")
	}
	if vision == nil {
		return nil, errors.New("image analyzer is required")
	}
	if selector == nil {
		selector = funfact.New(nil, funfact.Overrides{})
	}
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		sentiment: sentiment,
		vision:    vision,
		selector:  selector,
		events:    events,
		log:       log.With(logger.KeyComponent, "dispatch"),
	}, nil
}

// Handle produces the reply for one inbound message. Analysis failures are
// logged and turned into a fixed reply, so the returned error is always nil
// for start, text and photo messages. Unknown kinds yield an empty reply.
func (d *Dispatcher) Handle(ctx context.Context, inbound bus.InboundMessage, files channel.FileResolver) (bus.OutboundMessage, error) {
	requestID := uuid.NewString()
	log := d.log.With(
		logger.KeyRequestID, requestID,
		logger.KeyKind, string(inbound.Kind),
		logger.KeyChannel, inbound.Channel,
		logger.KeyChatID, inbound.ChatID,
	)
	d.publish(ctx, bus.EventMessageReceived, requestID, inbound, nil, "")

	outbound := bus.OutboundMessage{
		Channel:  inbound.Channel,
		ChatID:   inbound.ChatID,
		Metadata: map[string]string{metaRequestIDKey: requestID},
	}

	startedAt := time.Now()
	var err error
	switch inbound.Kind {
	case bus.KindStart:
		outbound.Content = GreetingReply
	case bus.KindText:
		outbound.Content, err = d.handleText(ctx, log, inbound, outbound.Metadata)
	case bus.KindPhoto:
		outbound.Content, err = d.handlePhoto(ctx, log, inbound, files, outbound.Metadata)
	default:
		log.Debug("Ignoring unsupported message kind")
		return bus.OutboundMessage{Channel: inbound.Channel, ChatID: inbound.ChatID}, nil
	}

	if err != nil {
		log.Error("Analysis failed", logger.KeyErrorKind, kindName(err), "error", err, logger.KeyDuration, time.Since(startedAt).Milliseconds())
		d.publish(ctx, bus.EventAnalysisFailed, requestID, inbound, outbound.Metadata, err.Error())
		return outbound, nil
	}

	log.Info("Analysis completed", logger.KeyDuration, time.Since(startedAt).Milliseconds())
	d.publish(ctx, bus.EventAnalysisCompleted, requestID, inbound, outbound.Metadata, "")
	return outbound, nil
}

// handleText returns the reply text; on error the reply is already the fixed
// user-facing message.
func (d *Dispatcher) handleText(ctx context.Context, log *slog.Logger, inbound bus.InboundMessage, metadata map[string]string) (string, error) {
	result, err := d.sentiment.AnalyzeSentiment(ctx, inbound.Content)
	if err != nil {
		return TextErrorReply, categorize(analysis.ErrSentimentAnalysisFailed, err)
	}
	metadata[metaLabelKey] = string(result.Label)

	if _, err := d.selector.Lookup(result.Label); err != nil {
		log.Warn("Using default fun response", "label", string(result.Label), "error", err)
	}

	return FormatSentimentReply(result, d.selector.Select(result.Label)), nil
}

func (d *Dispatcher) handlePhoto(ctx context.Context, log *slog.Logger, inbound bus.InboundMessage, files channel.FileResolver, metadata map[string]string) (string, error) {
	photo, ok := inbound.LargestPhoto()
	if !ok || strings.TrimSpace(photo.FileID) == "" {
		return ImageErrorReply, analysis.NewError(analysis.ErrImageAnalysisFailed, errors.New("message carries no photo"))
	}
	metadata[metaPhotoKey] = photo.FileID

	if files == nil {
		return ImageErrorReply, analysis.NewError(analysis.ErrImageAnalysisFailed, errors.New("channel cannot resolve files"))
	}

	imageURL, err := files.FileURL(ctx, photo.FileID)
	if err != nil {
		return ImageErrorReply, analysis.NewError(analysis.ErrImageAnalysisFailed, fmt.Errorf("resolve file url: %w", err))
	}
	log.Debug("Resolved photo", "file_id", photo.FileID, "width", photo.Width, "height", photo.Height)

	result, err := d.vision.AnalyzeImage(ctx, imageURL)
	if err != nil {
		return ImageErrorReply, categorize(analysis.ErrImageAnalysisFailed, err)
	}

	return FormatImageReply(result), nil
}

func (d *Dispatcher) publish(ctx context.Context, eventType bus.EventType, requestID string, inbound bus.InboundMessage, payload map[string]string, errText string) {
	if d.events == nil {
		return
	}

	d.events.PublishEvent(ctx, bus.Event{
		Type:      eventType,
		Kind:      inbound.Kind,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		RequestID: requestID,
		Payload:   maps.Clone(payload),
		Error:     errText,
	})
}

// categorize tags analyzer errors that do not already carry a kind.
func categorize(kind error, err error) error {
	if analysis.KindOf(err) != nil {
		return err
	}

	return analysis.NewError(kind, err)
}

func kindName(err error) string {
	switch analysis.KindOf(err) {
	case analysis.ErrSentimentAnalysisFailed:
		return "sentiment_analysis_failed"
	case analysis.ErrImageAnalysisFailed:
		return "image_analysis_failed"
	case analysis.ErrUnrecognizedSentimentLabel:
		return "unrecognized_sentiment_label"
	default:
		return "unknown"
	}
}
