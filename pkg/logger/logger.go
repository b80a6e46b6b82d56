// Package logger builds the process slog.Logger: a charm text handler for
// terminals or a JSON handler that lifts per-message attributes to top-level
// keys.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"

	"sentibot/pkg/config"
)

const (
	envLogFormat    = "SENTIBOT_LOG_FORMAT"
	envLogLevel     = "SENTIBOT_LOG_LEVEL"
	envLogAddSource = "SENTIBOT_LOG_ADD_SOURCE"
)

// Attribute keys shared by the dispatcher and channel adapters. The JSON
// handler writes them as top-level fields of each line.
const (
	KeyComponent = "component"
	KeyRequestID = "request_id"
	KeyChannel   = "channel"
	KeyChatID    = "chat_id"
	KeyKind      = "kind"
	KeyErrorKind = "error_kind"
	KeyDuration  = "duration_ms"
)

// LogEntry is one JSON log line.
type LogEntry struct {
	Level      string         `json:"level"`
	Timestamp  string         `json:"timestamp"`
	Message    string         `json:"message"`
	Component  string         `json:"component,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	ChatID     string         `json:"chat_id,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Caller     string         `json:"caller,omitempty"`
}

var promoted = map[string]func(*LogEntry, slog.Value) bool{
	KeyComponent: stringField(func(e *LogEntry) *string { return &e.Component }),
	KeyRequestID: stringField(func(e *LogEntry) *string { return &e.RequestID }),
	KeyChannel:   stringField(func(e *LogEntry) *string { return &e.Channel }),
	KeyChatID:    stringField(func(e *LogEntry) *string { return &e.ChatID }),
	KeyKind:      stringField(func(e *LogEntry) *string { return &e.Kind }),
	KeyErrorKind: stringField(func(e *LogEntry) *string { return &e.ErrorKind }),
	KeyDuration: func(e *LogEntry, v slog.Value) bool {
		if v.Kind() != slog.KindInt64 {
			return false
		}
		e.DurationMS = v.Int64()
		return true
	},
}

func stringField(field func(*LogEntry) *string) func(*LogEntry, slog.Value) bool {
	return func(e *LogEntry, v slog.Value) bool {
		if v.Kind() != slog.KindString {
			return false
		}
		*field(e) = v.String()
		return true
	}
}

type options struct {
	json      bool
	level     slog.Level
	addSource bool
}

// New builds the process logger from config; SENTIBOT_LOG_* variables win
// over the file values.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	opts, err := resolveOptions(cfg)
	if err != nil {
		return nil, err
	}

	if opts.json {
		return slog.New(&jsonHandler{opts: opts, w: w, mu: &sync.Mutex{}}), nil
	}

	return slog.New(charmLog.NewWithOptions(w, charmLog.Options{
		Level:           charmLevel(opts.level),
		ReportTimestamp: true,
		ReportCaller:    opts.addSource,
		Prefix:          "sentibot",
	})), nil
}

func resolveOptions(cfg config.LoggingConfig) (options, error) {
	var opts options

	switch format := strings.ToLower(envOr(envLogFormat, cfg.Format)); format {
	case "", "text":
	case "json":
		opts.json = true
	default:
		return options{}, fmt.Errorf("unsupported log format %q", format)
	}

	switch level := strings.ToLower(envOr(envLogLevel, cfg.Level)); level {
	case "", "info":
		opts.level = slog.LevelInfo
	case "debug":
		opts.level = slog.LevelDebug
	case "warn", "warning":
		opts.level = slog.LevelWarn
	case "error":
		opts.level = slog.LevelError
	default:
		return options{}, fmt.Errorf("unsupported log level %q", level)
	}

	opts.addSource = cfg.AddSource
	if value := strings.TrimSpace(os.Getenv(envLogAddSource)); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			opts.addSource = true
		default:
			opts.addSource = false
		}
	}

	return opts, nil
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}

func charmLevel(level slog.Level) charmLog.Level {
	switch level {
	case slog.LevelDebug:
		return charmLog.DebugLevel
	case slog.LevelWarn:
		return charmLog.WarnLevel
	case slog.LevelError:
		return charmLog.ErrorLevel
	default:
		return charmLog.InfoLevel
	}
}

// jsonHandler writes one LogEntry per record. attrs already carry their
// group prefix.
type jsonHandler struct {
	opts   options
	w      io.Writer
	attrs  []slog.Attr
	prefix string
	mu     *sync.Mutex
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

func (h *jsonHandler) Handle(_ context.Context, record slog.Record) error {
	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}

	entry := LogEntry{
		Level:     strings.ToLower(record.Level.String()),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Message:   record.Message,
	}

	fields := make(map[string]any)
	for _, attr := range h.attrs {
		entry.add(fields, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		entry.add(fields, h.qualify(attr))
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}

	if h.opts.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(line, '\n'))
	return err
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.qualify(attr))
	}
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *jsonHandler) qualify(attr slog.Attr) slog.Attr {
	attr.Key = h.prefix + attr.Key
	return attr
}

// add promotes well-known keys and files everything else under Fields.
func (e *LogEntry) add(fields map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if set, ok := promoted[attr.Key]; ok && set(e, attr.Value) {
		return
	}

	fields[attr.Key] = fieldValue(attr.Value)
}

func fieldValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := make(map[string]any)
		for _, item := range value.Group() {
			group[item.Key] = fieldValue(item.Value.Resolve())
		}
		return group
	case slog.KindAny:
		// errors marshal to {} otherwise.
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()
	default:
		return value.Any()
	}
}
