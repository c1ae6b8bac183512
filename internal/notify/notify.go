package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/muezzin/internal/prayer"
)

// Kind names an intent. Kinds are stable strings: they appear in MQTT topics
// and in golden traces.
type Kind string

const (
	KindShowOngoingAlert Kind = "show_ongoing_alert"
	KindDismissAlert     Kind = "dismiss_alert"
	KindLaunchPlayer     Kind = "launch_player"
	KindSilentReminder   Kind = "silent_reminder"
	KindCapabilityDenied Kind = "capability_denied"
)

// Intent is a presentation request emitted by the core. Adapters translate
// intents into whatever the host shows.
type Intent struct {
	Kind      Kind          `json:"kind"`
	Prayer    prayer.Prayer `json:"prayer,omitempty"`
	Sound     string        `json:"sound,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	At        time.Time     `json:"at"`
	Message   string        `json:"message,omitempty"`
}

// Sink receives intents.
type Sink interface {
	Emit(ctx context.Context, in Intent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, in Intent) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, in Intent) error {
	return f(ctx, in)
}

// Discard drops every intent.
var Discard Sink = SinkFunc(func(context.Context, Intent) error { return nil })

// LogSink writes intents to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "notify")}
}

// Emit logs the intent at info level.
func (s *LogSink) Emit(ctx context.Context, in Intent) error {
	attrs := []any{"kind", string(in.Kind)}
	if in.Prayer.Valid() {
		attrs = append(attrs, "prayer", in.Prayer.String())
	}
	if in.Sound != "" {
		attrs = append(attrs, "sound", in.Sound)
	}
	if in.SessionID != "" {
		attrs = append(attrs, "session", in.SessionID)
	}
	if in.Message != "" {
		attrs = append(attrs, "message", in.Message)
	}
	s.logger.InfoContext(ctx, "intent", attrs...)
	return nil
}

// MultiSink fans an intent out to every sink in order.
// All sinks are called even if one fails; failures are joined.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, in Intent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
