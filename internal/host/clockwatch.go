package host

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/engine"
)

// DefaultWatchInterval is how often the ClockWatcher samples the clock.
const (
	DefaultWatchInterval = 30 * time.Second
	DefaultJumpTolerance = 2 * time.Second
)

// Sample is one reading of the wall clock alongside a monotonic reading.
type Sample struct {
	Wall time.Time
	Mono time.Duration
}

// ChangeFunc receives detected clock changes.
type ChangeFunc func(ctx context.Context, kind engine.TriggerKind)

// ClockWatcher detects wall-clock jumps and UTC offset changes, the two
// host events that invalidate a registered alarm.
type ClockWatcher struct {
	mu        sync.Mutex
	last      Sample
	hasLast   bool
	interval  time.Duration
	tolerance time.Duration
	sample    func() Sample
	onChange  ChangeFunc

	clock  clockwork.Clock
	logger *slog.Logger
}

// WatchOption configures a ClockWatcher.
type WatchOption func(*ClockWatcher)

// WithWatchInterval sets the sampling interval.
func WithWatchInterval(d time.Duration) WatchOption {
	return func(w *ClockWatcher) { w.interval = d }
}

// WithJumpTolerance sets how far wall and monotonic time may drift apart
// between samples before it counts as a jump.
func WithJumpTolerance(d time.Duration) WatchOption {
	return func(w *ClockWatcher) { w.tolerance = d }
}

// WithSampler replaces the clock reader.
func WithSampler(fn func() Sample) WatchOption {
	return func(w *ClockWatcher) { w.sample = fn }
}

// WithWatchClock sets the clock that drives the sampling ticker.
func WithWatchClock(c clockwork.Clock) WatchOption {
	return func(w *ClockWatcher) { w.clock = c }
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *ClockWatcher) { w.logger = l }
}

// NewClockWatcher creates a ClockWatcher that reports to onChange.
func NewClockWatcher(onChange ChangeFunc, opts ...WatchOption) *ClockWatcher {
	w := &ClockWatcher{
		interval:  DefaultWatchInterval,
		tolerance: DefaultJumpTolerance,
		onChange:  onChange,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sample == nil {
		start := time.Now()
		w.sample = func() Sample {
			now := time.Now()
			return Sample{Wall: now.Round(0), Mono: now.Sub(start)}
		}
	}
	w.logger = w.logger.With("component", "clockwatch")
	return w
}

// Run samples until ctx is done.
func (w *ClockWatcher) Run(ctx context.Context) error {
	w.Check(ctx)
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			w.Check(ctx)
		}
	}
}

// Check takes one sample and reports a change against the previous one.
// The first sample only sets the baseline. An offset change wins over a
// jump when both happen at once.
func (w *ClockWatcher) Check(ctx context.Context) (engine.TriggerKind, bool) {
	cur := w.sample()

	w.mu.Lock()
	prev, hasPrev := w.last, w.hasLast
	w.last, w.hasLast = cur, true
	w.mu.Unlock()

	if !hasPrev {
		return "", false
	}

	var kind engine.TriggerKind
	_, prevOff := prev.Wall.Zone()
	_, curOff := cur.Wall.Zone()
	drift := cur.Wall.Sub(prev.Wall) - (cur.Mono - prev.Mono)
	switch {
	case prevOff != curOff || prev.Wall.Location().String() != cur.Wall.Location().String():
		kind = engine.TriggerTimezoneChanged
		w.logger.Info("utc offset changed", "from", prevOff, "to", curOff)
	case drift > w.tolerance || drift < -w.tolerance:
		kind = engine.TriggerTimeChanged
		w.logger.Info("wall clock jumped", "drift", drift)
	default:
		return "", false
	}

	if w.onChange != nil {
		w.onChange(ctx, kind)
	}
	return kind, true
}
