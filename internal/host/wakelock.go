package host

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// WakeLock is a process-level wake lock with a hard timeout.
// It records who holds the device awake; when the timeout passes
// without a Release, the lock releases itself.
type WakeLock struct {
	mu       sync.Mutex
	held     bool
	timer    clockwork.Timer
	expiries int

	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWakeLock creates a WakeLock.
func NewWakeLock(clock clockwork.Clock, logger *slog.Logger) *WakeLock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WakeLock{clock: clock, logger: logger.With("component", "wakelock")}
}

// Acquire implements playback.WakeLock. Acquiring a held lock re-arms
// the timeout.
func (w *WakeLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.held = true
	var t clockwork.Timer
	t = w.clock.AfterFunc(timeout, func() { w.expire(t) })
	w.timer = t
	w.logger.Debug("acquired", "timeout", timeout)
	return nil
}

// Release implements playback.WakeLock. Releasing a free lock is a no-op.
func (w *WakeLock) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.held {
		w.held = false
		w.logger.Debug("released")
	}
	return nil
}

// Held reports whether the lock is held.
func (w *WakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held
}

// Expiries counts how many times the timeout released the lock.
func (w *WakeLock) Expiries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expiries
}

func (w *WakeLock) expire(t clockwork.Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// A re-armed lock owns a newer timer.
	if w.timer != t {
		return
	}
	w.timer = nil
	w.held = false
	w.expiries++
	w.logger.Warn("wake lock timed out")
}
