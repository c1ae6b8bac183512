package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/muezzin/internal/playback"
)

// ErrFocusDenied is returned by Request while another producer holds
// focus permanently.
var ErrFocusDenied = errors.New("audio focus denied")

// FocusArbiter arbitrates the output device between this daemon and other
// producers on the host. Other producers are modelled by Interrupt and
// Restore.
type FocusArbiter struct {
	mu       sync.Mutex
	listener playback.FocusListener
	granted  bool
	taken    bool
	logger   *slog.Logger
}

// NewFocusArbiter creates a FocusArbiter.
func NewFocusArbiter(logger *slog.Logger) *FocusArbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FocusArbiter{logger: logger.With("component", "focus")}
}

// Request implements playback.AudioFocus.
func (f *FocusArbiter) Request(ctx context.Context, listener playback.FocusListener) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken {
		return ErrFocusDenied
	}
	f.granted = true
	f.listener = listener
	return nil
}

// Abandon implements playback.AudioFocus.
func (f *FocusArbiter) Abandon() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = false
	f.listener = nil
	return nil
}

// Granted reports whether focus is currently held.
func (f *FocusArbiter) Granted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

// Interrupt takes the device away from the current holder. A transient
// interruption can be undone with Restore; a permanent one ends the grant
// and blocks new requests until Restore.
func (f *FocusArbiter) Interrupt(transient bool) {
	f.mu.Lock()
	listener := f.listener
	change := playback.FocusLossTransient
	if !transient {
		change = playback.FocusLoss
		f.taken = true
		f.granted = false
		f.listener = nil
	}
	f.mu.Unlock()

	f.logger.Info("focus interrupted", "change", change.String())
	f.notify(listener, change)
}

// Restore gives the device back after an interruption.
func (f *FocusArbiter) Restore() {
	f.mu.Lock()
	f.taken = false
	listener := f.listener
	f.mu.Unlock()

	f.logger.Info("focus restored")
	f.notify(listener, playback.FocusGain)
}

func (f *FocusArbiter) notify(listener playback.FocusListener, change playback.FocusChange) {
	if listener == nil {
		return
	}
	go listener(change)
}
