package playback

import (
	"context"
	"time"
)

// Output opens audio streams.
type Output interface {
	// Open starts playing src at the given content volume (0..1) and returns
	// a handle to the running stream. onDone is called once, from another
	// goroutine, when the stream ends on its own: with nil at the end of the
	// audio or with the decode error that ended it. It is never called
	// synchronously from Open and never after Close.
	Open(ctx context.Context, src Source, volume float64, onDone func(error)) (Stream, error)
}

// Stream is one running playback.
type Stream interface {
	Pause() error
	Resume() error
	Close() error
}

// WakeLock keeps the host awake while a session plays.
type WakeLock interface {
	// Acquire takes the lock. The host releases it by itself after timeout
	// if Release is never called.
	Acquire(ctx context.Context, timeout time.Duration) error
	Release() error
}

// FocusChange is an audio-focus notification.
type FocusChange int

const (
	// FocusGain: focus returned after a transient loss.
	FocusGain FocusChange = iota + 1
	// FocusLossTransient: another producer needs the device briefly.
	FocusLossTransient
	// FocusLoss: another producer took the device for good.
	FocusLoss
)

func (c FocusChange) String() string {
	switch c {
	case FocusGain:
		return "gain"
	case FocusLossTransient:
		return "loss_transient"
	case FocusLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// FocusListener receives focus changes for the current grant.
type FocusListener func(FocusChange)

// AudioFocus arbitrates the playback device between producers.
type AudioFocus interface {
	// Request asks for exclusive focus. listener is called on later changes,
	// never synchronously from Request or Abandon.
	Request(ctx context.Context, listener FocusListener) error
	Abandon() error
}

// DeviceVolume is the system-wide output volume, 0..1.
type DeviceVolume interface {
	Volume() (float64, error)
	SetVolume(v float64) error
}
