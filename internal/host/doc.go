// Package host adapts a headless Linux host to the services the engine and
// the playback manager expect from a mobile platform: an exact alarm
// facility (gocron one-shot jobs mirrored to SQLite), a timed wake lock,
// audio-focus arbitration, and a watcher that turns wall-clock jumps and
// timezone changes into reschedule triggers.
package host
