// Package playback owns the audio device for one adhan at a time.
//
// A Manager drives a single session through
//
//	Idle -> Playing <-> Paused -> Stopped
//
// Play emits the ongoing alert, then acquires the wake-lock, audio focus and
// device volume within the start grace window, resolves the sound, and opens
// the output. Pause and Resume keep every resource. Stop, output completion,
// an output error and permanent focus loss all run the same release
// sequence: close the stream, restore the saved device volume, abandon
// focus, release the wake-lock, dismiss the alert. Every step runs even when
// an earlier one fails, so an error never leaves the wake-lock held or the
// system volume raised.
//
// Host facilities (Output, WakeLock, AudioFocus, DeviceVolume) are
// interfaces; package audio and package host provide the daemon's
// implementations.
package playback
