package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/playback"
)

func listen() (playback.FocusListener, <-chan playback.FocusChange) {
	ch := make(chan playback.FocusChange, 4)
	return func(c playback.FocusChange) { ch <- c }, ch
}

func next(t *testing.T, ch <-chan playback.FocusChange) playback.FocusChange {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("no focus change delivered")
		return 0
	}
}

func TestFocusTransientInterruption(t *testing.T) {
	f := NewFocusArbiter(nil)
	l, ch := listen()
	require.NoError(t, f.Request(t.Context(), l))
	assert.True(t, f.Granted())

	f.Interrupt(true)
	assert.Equal(t, playback.FocusLossTransient, next(t, ch))
	assert.True(t, f.Granted(), "a transient loss keeps the grant")

	f.Restore()
	assert.Equal(t, playback.FocusGain, next(t, ch))
}

func TestFocusPermanentLoss(t *testing.T) {
	f := NewFocusArbiter(nil)
	l, ch := listen()
	require.NoError(t, f.Request(t.Context(), l))

	f.Interrupt(false)
	assert.Equal(t, playback.FocusLoss, next(t, ch))
	assert.False(t, f.Granted())

	assert.ErrorIs(t, f.Request(t.Context(), l), ErrFocusDenied)

	f.Restore()
	require.NoError(t, f.Request(t.Context(), l))
}

func TestFocusAbandonStopsNotifications(t *testing.T) {
	f := NewFocusArbiter(nil)
	l, ch := listen()
	require.NoError(t, f.Request(t.Context(), l))
	require.NoError(t, f.Abandon())

	f.Interrupt(true)
	select {
	case c := <-ch:
		t.Fatalf("unexpected focus change %v after abandon", c)
	case <-time.After(50 * time.Millisecond):
	}
}
