package playback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/prayer"
)

type rig struct {
	j        *journal
	output   *fakeOutput
	wake     *fakeWake
	focus    *fakeFocus
	volume   *fakeVolume
	resolver *staticResolver
	intents  []notify.Intent
	stops    []StopReason
	mgr      *Manager
}

type rigObserver struct{ r *rig }

func (o rigObserver) ObserveState(State)            {}
func (o rigObserver) ObserveStop(reason StopReason) { o.r.stops = append(o.r.stops, reason) }

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	j := &journal{}
	r := &rig{
		j:        j,
		output:   &fakeOutput{j: j},
		wake:     &fakeWake{j: j},
		focus:    &fakeFocus{j: j},
		volume:   &fakeVolume{j: j, level: 0.3},
		resolver: &staticResolver{src: Source{Path: "/sounds/azan1.mp3", Name: "azan1"}},
	}
	sink := notify.SinkFunc(func(_ context.Context, in notify.Intent) error {
		r.intents = append(r.intents, in)
		j.add("intent." + string(in.Kind))
		return nil
	})
	seq := 0
	base := []Option{
		WithSink(sink),
		WithObserver(rigObserver{r}),
		WithClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC))),
		WithSessionIDs(func() string { seq++; return fmt.Sprintf("s%d", seq) }),
	}
	r.mgr = NewManager(r.output, r.wake, r.focus, r.volume, r.resolver, append(base, opts...)...)
	return r
}

func (r *rig) assertReleased(t *testing.T) {
	t.Helper()
	assert.False(t, r.wake.held, "wake lock must be released")
	assert.False(t, r.focus.held, "audio focus must be abandoned")
	assert.Equal(t, 0.3, r.volume.level, "device volume must be restored")
	assert.Equal(t, StateIdle, r.mgr.Status().State)
}

func vol(v float64) *float64 { return &v }

func TestPlay_AcquiresInOrder(t *testing.T) {
	r := newRig(t)

	st, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Maghrib, Sound: "azan1", Volume: vol(0.6)})
	require.NoError(t, err)

	assert.Equal(t, StatePlaying, st.State)
	assert.Equal(t, "s1", st.SessionID)
	assert.Equal(t, "/sounds/azan1.mp3", st.Source)
	require.NotNil(t, st.SavedDeviceVolume)
	assert.Equal(t, 0.3, *st.SavedDeviceVolume)

	assert.Equal(t, []string{
		"intent.show_ongoing_alert",
		"wake.acquire",
		"focus.request",
		"volume.set",
		"output.open",
		"intent.launch_player",
	}, r.j.list())
	assert.Equal(t, 1.0, r.volume.level, "device volume is maximized while playing")
	assert.Equal(t, []float64{0.6}, r.output.volumes)
	assert.Equal(t, DefaultWakeLockTimeout, r.wake.timeout)
}

func TestLifecycle_PlayPauseResumeStop(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Isha})
	require.NoError(t, err)

	st, err := r.mgr.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePaused, st.State)
	assert.True(t, r.wake.held, "pause keeps the wake lock")
	assert.True(t, r.focus.held, "pause keeps audio focus")

	st, err = r.mgr.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, st.State)

	r.j.reset()
	st, err = r.mgr.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, StopRequested, st.LastStop)

	assert.Equal(t, []string{
		"stream.close",
		"volume.set",
		"focus.abandon",
		"wake.release",
		"intent.dismiss_alert",
	}, r.j.list())
	r.assertReleased(t)
}

func TestLifecycle_MidPlaybackErrorReleasesEverything(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Asr})
	require.NoError(t, err)
	_, err = r.mgr.Pause(ctx)
	require.NoError(t, err)
	_, err = r.mgr.Resume(ctx)
	require.NoError(t, err)

	r.output.onDone[0](errors.New("corrupt frame"))

	r.assertReleased(t)
	assert.Equal(t, StopError, r.mgr.Status().LastStop)
	assert.False(t, r.output.last().closed, "a finished stream is not closed again")
}

func TestCompletionStopsSession(t *testing.T) {
	r := newRig(t)

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Fajr})
	require.NoError(t, err)
	r.output.onDone[0](nil)

	r.assertReleased(t)
	assert.Equal(t, []StopReason{StopCompleted}, r.stops)
}

func TestPlayStopsPreviousSession(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Asr})
	require.NoError(t, err)
	first := r.output.last()

	st, err := r.mgr.Play(ctx, Request{Prayer: prayer.Maghrib})
	require.NoError(t, err)

	assert.True(t, first.closed)
	assert.Equal(t, "s2", st.SessionID)
	assert.Equal(t, []StopReason{StopSuperseded}, r.stops)
	require.NotNil(t, st.SavedDeviceVolume)
	assert.Equal(t, 0.3, *st.SavedDeviceVolume, "the new session saves the restored volume, not the maximized one")

	// A late completion from the first session is ignored.
	r.output.onDone[0](nil)
	assert.Equal(t, StatePlaying, r.mgr.Status().State)
	assert.Equal(t, "s2", r.mgr.Status().SessionID)
}

func TestPlay_ResourceUnavailable(t *testing.T) {
	r := newRig(t)
	r.resolver.err = fault.New(fault.ResourceUnavailable, "resolve", "no playable sound")

	st, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr, Sound: "missing"})

	require.Error(t, err)
	assert.True(t, fault.IsResourceUnavailable(err))
	assert.Equal(t, StopResourceUnavailable, st.LastStop)
	assert.Empty(t, r.output.streams)
	r.assertReleased(t)
	assert.Equal(t, notify.KindDismissAlert, r.intents[len(r.intents)-1].Kind)
}

func TestPlay_OutputFailure(t *testing.T) {
	r := newRig(t)
	r.output.openErr = errors.New("no device")

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "open output")
	r.assertReleased(t)
}

func TestPlay_AcquisitionFailureReleasesWhatWasTaken(t *testing.T) {
	r := newRig(t)
	r.focus.requestErr = errors.New("denied")

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr})

	require.Error(t, err)
	assert.NotContains(t, r.j.list(), "focus.abandon", "focus that was never granted is not abandoned")
	assert.Contains(t, r.j.list(), "wake.release")
	r.assertReleased(t)
}

func TestPlay_StartGraceExceeded(t *testing.T) {
	r := newRig(t, WithStartGrace(10*time.Millisecond))
	r.focus.block = true

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	r.assertReleased(t)
}

func TestReleaseContinuesPastFailures(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Isha})
	require.NoError(t, err)
	r.output.last().closeErr = errors.New("close failed")
	r.wake.releaseErr = errors.New("release failed")

	_, err = r.mgr.Stop(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "close stream")
	assert.Contains(t, err.Error(), "release wake lock")
	assert.Equal(t, 0.3, r.volume.level)
	assert.False(t, r.focus.held)
	assert.Equal(t, StateIdle, r.mgr.Status().State)
}

func TestPauseFailureStopsSession(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Isha})
	require.NoError(t, err)
	r.output.last().pauseErr = errors.New("device gone")

	_, err = r.mgr.Pause(ctx)
	require.Error(t, err)
	r.assertReleased(t)
}

func TestPauseResumeWithoutSession(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Pause(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = r.mgr.Resume(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	st, err := r.mgr.Stop(ctx)
	assert.NoError(t, err, "stop is idempotent")
	assert.Equal(t, StateIdle, st.State)
	assert.Empty(t, r.j.list())
}

func TestFocusTransientLossAndGain(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Maghrib})
	require.NoError(t, err)

	r.focus.listener(FocusLossTransient)
	st := r.mgr.Status()
	assert.Equal(t, StatePaused, st.State)
	assert.True(t, st.PausedByFocus)

	r.focus.listener(FocusGain)
	st = r.mgr.Status()
	assert.Equal(t, StatePlaying, st.State)
	assert.False(t, st.PausedByFocus)
}

func TestFocusGainDoesNotResumeUserPause(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.mgr.Play(ctx, Request{Prayer: prayer.Maghrib})
	require.NoError(t, err)
	_, err = r.mgr.Pause(ctx)
	require.NoError(t, err)

	r.focus.listener(FocusGain)
	assert.Equal(t, StatePaused, r.mgr.Status().State)
}

func TestFocusLossStops(t *testing.T) {
	r := newRig(t)

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Maghrib})
	require.NoError(t, err)
	listener := r.focus.listener

	listener(FocusLoss)
	r.assertReleased(t)
	assert.Equal(t, []StopReason{StopFocusLoss}, r.stops)

	// A stale listener is ignored once its session is gone.
	listener(FocusGain)
	assert.Equal(t, StateIdle, r.mgr.Status().State)
}

func TestDefaultVolumeFromPreferences(t *testing.T) {
	r := newRig(t, WithDefaultVolume(func(context.Context) float64 { return 0.25 }))

	_, err := r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr})
	require.NoError(t, err)
	_, err = r.mgr.Play(context.Background(), Request{Prayer: prayer.Dhuhr, Volume: vol(7)})
	require.NoError(t, err)

	assert.Equal(t, []float64{0.25, 1.0}, r.output.volumes)
}

func TestFocusChangeString(t *testing.T) {
	assert.Equal(t, "gain", FocusGain.String())
	assert.Equal(t, "loss_transient", FocusLossTransient.String())
	assert.Equal(t, "loss", FocusLoss.String())
	assert.Equal(t, "unknown", FocusChange(0).String())
}
