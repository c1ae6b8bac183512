package daemon

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/config"
	"github.com/roach88/muezzin/internal/host"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/playback"
	"github.com/roach88/muezzin/internal/store"
	"github.com/roach88/muezzin/internal/testutil"
)

type nopStream struct{}

func (nopStream) Pause() error  { return nil }
func (nopStream) Resume() error { return nil }
func (nopStream) Close() error  { return nil }

type fakeOutput struct {
	mu     sync.Mutex
	opened []playback.Source
	err    error
}

func (o *fakeOutput) Open(_ context.Context, src playback.Source, _ float64, _ func(error)) (playback.Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opened = append(o.opened, src)
	return nopStream{}, nil
}

func (o *fakeOutput) sources() []playback.Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]playback.Source(nil), o.opened...)
}

type fakeVolume struct {
	mu sync.Mutex
	v  float64
}

func (f *fakeVolume) Volume() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v, nil
}

func (f *fakeVolume) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v = v
	return nil
}

// a winter Monday morning
var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type rig struct {
	d        *Daemon
	store    *store.Store
	alarms   *host.AlarmClock
	output   *fakeOutput
	volume   *fakeVolume
	focus    *host.FocusArbiter
	recorder *testutil.Recorder
	provider *testutil.StaticProvider
	clock    *clockwork.FakeClock
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dir := t.TempDir()
	sounds := filepath.Join(dir, "sounds")
	require.NoError(t, os.MkdirAll(sounds, 0o755))
	for _, name := range []string{"azan1.mp3", "fajr.mp3", "makkah.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(sounds, name), []byte("ID3"), 0o644))
	}

	st, err := store.Open(filepath.Join(dir, "muezzin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := t.Context()
	require.NoError(t, st.Set(ctx, "latitude", int64(math.Float64bits(40.7))))
	require.NoError(t, st.Set(ctx, "longitude", -74.0))

	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.SoundsDir = sounds
	cfg.Database = filepath.Join(dir, "muezzin.db")

	clock := clockwork.NewFakeClockAt(testNow)
	r := &rig{
		store:    st,
		alarms:   host.NewAlarmClock(time.UTC, host.WithMirror(st), host.WithAlarmClock(clock)),
		output:   &fakeOutput{},
		volume:   &fakeVolume{v: 0.3},
		focus:    host.NewFocusArbiter(nil),
		recorder: &testutil.Recorder{},
		provider: testutil.DefaultTimes(),
		clock:    clock,
	}
	r.d, err = Assemble(cfg, Components{
		Store:      st,
		Provider:   r.provider,
		Facility:   r.alarms,
		Output:     r.output,
		Volume:     r.volume,
		Focus:      r.focus,
		Sinks:      []notify.Sink{r.recorder},
		Clock:      clock,
		IDs:        testutil.NewSequenceGenerator("pass"),
		SessionIDs: testutil.NewSequenceGenerator("session").Generate,
	}, nil)
	require.NoError(t, err)
	return r
}
