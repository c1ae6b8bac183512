package host

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "host.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type fired struct {
	mu     sync.Mutex
	alarms []schedule.Alarm
}

func (f *fired) fire(_ context.Context, a schedule.Alarm) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alarms = append(f.alarms, a)
}

func (f *fired) list() []schedule.Alarm {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schedule.Alarm(nil), f.alarms...)
}

func TestAlarmClockRegisterReplacesBySlot(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()
	ac := NewAlarmClock(time.UTC, WithMirror(st))

	first := time.Now().Add(time.Hour).Truncate(time.Second)
	second := first.Add(2 * time.Hour)

	require.NoError(t, ac.RegisterExactWakeup(ctx, schedule.Alarm{Prayer: prayer.Asr, At: first, Slot: schedule.DefaultSlot}))
	require.NoError(t, ac.RegisterExactWakeup(ctx, schedule.Alarm{Prayer: prayer.Maghrib, At: second, Slot: schedule.DefaultSlot}))

	assert.Equal(t, 1, ac.Jobs())
	got, ok := ac.Scheduled(schedule.DefaultSlot)
	require.True(t, ok)
	assert.Equal(t, prayer.Maghrib, got.Prayer)

	recs, err := st.PendingAlarms(ctx, time.UTC)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, prayer.Maghrib, recs[0].Prayer)
	assert.True(t, second.Equal(recs[0].At))
}

func TestAlarmClockCancel(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()
	ac := NewAlarmClock(time.UTC, WithMirror(st))

	require.NoError(t, ac.RegisterExactWakeup(ctx, schedule.Alarm{Prayer: prayer.Isha, At: time.Now().Add(time.Hour), Slot: schedule.DefaultSlot, IsIsha: true}))
	require.NoError(t, ac.Cancel(ctx, schedule.DefaultSlot))
	require.NoError(t, ac.Cancel(ctx, schedule.DefaultSlot), "cancelling an empty slot is not an error")

	assert.Equal(t, 0, ac.Jobs())
	_, ok := ac.Scheduled(schedule.DefaultSlot)
	assert.False(t, ok)

	recs, err := st.PendingAlarms(ctx, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAlarmClockCapability(t *testing.T) {
	ac := NewAlarmClock(time.UTC, WithExactAlarms(false))
	assert.False(t, ac.HasExactAlarmCapability(t.Context()))
	ac.SetExactAlarms(true)
	assert.True(t, ac.HasExactAlarmCapability(t.Context()))
}

func TestAlarmClockFires(t *testing.T) {
	st := openStore(t)
	var got fired
	ac := NewAlarmClock(time.UTC, WithMirror(st))
	ac.OnFire(got.fire)
	require.NoError(t, ac.Start(t.Context()))
	t.Cleanup(ac.Stop)

	alarm := schedule.Alarm{Prayer: prayer.Dhuhr, Sound: "azan1", At: time.Now().Add(1500 * time.Millisecond), Slot: schedule.DefaultSlot}
	require.NoError(t, ac.RegisterExactWakeup(t.Context(), alarm))

	require.Eventually(t, func() bool { return len(got.list()) == 1 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, prayer.Dhuhr, got.list()[0].Prayer)
	assert.Equal(t, "azan1", got.list()[0].Sound)

	require.Eventually(t, func() bool {
		recs, err := st.PendingAlarms(t.Context(), time.UTC)
		return err == nil && len(recs) == 0
	}, 2*time.Second, 50*time.Millisecond, "fired alarm is cleared from the mirror")
}

func TestAlarmClockRestoresFutureAlarms(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	future := schedule.Alarm{Prayer: prayer.Asr, At: time.Now().Add(48 * time.Hour).Truncate(time.Second), Slot: schedule.DefaultSlot}
	expired := schedule.Alarm{Prayer: prayer.Fajr, At: now.Add(-time.Hour), Slot: 6000}
	require.NoError(t, st.SaveAlarm(ctx, future, now))
	require.NoError(t, st.SaveAlarm(ctx, expired, now))

	ac := NewAlarmClock(time.UTC, WithMirror(st), WithAlarmClock(clockwork.NewFakeClockAt(now)))
	require.NoError(t, ac.Start(ctx))
	t.Cleanup(ac.Stop)

	assert.Equal(t, 1, ac.Jobs())
	got, ok := ac.Scheduled(schedule.DefaultSlot)
	require.True(t, ok)
	assert.Equal(t, prayer.Asr, got.Prayer)

	recs, err := st.PendingAlarms(ctx, time.UTC)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, schedule.DefaultSlot, recs[0].Slot)
}
