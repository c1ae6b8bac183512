package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
	"github.com/roach88/muezzin/internal/testutil"
)

var est = time.FixedZone("EST", -5*3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, est)
}

type fixture struct {
	clock    *clockwork.FakeClock
	store    *store.Store
	prefs    *prefs.MapSource
	provider *testutil.StaticProvider
	facility *testutil.FakeFacility
	sink     *testutil.Recorder
	observer *recordingObserver
	coord    *Coordinator
}

type recordingObserver struct {
	mu      sync.Mutex
	results []PassResult
}

func (o *recordingObserver) ObservePass(res PassResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.results)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		clock: clockwork.NewFakeClockAt(now),
		store: setupTestStore(t),
		prefs: prefs.NewMapSource(map[string]any{
			prefs.KeyLatitude:  40.0,
			prefs.KeyLongitude: -74.0,
		}),
		provider: testutil.DefaultTimes(),
		facility: testutil.NewFakeFacility(),
		sink:     &testutil.Recorder{},
		observer: &recordingObserver{},
	}
	reader := prefs.NewReader(f.prefs, prefs.DefaultLegacyPrefix)
	scheduler := schedule.NewScheduler(f.facility, reader, schedule.WithClock(f.clock))
	f.coord = New(f.store, reader, f.provider, scheduler,
		WithClock(f.clock),
		WithLocation(est),
		WithSink(f.sink),
		WithObserver(f.observer),
		WithIDGenerator(testutil.NewSequenceGenerator("pass")),
	)
	return f
}

func (f *fixture) state(t *testing.T) store.RescheduleState {
	t.Helper()
	st, err := f.store.LoadRescheduleState(context.Background())
	require.NoError(t, err)
	return st
}

func (f *fixture) pending(t *testing.T) schedule.Alarm {
	t.Helper()
	pending := f.facility.Pending()
	require.Len(t, pending, 1, "exactly one alarm must be pending")
	return pending[0]
}

func TestRunPass_SchedulesNextPrayer(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})
	require.NoError(t, err)

	assert.Equal(t, PassScheduled, res.Outcome)
	assert.Equal(t, "pass-0001", res.ID)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Dhuhr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(15, 12, 0)))
	assert.Equal(t, schedule.DefaultSlot, alarm.Slot)
	assert.Equal(t, prefs.DefaultSelectedAdhan, alarm.Sound)
	assert.False(t, alarm.IsIsha)

	st := f.state(t)
	assert.False(t, st.NeedsReschedule)
	assert.True(t, st.LastCompletedAt.Equal(at(15, 10, 0)))

	passes, err := f.store.RecentPasses(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, "pass-0001", passes[0].ID)
	assert.Equal(t, "boot", passes[0].Trigger)
	assert.Equal(t, "scheduled", passes[0].Outcome)
	assert.Equal(t, "Dhuhr", passes[0].Prayer)
	assert.Equal(t, 1, f.observer.count())
}

func TestRunPass_Idempotent(t *testing.T) {
	f := newFixture(t, at(15, 13, 0))
	ctx := context.Background()

	first, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerManual})
	require.NoError(t, err)
	second, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerManual})
	require.NoError(t, err)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Asr, alarm.Prayer)
	assert.True(t, first.Alarm.At.Equal(second.Alarm.At))
	assert.Len(t, f.facility.History(), 2, "both passes register, the second replaces the first")
}

func TestRunPass_AfterIshaSchedulesTomorrowFajr(t *testing.T) {
	f := newFixture(t, at(15, 23, 50))

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerTimeChanged})
	require.NoError(t, err)
	require.Equal(t, PassScheduled, res.Outcome)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Fajr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(16, 5, 0)))
	assert.False(t, alarm.IsIsha)
	assert.Equal(t, DefaultFajrSound, alarm.Sound, "Fajr always uses the dedicated sound")
}

func TestRunPass_IshaSelectionIsFlagged(t *testing.T) {
	f := newFixture(t, at(15, 18, 30))

	_, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})
	require.NoError(t, err)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Isha, alarm.Prayer)
	assert.True(t, alarm.IsIsha)
}

func TestRunPass_IshaFiredChainsToTomorrow(t *testing.T) {
	// The callback runs a moment before the registered instant.
	f := newFixture(t, at(15, 19, 30).Add(-2*time.Second))

	res, err := f.coord.RunPass(context.Background(), Trigger{
		Kind:    TriggerAlarmFired,
		Prayer:  prayer.Isha,
		IsIsha:  true,
		FiredAt: at(15, 19, 30),
	})
	require.NoError(t, err)
	require.Equal(t, PassScheduled, res.Outcome)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Fajr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(16, 5, 0)), "got %s", alarm.At)
}

func TestRunPass_LateIshaDeliveryAnchorsToItsDay(t *testing.T) {
	// Delivered after midnight: the floor is still the 15th's Isha.
	f := newFixture(t, at(16, 0, 20))

	_, err := f.coord.RunPass(context.Background(), Trigger{
		Kind:    TriggerAlarmFired,
		Prayer:  prayer.Isha,
		IsIsha:  true,
		FiredAt: at(15, 19, 30),
	})
	require.NoError(t, err)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Fajr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(16, 5, 0)))
}

func TestRunPass_FiredPrayerIsNotReselected(t *testing.T) {
	f := newFixture(t, at(15, 18, 0).Add(-time.Second))

	_, err := f.coord.RunPass(context.Background(), Trigger{
		Kind:    TriggerAlarmFired,
		Prayer:  prayer.Maghrib,
		FiredAt: at(15, 18, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, prayer.Isha, f.pending(t).Prayer)
}

func TestRunPass_SkipsSilencedPrayers(t *testing.T) {
	f := newFixture(t, at(15, 18, 30))
	ctx := context.Background()
	require.NoError(t, f.prefs.Set(ctx, prefs.SoundEnabledKey(prayer.Isha), false))
	require.NoError(t, f.prefs.Set(ctx, "flutter."+prefs.SoundEnabledKey(prayer.Fajr), "false"))

	res, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerManual})
	require.NoError(t, err)
	require.Equal(t, PassScheduled, res.Outcome)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Dhuhr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(16, 12, 0)))
}

func TestRunPass_AllSilenced(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	ctx := context.Background()
	for _, p := range prayer.All {
		require.NoError(t, f.prefs.Set(ctx, prefs.SoundEnabledKey(p), false))
	}

	res, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, PassAllDisabled, res.Outcome)
	assert.Nil(t, res.Alarm)
	assert.Empty(t, f.facility.Pending())
	assert.False(t, f.state(t).NeedsReschedule)
}

func TestRunPass_MissingLocation(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	f.prefs.Delete(prefs.KeyLatitude)

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})

	require.Error(t, err)
	assert.True(t, fault.IsConfigurationMissing(err))
	assert.Equal(t, PassConfigurationMissing, res.Outcome)
	assert.Empty(t, f.facility.History())
	assert.True(t, f.state(t).NeedsReschedule, "flag stays set for a later retry")

	passes, err := f.store.RecentPasses(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Contains(t, passes[0].Error, "CONFIGURATION_MISSING")
}

func TestRunPass_NotificationsDisabledCancelsEverything(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	ctx := context.Background()

	_, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerBoot})
	require.NoError(t, err)
	require.Len(t, f.facility.Pending(), 1)

	require.NoError(t, f.prefs.Set(ctx, prefs.KeyNotificationsEnabled, false))
	res, err := f.coord.RunPass(ctx, Trigger{Kind: TriggerManual})
	require.NoError(t, err)

	assert.Equal(t, PassNotificationsDisabled, res.Outcome)
	assert.Empty(t, f.facility.Pending())
	assert.ElementsMatch(t, schedule.KnownSlots(), f.facility.Cancelled())
	assert.False(t, f.state(t).NeedsReschedule)
}

func TestRunPass_CapabilityDenied(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	f.facility.SetCapability(false)

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})

	require.Error(t, err)
	assert.True(t, fault.IsCapabilityDenied(err))
	assert.Equal(t, PassCapabilityDenied, res.Outcome)
	assert.Empty(t, f.facility.Pending())
	assert.True(t, f.state(t).NeedsReschedule)
	assert.Equal(t, []notify.Kind{notify.KindCapabilityDenied}, f.sink.Kinds())
}

func TestRunPass_ProviderFailure(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	f.provider.Err = errors.New("sun never sets")

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})

	require.Error(t, err)
	assert.Equal(t, PassFailed, res.Outcome)
	assert.Contains(t, err.Error(), "2024-01-15")
	assert.True(t, f.state(t).NeedsReschedule)
}

func TestRunPass_RegisterFailure(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	boom := errors.New("timer unavailable")
	f.facility.SetRegisterError(boom)

	res, err := f.coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PassFailed, res.Outcome)
	assert.True(t, f.state(t).NeedsReschedule)
}

func TestRunPass_RealCalculatorScenario(t *testing.T) {
	f := newFixture(t, at(15, 23, 50))
	reader := prefs.NewReader(f.prefs, "")
	coord := New(f.store, reader, prayer.Calculator{}, schedule.NewScheduler(f.facility, reader, schedule.WithClock(f.clock)),
		WithClock(f.clock), WithLocation(est))

	res, err := coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})
	require.NoError(t, err)
	require.NotNil(t, res.Alarm)

	assert.Equal(t, prayer.Fajr, res.Alarm.Prayer)
	assert.False(t, res.Alarm.IsIsha)
	assert.Equal(t, 16, res.Alarm.At.Day())
	assert.True(t, res.Alarm.At.After(at(16, 5, 30)) && res.Alarm.At.Before(at(16, 6, 30)), "got %s", res.Alarm.At)
}

// dayFailingProvider fails for one calendar date and delegates otherwise.
type dayFailingProvider struct {
	prayer.Provider
	failOn string
}

func (p dayFailingProvider) Times(coords prayer.Coordinates, method prayer.Method, date time.Time) (prayer.DailyTimes, error) {
	if date.Format(time.DateOnly) == p.failOn {
		return prayer.DailyTimes{}, errors.New("no data for date")
	}
	return p.Provider.Times(coords, method, date)
}

func TestRunPass_TomorrowOnlyComputedAfterIsha(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		outcome PassOutcome
		prayer  prayer.Prayer
	}{
		{"morning", at(15, 10, 0), PassScheduled, prayer.Dhuhr},
		{"before isha", at(15, 19, 0), PassScheduled, prayer.Isha},
		{"after isha", at(15, 20, 0), PassFailed, prayer.Fajr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now)
			reader := prefs.NewReader(f.prefs, prefs.DefaultLegacyPrefix)
			provider := dayFailingProvider{Provider: f.provider, failOn: "2024-01-16"}
			coord := New(f.store, reader, provider, schedule.NewScheduler(f.facility, reader, schedule.WithClock(f.clock)),
				WithClock(f.clock), WithLocation(est))

			res, err := coord.RunPass(context.Background(), Trigger{Kind: TriggerBoot})
			assert.Equal(t, tt.outcome, res.Outcome)
			if tt.outcome == PassFailed {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "2024-01-16")
				assert.Empty(t, f.facility.Pending())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.prayer, f.pending(t).Prayer)
		})
	}
}

func TestRunPass_CoalescedIshaThenFajr(t *testing.T) {
	f := newFixture(t, at(16, 5, 1))

	isha := Trigger{Kind: TriggerAlarmFired, Prayer: prayer.Isha, IsIsha: true, FiredAt: at(15, 19, 30)}
	fajr := Trigger{Kind: TriggerAlarmFired, Prayer: prayer.Fajr, FiredAt: at(16, 5, 0)}

	res, err := f.coord.RunPass(context.Background(), isha.merge(fajr))
	require.NoError(t, err)
	assert.Equal(t, PassScheduled, res.Outcome)

	alarm := f.pending(t)
	assert.Equal(t, prayer.Dhuhr, alarm.Prayer)
	assert.True(t, alarm.At.Equal(at(16, 12, 0)), "got %s", alarm.At)
}

func TestResumePending(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	ctx := context.Background()

	resumed, err := f.coord.ResumePending(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, 0, f.coord.Pending())

	require.NoError(t, f.store.MarkRescheduleRequested(ctx, at(15, 9, 0)))
	resumed, err = f.coord.ResumePending(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, 1, f.coord.Pending())
}

func TestEntryPointsPersistRequest(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	ctx := context.Background()

	require.NoError(t, f.coord.OnAlarmFired(ctx, prayer.Fajr, false, at(15, 5, 0)))
	require.NoError(t, f.coord.OnBootOrTimeChange(ctx, TriggerTimezoneChanged))
	require.NoError(t, f.coord.RequestReschedule(ctx))

	st := f.state(t)
	assert.True(t, st.NeedsReschedule)
	assert.True(t, st.RequestedAt.Equal(at(15, 10, 0)))
	assert.Equal(t, 3, f.coord.Pending())
}

func TestRun_CoalescesPendingTriggers(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.coord.OnBootOrTimeChange(ctx, TriggerBoot))
	require.NoError(t, f.coord.OnBootOrTimeChange(ctx, TriggerTimeChanged))
	require.NoError(t, f.coord.RequestReschedule(ctx))

	done := make(chan error, 1)
	go func() { done <- f.coord.Run(ctx) }()

	require.Eventually(t, func() bool { return f.observer.count() == 1 }, time.Second, 5*time.Millisecond)
	// Give a duplicate pass the chance to show up before asserting.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.observer.count(), "three queued triggers run as one pass")
	assert.False(t, f.state(t).NeedsReschedule)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
	assert.ErrorIs(t, f.coord.RequestReschedule(context.Background()), ErrStopped)
}

func TestRun_StopsWhenStopped(t *testing.T) {
	f := newFixture(t, at(15, 10, 0))

	done := make(chan error, 1)
	go func() { done <- f.coord.Run(context.Background()) }()

	f.coord.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPassOutcomeCompleted(t *testing.T) {
	completed := map[PassOutcome]bool{
		PassScheduled:             true,
		PassAllDisabled:           true,
		PassNotificationsDisabled: true,
		PassConfigurationMissing:  false,
		PassCapabilityDenied:      false,
		PassStale:                 false,
		PassFailed:                false,
	}
	for outcome, want := range completed {
		assert.Equal(t, want, outcome.Completed(), string(outcome))
	}
}
