package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

// FireFunc is called when a registered alarm goes off.
type FireFunc func(ctx context.Context, alarm schedule.Alarm)

// AlarmMirror persists registrations so they survive a restart.
// *store.Store implements it.
type AlarmMirror interface {
	SaveAlarm(ctx context.Context, alarm schedule.Alarm, registeredAt time.Time) error
	DeleteAlarm(ctx context.Context, slot schedule.Slot) error
	PendingAlarms(ctx context.Context, loc *time.Location) ([]store.AlarmRecord, error)
}

// AlarmClock is the exact-timer facility of a headless host, backed by
// gocron. Each slot is a one-shot job tagged with the slot number.
type AlarmClock struct {
	mu      sync.Mutex
	pending map[schedule.Slot]schedule.Alarm
	cron    *gocron.Scheduler
	mirror  AlarmMirror
	fire    FireFunc
	exact   bool
	started bool
	baseCtx context.Context

	loc    *time.Location
	clock  clockwork.Clock
	logger *slog.Logger
}

// AlarmOption configures an AlarmClock.
type AlarmOption func(*AlarmClock)

// WithMirror persists registrations through m.
func WithMirror(m AlarmMirror) AlarmOption {
	return func(a *AlarmClock) { a.mirror = m }
}

// WithExactAlarms grants or denies exact-alarm capability. Default: granted.
func WithExactAlarms(granted bool) AlarmOption {
	return func(a *AlarmClock) { a.exact = granted }
}

// WithAlarmClock sets the clock used for registration timestamps.
func WithAlarmClock(c clockwork.Clock) AlarmOption {
	return func(a *AlarmClock) { a.clock = c }
}

// WithAlarmLogger sets the logger.
func WithAlarmLogger(l *slog.Logger) AlarmOption {
	return func(a *AlarmClock) { a.logger = l }
}

// NewAlarmClock creates an AlarmClock whose jobs run in loc.
func NewAlarmClock(loc *time.Location, opts ...AlarmOption) *AlarmClock {
	if loc == nil {
		loc = time.Local
	}
	a := &AlarmClock{
		pending: make(map[schedule.Slot]schedule.Alarm),
		cron:    gocron.NewScheduler(loc),
		exact:   true,
		baseCtx: context.Background(),
		loc:     loc,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "alarms")
	return a
}

// OnFire sets the callback for fired alarms. It must be set before Start.
func (a *AlarmClock) OnFire(fn FireFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fire = fn
}

// Start runs the job scheduler and re-registers mirrored alarms that are
// still in the future. Alarms that expired while the process was down are
// dropped; the boot trigger reschedules from scratch.
func (a *AlarmClock) Start(ctx context.Context) error {
	a.mu.Lock()
	a.baseCtx = ctx
	a.started = true
	a.mu.Unlock()

	a.cron.StartAsync()

	if a.mirror == nil {
		return nil
	}
	recs, err := a.mirror.PendingAlarms(ctx, a.loc)
	if err != nil {
		return fmt.Errorf("restore alarms: %w", err)
	}
	now := a.clock.Now()
	for _, rec := range recs {
		if !rec.At.After(now) {
			a.logger.Info("dropping expired alarm", "slot", int(rec.Slot), "prayer", rec.Prayer.String(), "at", rec.At)
			if err := a.mirror.DeleteAlarm(ctx, rec.Slot); err != nil {
				a.logger.Warn("failed to drop expired alarm", "slot", int(rec.Slot), "error", err)
			}
			continue
		}
		if err := a.schedule(rec.Alarm); err != nil {
			return err
		}
		a.logger.Info("restored alarm", "slot", int(rec.Slot), "prayer", rec.Prayer.String(), "at", rec.At)
	}
	return nil
}

// Stop halts the job scheduler. Pending jobs are kept in the mirror.
func (a *AlarmClock) Stop() {
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()
	if started {
		a.cron.Stop()
	}
}

// RegisterExactWakeup implements schedule.Facility.
func (a *AlarmClock) RegisterExactWakeup(ctx context.Context, alarm schedule.Alarm) error {
	if a.mirror != nil {
		if err := a.mirror.SaveAlarm(ctx, alarm, a.clock.Now()); err != nil {
			return err
		}
	}
	if err := a.schedule(alarm); err != nil {
		return err
	}
	a.logger.Debug("registered", "slot", int(alarm.Slot), "prayer", alarm.Prayer.String(), "at", alarm.At)
	return nil
}

// Cancel implements schedule.Facility.
func (a *AlarmClock) Cancel(ctx context.Context, slot schedule.Slot) error {
	if err := a.unschedule(slot); err != nil {
		return err
	}
	if a.mirror != nil {
		return a.mirror.DeleteAlarm(ctx, slot)
	}
	return nil
}

// HasExactAlarmCapability implements schedule.Facility.
func (a *AlarmClock) HasExactAlarmCapability(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exact
}

// SetExactAlarms changes the capability at runtime.
func (a *AlarmClock) SetExactAlarms(granted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exact = granted
}

// Jobs returns the number of scheduled jobs.
func (a *AlarmClock) Jobs() int {
	return a.cron.Len()
}

// Scheduled returns the alarm registered under slot, if any.
func (a *AlarmClock) Scheduled(slot schedule.Slot) (schedule.Alarm, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	alarm, ok := a.pending[slot]
	return alarm, ok
}

func (a *AlarmClock) schedule(alarm schedule.Alarm) error {
	if err := a.unschedule(alarm.Slot); err != nil {
		return err
	}
	_, err := a.cron.Every(24 * time.Hour).
		StartAt(alarm.At).
		LimitRunsTo(1).
		Tag(alarm.Slot.String()).
		Do(a.run, alarm)
	if err != nil {
		return fmt.Errorf("schedule slot %d: %w", alarm.Slot, err)
	}
	a.mu.Lock()
	a.pending[alarm.Slot] = alarm
	a.mu.Unlock()
	return nil
}

func (a *AlarmClock) unschedule(slot schedule.Slot) error {
	err := a.cron.RemoveByTag(slot.String())
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return fmt.Errorf("remove slot %d: %w", slot, err)
	}
	a.mu.Lock()
	delete(a.pending, slot)
	a.mu.Unlock()
	return nil
}

func (a *AlarmClock) run(alarm schedule.Alarm) {
	a.mu.Lock()
	ctx, fire := a.baseCtx, a.fire
	a.mu.Unlock()

	log := a.logger.With("slot", int(alarm.Slot), "prayer", alarm.Prayer.String())
	log.Info("alarm fired", "at", alarm.At)

	if a.mirror != nil {
		if err := a.mirror.DeleteAlarm(ctx, alarm.Slot); err != nil {
			log.Warn("failed to clear fired alarm", "error", err)
		}
	}
	if err := a.unschedule(alarm.Slot); err != nil {
		log.Warn("failed to remove fired job", "error", err)
	}
	if fire != nil {
		fire(ctx, alarm)
	}
}
