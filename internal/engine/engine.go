package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

// ErrStopped is returned by the entry points once the coordinator has been
// stopped.
var ErrStopped = errors.New("reschedule coordinator stopped")

// Defaults.
const (
	DefaultFajrSound     = "fajr"
	DefaultLookaheadDays = 2
)

// StateStore persists the reschedule flag and the pass log.
// Implemented by *store.Store.
type StateStore interface {
	LoadRescheduleState(ctx context.Context) (store.RescheduleState, error)
	MarkRescheduleRequested(ctx context.Context, at time.Time) error
	MarkRescheduleCompleted(ctx context.Context, at time.Time) error
	RecordPass(ctx context.Context, rec store.PassRecord) error
}

// SettingsLoader yields the typed preferences. Implemented by *prefs.Reader.
type SettingsLoader interface {
	Load(ctx context.Context) prefs.Settings
}

// AlarmScheduler registers and cancels alarms.
// Implemented by *schedule.Scheduler.
type AlarmScheduler interface {
	Schedule(ctx context.Context, alarm schedule.Alarm) (schedule.Outcome, error)
	CancelAll(ctx context.Context) error
}

// Observer is told about every finished pass.
type Observer interface {
	ObservePass(res PassResult)
}

type nopObserver struct{}

func (nopObserver) ObservePass(PassResult) {}

// Coordinator keeps exactly one alarm registered for the next prayer.
//
// Triggers (alarm fired, boot, clock or timezone change, explicit request)
// are accepted from any goroutine and return immediately. The Run loop is
// the single consumer: it coalesces pending triggers and runs one pass at a
// time.
//
// Thread-safety model:
//   - OnAlarmFired, OnBootOrTimeChange, RequestReschedule, ResumePending:
//     safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - RunPass: safe from any goroutine; passes are serialized
type Coordinator struct {
	state     StateStore
	settings  SettingsLoader
	provider  prayer.Provider
	scheduler AlarmScheduler

	sink          notify.Sink
	observer      Observer
	ids           IDGenerator
	clock         clockwork.Clock
	loc           *time.Location
	fajrSound     string
	lookaheadDays int
	logger        *slog.Logger

	queue  *triggerQueue
	passMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock. Default: the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLocation sets the zone prayer days are computed in. Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(co *Coordinator) { co.loc = loc }
}

// WithSink sets where capability intents go. Default: notify.Discard.
func WithSink(s notify.Sink) Option {
	return func(co *Coordinator) { co.sink = s }
}

// WithObserver registers a pass observer (metrics).
func WithObserver(o Observer) Option {
	return func(co *Coordinator) { co.observer = o }
}

// WithIDGenerator sets the pass ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(co *Coordinator) { co.ids = g }
}

// WithFajrSound sets the sound used for Fajr alarms.
func WithFajrSound(name string) Option {
	return func(co *Coordinator) { co.fajrSound = name }
}

// WithLookaheadDays bounds how many days past today a pass may look for an
// enabled prayer.
func WithLookaheadDays(n int) Option {
	return func(co *Coordinator) { co.lookaheadDays = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// New creates a Coordinator.
func New(state StateStore, settings SettingsLoader, provider prayer.Provider, scheduler AlarmScheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:         state,
		settings:      settings,
		provider:      provider,
		scheduler:     scheduler,
		sink:          notify.Discard,
		observer:      nopObserver{},
		ids:           UUIDv7Generator{},
		clock:         clockwork.NewRealClock(),
		loc:           time.Local,
		fajrSound:     DefaultFajrSound,
		lookaheadDays: DefaultLookaheadDays,
		logger:        slog.Default(),
		queue:         newTriggerQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lookaheadDays < 1 {
		c.lookaheadDays = 1
	}
	c.logger = c.logger.With("component", "reschedule")
	return c
}

// OnAlarmFired requests a pass after an alarm fired. It is called whether or
// not sound played. firedAt is the instant the alarm was registered for.
func (c *Coordinator) OnAlarmFired(ctx context.Context, p prayer.Prayer, isIsha bool, firedAt time.Time) error {
	return c.request(ctx, Trigger{Kind: TriggerAlarmFired, Prayer: p, IsIsha: isIsha, FiredAt: firedAt})
}

// OnBootOrTimeChange requests a pass with no alarm context.
func (c *Coordinator) OnBootOrTimeChange(ctx context.Context, kind TriggerKind) error {
	return c.request(ctx, Trigger{Kind: kind})
}

// RequestReschedule requests a pass on behalf of a user or API call.
func (c *Coordinator) RequestReschedule(ctx context.Context) error {
	return c.request(ctx, Trigger{Kind: TriggerManual})
}

// ResumePending enqueues a retry if the persisted state shows a pass that
// was requested but never completed. Reports whether a retry was enqueued.
func (c *Coordinator) ResumePending(ctx context.Context) (bool, error) {
	st, err := c.state.LoadRescheduleState(ctx)
	if err != nil {
		return false, err
	}
	if !st.NeedsReschedule {
		return false, nil
	}
	c.logger.Info("resuming interrupted reschedule", "requested_at", st.RequestedAt)
	if !c.queue.Enqueue(Trigger{Kind: TriggerResume}) {
		return false, ErrStopped
	}
	return true, nil
}

// request persists the flag and enqueues t. A persistence failure is logged
// and the trigger is still queued: the pass sets the flag again.
func (c *Coordinator) request(ctx context.Context, t Trigger) error {
	if err := c.state.MarkRescheduleRequested(ctx, c.clock.Now()); err != nil {
		c.logger.Warn("failed to persist reschedule request", "trigger", string(t.Kind), "error", err)
	}
	if !c.queue.Enqueue(t) {
		return ErrStopped
	}
	c.logger.Debug("reschedule requested", "trigger", string(t.Kind), "pending", c.queue.Len())
	return nil
}

// Run starts the single-consumer trigger loop.
// Blocks until ctx is cancelled or Stop is called.
//
// A failed pass is logged and the loop continues. The persisted flag stays
// set, so a later trigger retries it.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator starting")

	for {
		if t, ok := c.queue.Drain(); ok {
			if _, err := c.RunPass(ctx, t); err != nil {
				c.logger.Warn("reschedule pass did not complete", "trigger", string(t.Kind), "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()
		case <-c.queue.Wait():
			if c.queue.Closed() && c.queue.Len() == 0 {
				c.logger.Info("coordinator stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the trigger queue, which makes Run return.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// Pending returns the number of queued triggers.
func (c *Coordinator) Pending() int {
	return c.queue.Len()
}
