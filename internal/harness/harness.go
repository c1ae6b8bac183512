package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
	"github.com/roach88/muezzin/internal/testutil"
)

// Harness runs one scenario against a real coordinator wired to an
// in-memory store, a fake clock and a fake alarm facility.
type Harness struct {
	store    *store.Store
	coord    *engine.Coordinator
	facility *testutil.FakeFacility
	clock    *clockwork.FakeClock
	sink     *testutil.Recorder
	loc      *time.Location
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger routes engine logs to l. By default they are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Pass IDs come from a
// sequence generator and the clock only moves when a step says so, so the
// same scenario always yields the same trace.
//
// Execution flow:
// 1. Store the initial preferences
// 2. Execute steps in order, checking expectations and invariants
// 3. Snapshot the pending alarms and the persisted flag
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	loc, err := scenario.Location()
	if err != nil {
		return nil, err
	}
	start, err := parseInstant(scenario.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		facility: testutil.NewFakeFacility(),
		clock:    clockwork.NewFakeClockAt(start),
		sink:     &testutil.Recorder{},
		loc:      loc,
		logger:   cfg.logger,
	}
	if scenario.Capability != nil {
		h.facility.SetCapability(*scenario.Capability)
	}

	reader := prefs.NewReader(st, prefs.DefaultLegacyPrefix, prefs.WithLogger(h.logger))
	sched := schedule.NewScheduler(h.facility, reader,
		schedule.WithClock(h.clock),
		schedule.WithLogger(h.logger),
	)
	h.coord = engine.New(st, reader, scenario.Provider(), sched,
		engine.WithClock(h.clock),
		engine.WithLocation(loc),
		engine.WithSink(h.sink),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("pass")),
		engine.WithLogger(h.logger),
	)

	if err := h.writePrefs(ctx, scenario.Prefs); err != nil {
		return nil, fmt.Errorf("failed to store preferences: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	for _, a := range h.facility.Pending() {
		result.Pending = append(result.Pending, h.snapshot(a))
	}
	state, err := st.LoadRescheduleState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read reschedule state: %w", err)
	}
	result.NeedsReschedule = state.NeedsReschedule

	var intents []string
	for _, kind := range h.sink.Kinds() {
		intents = append(intents, string(kind))
	}
	actx := &AssertionContext{Intents: intents, Location: loc}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// writePrefs stores values in key order so the store sees the same writes
// on every run.
func (h *Harness) writePrefs(ctx context.Context, values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := h.store.SetAt(ctx, k, values[k], h.clock.Now()); err != nil {
			return err
		}
	}
	return nil
}

// executeStep applies one step. Expectation and invariant failures are
// recorded on result; only harness failures are returned.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	if step.At != "" && !step.Fire {
		if err := h.advanceTo(step.At); err != nil {
			return err
		}
	}
	if err := h.writePrefs(ctx, step.Prefs); err != nil {
		return err
	}
	if step.Capability != nil {
		h.facility.SetCapability(*step.Capability)
	}

	var trig engine.Trigger
	switch {
	case step.Fire:
		alarm, ok := h.pending()
		if !ok {
			result.AddError(fmt.Sprintf("step %d: no pending alarm to fire", n))
			return nil
		}
		deliver := alarm.At
		if step.At != "" {
			at, err := parseInstant(step.At, h.loc)
			if err != nil {
				return err
			}
			deliver = at
		}
		if err := h.advance(deliver); err != nil {
			return err
		}
		trig = engine.Trigger{
			Kind:    engine.TriggerAlarmFired,
			Prayer:  alarm.Prayer,
			IsIsha:  alarm.IsIsha,
			FiredAt: alarm.At,
		}
	case step.Trigger != "":
		t, err := h.trigger(step)
		if err != nil {
			return err
		}
		trig = t
	default:
		return nil
	}

	seen := len(h.sink.Kinds())
	res, _ := h.coord.RunPass(ctx, trig)

	ev := TraceEvent{
		Step:    n,
		Now:     h.clock.Now().In(h.loc).Format(LocalLayout),
		Pass:    res.ID,
		Trigger: string(trig.Kind),
		Outcome: string(res.Outcome),
	}
	if res.Alarm != nil {
		ev.Prayer = res.Alarm.Prayer.String()
		ev.At = res.Alarm.At.In(h.loc).Format(LocalLayout)
		ev.IsIsha = res.Alarm.IsIsha
	}
	if res.Err != nil {
		ev.Code = string(fault.CodeOf(res.Err))
	}
	for _, kind := range h.sink.Kinds()[seen:] {
		ev.Intents = append(ev.Intents, string(kind))
	}
	result.AddPass(ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(ev, *step.Expect) {
			result.AddError(fmt.Sprintf("step %d: %s", n, msg))
		}
	}
	state, err := h.store.LoadRescheduleState(ctx)
	if err != nil {
		return err
	}
	for _, msg := range CheckInvariants(res, h.facility.Pending(), state, h.clock.Now()) {
		result.AddError(fmt.Sprintf("step %d: %s", n, msg))
	}
	return nil
}

func (h *Harness) trigger(step Step) (engine.Trigger, error) {
	t := engine.Trigger{Kind: triggerKinds[step.Trigger], IsIsha: step.IsIsha}
	if step.Prayer != "" {
		p, err := prayer.Parse(step.Prayer)
		if err != nil {
			return engine.Trigger{}, err
		}
		t.Prayer = p
	}
	if step.FiredAt != "" {
		at, err := parseInstant(step.FiredAt, h.loc)
		if err != nil {
			return engine.Trigger{}, err
		}
		t.FiredAt = at
	}
	return t, nil
}

func (h *Harness) pending() (schedule.Alarm, bool) {
	for _, a := range h.facility.Pending() {
		if a.Slot == schedule.DefaultSlot {
			return a, true
		}
	}
	return schedule.Alarm{}, false
}

func (h *Harness) advanceTo(value string) error {
	at, err := parseInstant(value, h.loc)
	if err != nil {
		return err
	}
	return h.advance(at)
}

func (h *Harness) advance(at time.Time) error {
	d := at.Sub(h.clock.Now())
	if d < 0 {
		return fmt.Errorf("clock cannot move back to %s", at.In(h.loc).Format(LocalLayout))
	}
	h.clock.Advance(d)
	return nil
}

func (h *Harness) snapshot(a schedule.Alarm) PendingAlarm {
	return PendingAlarm{
		Slot:   int(a.Slot),
		Prayer: a.Prayer.String(),
		Sound:  a.Sound,
		At:     a.At.In(h.loc).Format(LocalLayout),
		IsIsha: a.IsIsha,
	}
}

func checkExpect(ev TraceEvent, want Expect) []string {
	var errs []string
	if ev.Outcome != want.Outcome {
		errs = append(errs, fmt.Sprintf("outcome = %s, want %s", ev.Outcome, want.Outcome))
	}
	if want.Prayer != "" && !samePrayer(ev.Prayer, want.Prayer) {
		errs = append(errs, fmt.Sprintf("prayer = %q, want %q", ev.Prayer, want.Prayer))
	}
	if want.At != "" && ev.At != want.At {
		errs = append(errs, fmt.Sprintf("at = %q, want %q", ev.At, want.At))
	}
	return errs
}

func samePrayer(got, want string) bool {
	g, err := prayer.Parse(got)
	if err != nil {
		return false
	}
	w, err := prayer.Parse(want)
	return err == nil && g == w
}
