package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/prefs"
	"github.com/roach88/muezzin/internal/schedule"
	"github.com/roach88/muezzin/internal/store"
)

// PassOutcome is how a reschedule pass ended.
type PassOutcome string

const (
	PassScheduled             PassOutcome = "scheduled"
	PassAllDisabled           PassOutcome = "all_disabled"
	PassNotificationsDisabled PassOutcome = "notifications_disabled"
	PassConfigurationMissing  PassOutcome = "configuration_missing"
	PassCapabilityDenied      PassOutcome = "capability_denied"
	PassStale                 PassOutcome = "stale"
	PassFailed                PassOutcome = "failed"
)

// Completed reports whether the outcome clears the needs-reschedule flag.
// Every other outcome leaves it set for a later trigger to retry.
func (o PassOutcome) Completed() bool {
	switch o {
	case PassScheduled, PassAllDisabled, PassNotificationsDisabled:
		return true
	}
	return false
}

// PassResult describes one finished pass.
type PassResult struct {
	ID         string          `json:"id"`
	Trigger    Trigger         `json:"trigger"`
	Outcome    PassOutcome     `json:"outcome"`
	Alarm      *schedule.Alarm `json:"alarm,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Err        error           `json:"-"`
}

// Record converts the result to its audit-log row.
func (r PassResult) Record() store.PassRecord {
	rec := store.PassRecord{
		ID:         r.ID,
		Trigger:    string(r.Trigger.Kind),
		Outcome:    string(r.Outcome),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Alarm != nil {
		rec.Prayer = r.Alarm.Prayer.String()
		rec.TriggerAt = r.Alarm.At
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// RunPass computes the next prayer and (re-)registers the alarm under
// schedule.DefaultSlot.
//
// Running it any number of times with unchanged inputs converges to one
// pending alarm with the same instant. The returned error is informational:
// it is already logged, and the persisted flag reflects whether the pass
// completed.
func (c *Coordinator) RunPass(ctx context.Context, t Trigger) (PassResult, error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	started := c.clock.Now()
	res := PassResult{ID: c.ids.Generate(), Trigger: t, StartedAt: started}
	log := c.logger.With("pass", res.ID, "trigger", string(t.Kind))

	if err := c.state.MarkRescheduleRequested(ctx, started); err != nil {
		log.Warn("failed to persist reschedule request", "error", err)
	}

	res.Outcome, res.Alarm, res.Err = c.pass(ctx, t, started.In(c.loc), log)
	res.FinishedAt = c.clock.Now()

	if res.Outcome.Completed() {
		if err := c.state.MarkRescheduleCompleted(ctx, res.FinishedAt); err != nil {
			log.Error("failed to persist reschedule completion", "error", err)
			res.Err = errors.Join(res.Err, err)
		}
	}
	if err := c.state.RecordPass(ctx, res.Record()); err != nil {
		log.Error("failed to record pass", "error", err)
	}
	c.observer.ObservePass(res)

	attrs := []any{"outcome", string(res.Outcome), "duration", res.FinishedAt.Sub(started)}
	if res.Alarm != nil {
		attrs = append(attrs, "prayer", res.Alarm.Prayer.String(), "at", res.Alarm.At)
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err, "code", string(fault.CodeOf(res.Err)))
		log.Warn("reschedule pass finished", attrs...)
	} else {
		log.Info("reschedule pass finished", attrs...)
	}
	return res, res.Err
}

func (c *Coordinator) pass(ctx context.Context, t Trigger, now time.Time, log *slog.Logger) (PassOutcome, *schedule.Alarm, error) {
	settings := c.settings.Load(ctx)

	if !settings.NotificationsEnabled {
		if err := c.scheduler.CancelAll(ctx); err != nil {
			return PassNotificationsDisabled, nil, err
		}
		return PassNotificationsDisabled, nil, nil
	}

	if !settings.HasLocation {
		return PassConfigurationMissing, nil,
			fault.New(fault.ConfigurationMissing, "reschedule", "no location configured")
	}

	ref, err := c.reference(settings, t, now)
	if err != nil {
		return PassFailed, nil, err
	}
	horizon := prayer.AddDays(prayer.DateOf(ref), c.lookaheadDays)

	for {
		sel, err := c.selectAfter(settings, ref)
		if err != nil {
			return PassFailed, nil, err
		}
		if prayer.DateOf(sel.At).After(horizon) {
			log.Info("every prayer in the lookahead window is silenced", "days", c.lookaheadDays)
			return PassAllDisabled, nil, nil
		}

		alarm := schedule.Alarm{
			Prayer: sel.Prayer,
			Sound:  c.soundFor(sel.Prayer, settings),
			At:     sel.At,
			IsIsha: sel.IsIsha,
			Slot:   schedule.DefaultSlot,
		}
		outcome, err := c.scheduler.Schedule(ctx, alarm)
		switch outcome {
		case schedule.OutcomeScheduled:
			return PassScheduled, &alarm, nil
		case schedule.OutcomeDisabled:
			// Keep the chain warm: the silenced prayer will not fire, so
			// look for the next one after it.
			ref = sel.At
		case schedule.OutcomeStale:
			return PassStale, &alarm, fault.New(fault.StaleTrigger, "reschedule", "selected prayer already passed").
				With("prayer", alarm.Prayer.String())
		case schedule.OutcomeNoCapability:
			c.emit(ctx, notify.Intent{
				Kind:    notify.KindCapabilityDenied,
				Prayer:  alarm.Prayer,
				At:      alarm.At,
				Message: "exact alarms are not permitted",
			}, log)
			return PassCapabilityDenied, &alarm, err
		default:
			return PassFailed, nil, err
		}
	}
}

// reference returns the instant the next prayer must be strictly after.
//
// After an alarm fired the floor is that prayer's instant on the day it was
// registered for; an Isha floor rolls selection into the following day even
// if the clock reads slightly early.
func (c *Coordinator) reference(settings prefs.Settings, t Trigger, now time.Time) (time.Time, error) {
	if !t.hasAlarm() {
		return now, nil
	}
	anchor := t.FiredAt
	if anchor.IsZero() {
		anchor = now
	}
	day, err := c.times(settings, prayer.DateOf(anchor.In(c.loc)))
	if err != nil {
		return time.Time{}, err
	}

	ref := now
	if t.Prayer.Valid() && day.At(t.Prayer).After(ref) {
		ref = day.At(t.Prayer)
	}
	if t.IsIsha && day.Isha.After(ref) {
		ref = day.Isha
	}
	return ref, nil
}

// selectAfter selects the first prayer strictly after ref. The following
// day is only computed once today's Isha has passed.
func (c *Coordinator) selectAfter(settings prefs.Settings, ref time.Time) (schedule.Selection, error) {
	date := prayer.DateOf(ref.In(c.loc))
	today, err := c.times(settings, date)
	if err != nil {
		return schedule.Selection{}, err
	}
	if today.Isha.After(ref) {
		return schedule.SelectNext(ref, today, time.Time{}), nil
	}
	tomorrow, err := c.times(settings, prayer.AddDays(date, 1))
	if err != nil {
		return schedule.Selection{}, err
	}
	return schedule.SelectNext(ref, today, tomorrow.Fajr), nil
}

func (c *Coordinator) times(settings prefs.Settings, date time.Time) (prayer.DailyTimes, error) {
	day, err := c.provider.Times(settings.Location, settings.Method, date)
	if err != nil {
		return prayer.DailyTimes{}, fmt.Errorf("prayer times for %s: %w", date.Format(time.DateOnly), err)
	}
	return day, nil
}

func (c *Coordinator) soundFor(p prayer.Prayer, settings prefs.Settings) string {
	if p == prayer.Fajr {
		return c.fajrSound
	}
	return settings.SelectedAdhan
}

func (c *Coordinator) emit(ctx context.Context, in notify.Intent, log *slog.Logger) {
	if err := c.sink.Emit(ctx, in); err != nil {
		log.Warn("failed to emit intent", "kind", string(in.Kind), "error", err)
	}
}
