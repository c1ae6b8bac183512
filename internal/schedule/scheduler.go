package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/prayer"
)

// Outcome is the result of a Schedule call.
type Outcome int

const (
	OutcomeScheduled Outcome = iota + 1
	OutcomeStale
	OutcomeDisabled
	OutcomeNoCapability
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScheduled:
		return "scheduled"
	case OutcomeStale:
		return "stale"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeNoCapability:
		return "no_capability"
	default:
		return "unknown"
	}
}

// Scheduler turns alarms into host registrations.
type Scheduler struct {
	facility Facility
	sounds   SoundPolicy
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used for the stale check.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a Scheduler. A nil sounds policy treats every
// prayer as enabled.
func NewScheduler(facility Facility, sounds SoundPolicy, opts ...Option) *Scheduler {
	s := &Scheduler{
		facility: facility,
		sounds:   sounds,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sounds == nil {
		s.sounds = SoundPolicyFunc(func(context.Context, prayer.Prayer) bool { return true })
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Schedule registers alarm with the facility unless a guard applies.
//
// Guards are no-ops, not failures: a stale trigger and a disabled sound
// return their Outcome with a nil error. Missing exact-alarm capability also
// skips registration but returns a CapabilityDenied error so a caller with a
// user interface can prompt for the permission.
func (s *Scheduler) Schedule(ctx context.Context, alarm Alarm) (Outcome, error) {
	log := s.logger.With("prayer", alarm.Prayer.String(), "at", alarm.At, "slot", int(alarm.Slot))

	if now := s.clock.Now(); !alarm.At.After(now) {
		log.Info("skipping stale alarm", "now", now, "code", string(fault.StaleTrigger))
		return OutcomeStale, nil
	}

	if !s.sounds.SoundEnabled(ctx, alarm.Prayer) {
		log.Info("skipping alarm, sound disabled")
		return OutcomeDisabled, nil
	}

	if !s.facility.HasExactAlarmCapability(ctx) {
		log.Warn("skipping alarm, exact alarms not permitted", "code", string(fault.CapabilityDenied))
		return OutcomeNoCapability, fault.New(fault.CapabilityDenied, "schedule", "exact alarms are not permitted").
			With("slot", alarm.Slot.String())
	}

	if err := s.facility.RegisterExactWakeup(ctx, alarm); err != nil {
		return 0, fmt.Errorf("register alarm for %s: %w", alarm.Prayer, err)
	}

	log.Info("alarm scheduled", "sound", alarm.Sound, "is_isha", alarm.IsIsha)
	return OutcomeScheduled, nil
}

// CancelAll cancels every slot the engine may have registered.
//
// Best-effort: every slot is attempted even if an earlier one fails, and the
// failures are joined.
func (s *Scheduler) CancelAll(ctx context.Context) error {
	var errs []error
	for _, slot := range KnownSlots() {
		if err := s.facility.Cancel(ctx, slot); err != nil {
			errs = append(errs, fmt.Errorf("cancel slot %d: %w", slot, err))
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("cancel all finished with errors", "failed", len(errs))
		return errors.Join(errs...)
	}
	s.logger.Info("cancelled all alarms", "slots", len(KnownSlots()))
	return nil
}
