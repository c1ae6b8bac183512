package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/muezzin/internal/engine"
	"github.com/roach88/muezzin/internal/notify"
	"github.com/roach88/muezzin/internal/playback"
	"github.com/roach88/muezzin/internal/prayer"
	"github.com/roach88/muezzin/internal/schedule"
)

// Player is the playback surface the daemon drives.
// Implemented by *playback.Manager.
type Player interface {
	Play(ctx context.Context, req playback.Request) (playback.Status, error)
	Pause(ctx context.Context) (playback.Status, error)
	Resume(ctx context.Context) (playback.Status, error)
	Stop(ctx context.Context) (playback.Status, error)
	Status() playback.Status
}

// Rescheduler accepts fired alarms. Implemented by *engine.Coordinator.
type Rescheduler interface {
	OnAlarmFired(ctx context.Context, p prayer.Prayer, isIsha bool, firedAt time.Time) error
}

// Receiver handles a fired alarm: it plays the adhan (or shows a silent
// reminder when the sound is off) and then always asks for the next alarm,
// even when playback failed.
type Receiver struct {
	settings engine.SettingsLoader
	player   Player
	coord    Rescheduler
	sink     notify.Sink
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewReceiver creates a Receiver.
func NewReceiver(settings engine.SettingsLoader, player Player, coord Rescheduler, sink notify.Sink, clock clockwork.Clock, logger *slog.Logger) *Receiver {
	if sink == nil {
		sink = notify.Discard
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{
		settings: settings,
		player:   player,
		coord:    coord,
		sink:     sink,
		clock:    clock,
		logger:   logger.With("component", "receiver"),
	}
}

// OnAlarmFired handles alarm. It never returns an error: failures are
// logged and the reschedule request is still made.
func (r *Receiver) OnAlarmFired(ctx context.Context, alarm schedule.Alarm) {
	log := r.logger.With("prayer", alarm.Prayer.String(), "at", alarm.At, "is_isha", alarm.IsIsha)
	settings := r.settings.Load(ctx)

	switch {
	case !settings.NotificationsEnabled:
		log.Info("notifications disabled, not alerting")
	case settings.IsSoundEnabled(alarm.Prayer):
		st, err := r.player.Play(ctx, playback.Request{Prayer: alarm.Prayer, Sound: alarm.Sound})
		if err != nil {
			log.Error("adhan playback failed", "error", err)
		} else {
			log.Info("adhan playing", "session", st.SessionID, "source", st.Source)
		}
	default:
		in := notify.Intent{
			Kind:    notify.KindSilentReminder,
			Prayer:  alarm.Prayer,
			At:      r.clock.Now(),
			Message: "It is time for " + alarm.Prayer.String(),
		}
		if err := r.sink.Emit(ctx, in); err != nil {
			log.Warn("failed to emit silent reminder", "error", err)
		}
	}

	if err := r.coord.OnAlarmFired(ctx, alarm.Prayer, alarm.IsIsha, alarm.At); err != nil {
		log.Error("failed to request reschedule", "error", err)
	}
}
